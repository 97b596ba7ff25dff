package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
	po "procurement/internal/domain/purchase_order"
)

const detailEntity = "purchase_order_detail"

// OrderRepo implements purchase_order.Repository.
type OrderRepo struct {
	s *Store
}

var _ po.Repository = (*OrderRepo)(nil)

// Create implements purchase_order.Repository.
func (r *OrderRepo) Create(ctx context.Context, order *po.PurchaseOrder) error {
	return r.s.write(ctx, func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return fmt.Errorf("memory: duplicate purchase order id %s", order.ID)
		}
		for _, o := range st.orders {
			if o.PoNo == order.PoNo {
				return fmt.Errorf("memory: duplicate purchase order number %q", order.PoNo)
			}
		}
		st.orders[order.ID] = storedOrder(order)
		return nil
	})
}

// CreateDetail implements purchase_order.Repository.
func (r *OrderRepo) CreateDetail(ctx context.Context, detail *po.Detail) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.orders[detail.PurchaseOrderID]; !ok {
			return apperror.NewNotFound(po.EntityName, detail.PurchaseOrderID)
		}
		d := *detail
		d.Links = nil
		st.orderDetails[d.ID] = d
		return nil
	})
}

// CreateLink implements purchase_order.Repository.
func (r *OrderRepo) CreateLink(ctx context.Context, link *po.PrDetailLink) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.orderDetails[link.PoDetailID]; !ok {
			return apperror.NewNotFound(detailEntity, link.PoDetailID)
		}
		st.links[link.ID] = *link
		return nil
	})
}

// Get implements purchase_order.Repository.
func (r *OrderRepo) Get(ctx context.Context, orderID id.ID) (*po.PurchaseOrder, error) {
	var out *po.PurchaseOrder
	err := r.s.read(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok || o.IsDeleted() {
			return apperror.NewNotFound(po.EntityName, orderID)
		}
		o = storedOrder(&o)
		out = &o
		return nil
	})
	return out, err
}

// ListDetails implements purchase_order.Repository.
func (r *OrderRepo) ListDetails(ctx context.Context, orderID id.ID) ([]po.Detail, error) {
	var out []po.Detail
	err := r.s.read(ctx, func(st *state) error {
		out = activeDetails(st, orderID)
		for i := range out {
			out[i].Links = detailLinks(st, out[i].ID)
		}
		return nil
	})
	return out, err
}

// GetDetail implements purchase_order.Repository.
func (r *OrderRepo) GetDetail(ctx context.Context, orderID, detailID id.ID) (*po.Detail, error) {
	var out *po.Detail
	err := r.s.read(ctx, func(st *state) error {
		d, ok := st.orderDetails[detailID]
		if !ok || d.PurchaseOrderID != orderID || d.IsDeleted() {
			return apperror.NewNotFound(detailEntity, detailID)
		}
		d.Links = detailLinks(st, d.ID)
		out = &d
		return nil
	})
	return out, err
}

// UpdateHeader implements purchase_order.Repository. History is kept as stored.
func (r *OrderRepo) UpdateHeader(ctx context.Context, order *po.PurchaseOrder, expectedVersion int) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.orders[order.ID]
		if !ok || cur.IsDeleted() {
			return apperror.NewNotFound(po.EntityName, order.ID)
		}
		if cur.DocVersion != expectedVersion {
			return apperror.NewConflict(po.EntityName, order.ID, expectedVersion, cur.DocVersion)
		}
		next := storedOrder(order)
		next.History = cur.History
		next.PoNo = cur.PoNo
		next.CreatedAt, next.CreatedBy = cur.CreatedAt, cur.CreatedBy
		next.DocVersion = expectedVersion + 1
		st.orders[order.ID] = next
		order.DocVersion = next.DocVersion
		return nil
	})
}

// AppendHistory implements purchase_order.Repository.
func (r *OrderRepo) AppendHistory(ctx context.Context, orderID id.ID, entries ...po.HistoryEntry) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.orders[orderID]
		if !ok {
			return apperror.NewNotFound(po.EntityName, orderID)
		}
		history := make(po.History, 0, len(cur.History)+len(entries))
		history = append(history, cur.History...)
		cur.History = append(history, entries...)
		st.orders[orderID] = cur
		return nil
	})
}

// UpdateDetail implements purchase_order.Repository.
func (r *OrderRepo) UpdateDetail(ctx context.Context, detail *po.Detail, expectedVersion int) error {
	return r.s.write(ctx, func(st *state) error {
		cur, err := checkDetail(st, detail, expectedVersion)
		if err != nil {
			return err
		}
		next := *detail
		next.Links = nil
		next.CreatedAt, next.CreatedBy = cur.CreatedAt, cur.CreatedBy
		next.DocVersion = expectedVersion + 1
		st.orderDetails[detail.ID] = next
		detail.DocVersion = next.DocVersion
		return nil
	})
}

// SoftDeleteDetail implements purchase_order.Repository.
func (r *OrderRepo) SoftDeleteDetail(ctx context.Context, detail *po.Detail, expectedVersion int) error {
	return r.s.write(ctx, func(st *state) error {
		cur, err := checkDetail(st, detail, expectedVersion)
		if err != nil {
			return err
		}
		cur.SoftDelete = detail.SoftDelete
		if !cur.IsDeleted() {
			cur.MarkDeleted(detail.UpdatedAt, detail.UpdatedBy)
		}
		cur.DocVersion = expectedVersion + 1
		st.orderDetails[detail.ID] = cur
		detail.DocVersion = cur.DocVersion
		return nil
	})
}

// SoftDelete implements purchase_order.Repository.
func (r *OrderRepo) SoftDelete(ctx context.Context, order *po.PurchaseOrder, expectedVersion int) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.orders[order.ID]
		if !ok || cur.IsDeleted() {
			return apperror.NewNotFound(po.EntityName, order.ID)
		}
		if cur.DocVersion != expectedVersion {
			return apperror.NewConflict(po.EntityName, order.ID, expectedVersion, cur.DocVersion)
		}
		cur.SoftDelete = order.SoftDelete
		cur.DocVersion = expectedVersion + 1
		st.orders[order.ID] = cur
		order.DocVersion = cur.DocVersion
		return nil
	})
}

// SumActiveDetails implements purchase_order.Repository.
func (r *OrderRepo) SumActiveDetails(ctx context.Context, orderID id.ID) (po.Totals, error) {
	var out po.Totals
	err := r.s.read(ctx, func(st *state) error {
		out = po.SumDetails(activeDetails(st, orderID))
		return nil
	})
	return out, err
}

// NextSequenceNo implements purchase_order.Repository.
func (r *OrderRepo) NextSequenceNo(ctx context.Context, orderID id.ID) (int, error) {
	last := 0
	err := r.s.read(ctx, func(st *state) error {
		for _, d := range st.orderDetails {
			if d.PurchaseOrderID == orderID && d.SequenceNo > last {
				last = d.SequenceNo
			}
		}
		return nil
	})
	return last + 1, err
}

// All returns every stored order including soft-deleted ones, by number.
// Used by the numbering store and tests.
func (r *OrderRepo) All(ctx context.Context) ([]po.PurchaseOrder, error) {
	var out []po.PurchaseOrder
	err := r.s.read(ctx, func(st *state) error {
		out = allOrders(st)
		return nil
	})
	return out, err
}

// Links returns every link of orderID.
func (r *OrderRepo) Links(ctx context.Context, orderID id.ID) ([]po.PrDetailLink, error) {
	var out []po.PrDetailLink
	err := r.s.read(ctx, func(st *state) error {
		for _, l := range st.links {
			if d, ok := st.orderDetails[l.PoDetailID]; ok && d.PurchaseOrderID == orderID {
				out = append(out, l)
			}
		}
		slices.SortFunc(out, func(a, b po.PrDetailLink) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
		return nil
	})
	return out, err
}

func allOrders(st *state) []po.PurchaseOrder {
	out := make([]po.PurchaseOrder, 0, len(st.orders))
	for _, o := range st.orders {
		out = append(out, storedOrder(&o))
	}
	slices.SortFunc(out, func(a, b po.PurchaseOrder) int { return cmp.Compare(a.PoNo, b.PoNo) })
	return out
}

func checkDetail(st *state, detail *po.Detail, expectedVersion int) (po.Detail, error) {
	cur, ok := st.orderDetails[detail.ID]
	if !ok || cur.PurchaseOrderID != detail.PurchaseOrderID || cur.IsDeleted() {
		return po.Detail{}, apperror.NewNotFound(detailEntity, detail.ID)
	}
	if cur.DocVersion != expectedVersion {
		return po.Detail{}, apperror.NewConflict(detailEntity, detail.ID, expectedVersion, cur.DocVersion)
	}
	return cur, nil
}

func activeDetails(st *state, orderID id.ID) []po.Detail {
	var out []po.Detail
	for _, d := range st.orderDetails {
		if d.PurchaseOrderID == orderID && !d.IsDeleted() {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b po.Detail) int { return cmp.Compare(a.SequenceNo, b.SequenceNo) })
	return out
}

func detailLinks(st *state, detailID id.ID) []po.PrDetailLink {
	var out []po.PrDetailLink
	for _, l := range st.links {
		if l.PoDetailID == detailID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b po.PrDetailLink) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	return out
}

// storedOrder copies o with its slices so stored and returned values never alias.
func storedOrder(o *po.PurchaseOrder) po.PurchaseOrder {
	c := *o
	c.History = slices.Clone(o.History)
	c.Assignees = slices.Clone(o.Assignees)
	c.Details = nil
	return c
}
