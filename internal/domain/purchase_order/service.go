package purchase_order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"procurement/internal/core/apperror"
	appctx "procurement/internal/core/context"
	"procurement/internal/core/id"
	"procurement/internal/core/tx"
	"procurement/internal/domain/audit"
	"procurement/internal/domain/catalogs"
	"procurement/pkg/logger"
)

// EntityName is used in errors and audit records.
const EntityName = "purchase_order"

// Config tunes the order service.
type Config struct {
	// WriteTimeout bounds every write transaction (0 = unbounded)
	WriteTimeout time.Duration

	// Now overrides the clock, mainly for tests
	Now func() time.Time
}

// Service provides manual maintenance of orders: header edits, line CRUD
// while in draft, and the cancel/close/delete transitions.
type Service struct {
	repo      Repository
	catalogs  catalogs.Lookup
	audit     audit.Recorder
	txManager tx.Manager
	cfg       Config
}

// NewService creates a new purchase order service.
func NewService(repo Repository, lookup catalogs.Lookup, recorder audit.Recorder, txManager tx.Manager, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		catalogs:  lookup,
		audit:     recorder,
		txManager: txManager,
		cfg:       cfg,
	}
}

// HeaderUpdate carries editable header fields. Nil fields are unchanged.
type HeaderUpdate struct {
	DocVersion   int              `json:"docVersion"`
	DeliveryDate *time.Time       `json:"deliveryDate,omitempty"`
	CreditTermID *id.ID           `json:"creditTermId,omitempty"`
	ExchangeRate *decimal.Decimal `json:"exchangeRate,omitempty"`
	Note         *string          `json:"note,omitempty"`
}

// Get retrieves an order with its active details.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	details, err := s.repo.ListDetails(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list details: %w", err)
	}
	order.Details = details

	return order, nil
}

// UpdateHeader edits the header of an order that has not been sent.
func (s *Service) UpdateHeader(ctx context.Context, orderID id.ID, in HeaderUpdate) (*PurchaseOrder, error) {
	if in.ExchangeRate != nil && !in.ExchangeRate.IsPositive() {
		return nil, apperror.NewInvalidArgument("exchangeRate must be positive").WithDetail("field", "exchangeRate")
	}

	err := s.write(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID, in.DocVersion)
		if err != nil {
			return err
		}
		if !order.Approvable() {
			return statusError(order, "update")
		}

		if in.DeliveryDate != nil {
			order.DeliveryDate = in.DeliveryDate
		}
		if in.ExchangeRate != nil {
			order.ExchangeRate = *in.ExchangeRate
		}
		if in.Note != nil {
			order.Note = *in.Note
		}
		if in.CreditTermID != nil {
			term, err := s.catalogs.CreditTerm(ctx, *in.CreditTermID)
			if err != nil {
				return err
			}
			order.CreditTermID = &term.ID
			order.CreditTermName = term.Name
			order.CreditTermDays = term.Days
		}

		order.Touch(s.cfg.Now().UTC(), appctx.GetUserID(ctx))
		if err := s.repo.UpdateHeader(ctx, order, in.DocVersion); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.NewEntry(ctx, EntityName, order.ID, audit.ActionUpdate, map[string]any{
			"doc_version": order.DocVersion,
		}))
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, orderID)
}

// AddDetail appends a line to a draft order. docVersion is the order's version.
func (s *Service) AddDetail(ctx context.Context, orderID id.ID, docVersion int, in DetailInput) (*PurchaseOrder, error) {
	err := s.write(ctx, func(ctx context.Context) error {
		order, err := s.loadEditable(ctx, orderID)
		if err != nil {
			return err
		}
		if order.DocVersion != docVersion {
			return apperror.NewConflict(EntityName, orderID, docVersion, order.DocVersion)
		}

		detail, err := in.Build(ctx, s.catalogs)
		if err != nil {
			return err
		}
		seq, err := s.repo.NextSequenceNo(ctx, orderID)
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		detail.PurchaseOrderID = orderID
		detail.SequenceNo = seq
		detail.Stamp(s.cfg.Now().UTC(), appctx.GetUserID(ctx))

		if err := s.repo.CreateDetail(ctx, detail); err != nil {
			return fmt.Errorf("create detail: %w", err)
		}
		return s.refreshTotals(ctx, order, "add_detail", detail.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, orderID)
}

// UpdateDetail edits a line of a draft order. The edit must carry the
// line's doc_version.
func (s *Service) UpdateDetail(ctx context.Context, orderID id.ID, edit LineEdit) (*PurchaseOrder, error) {
	if edit.DocVersion == nil {
		return nil, apperror.NewInvalidArgument("docVersion is required").WithDetail("field", "docVersion")
	}

	err := s.write(ctx, func(ctx context.Context) error {
		order, err := s.loadEditable(ctx, orderID)
		if err != nil {
			return err
		}
		detail, err := s.repo.GetDetail(ctx, orderID, edit.DetailID)
		if err != nil {
			return err
		}
		if err := edit.Apply(ctx, detail, s.catalogs); err != nil {
			return err
		}
		detail.Touch(s.cfg.Now().UTC(), appctx.GetUserID(ctx))

		if err := s.repo.UpdateDetail(ctx, detail, *edit.DocVersion); err != nil {
			return err
		}
		return s.refreshTotals(ctx, order, "update_detail", detail.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, orderID)
}

// DeleteDetail soft-deletes a line of a draft order. docVersion is the line's version.
func (s *Service) DeleteDetail(ctx context.Context, orderID, detailID id.ID, docVersion int) (*PurchaseOrder, error) {
	err := s.write(ctx, func(ctx context.Context) error {
		order, err := s.loadEditable(ctx, orderID)
		if err != nil {
			return err
		}
		detail, err := s.repo.GetDetail(ctx, orderID, detailID)
		if err != nil {
			return err
		}
		detail.MarkDeleted(s.cfg.Now().UTC(), appctx.GetUserID(ctx))

		if err := s.repo.SoftDeleteDetail(ctx, detail, docVersion); err != nil {
			return err
		}
		return s.refreshTotals(ctx, order, "delete_detail", detail.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, orderID)
}

// Cancel closes an order that has not been sent yet.
func (s *Service) Cancel(ctx context.Context, orderID id.ID, docVersion int, note string) (*PurchaseOrder, error) {
	return s.transition(ctx, orderID, docVersion, note, ActionCancelled, audit.ActionCancel, StatusDraft, StatusInProgress)
}

// Close closes an order that was sent to the vendor.
func (s *Service) Close(ctx context.Context, orderID id.ID, docVersion int, note string) (*PurchaseOrder, error) {
	return s.transition(ctx, orderID, docVersion, note, ActionClosed, audit.ActionClose, StatusSent, StatusPartial)
}

// Delete soft-deletes a draft order. Rows are kept.
func (s *Service) Delete(ctx context.Context, orderID id.ID, docVersion int) error {
	err := s.write(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID, docVersion)
		if err != nil {
			return err
		}
		if order.Status != StatusDraft {
			return statusError(order, "delete")
		}

		order.MarkDeleted(s.cfg.Now().UTC(), appctx.GetUserID(ctx))
		if err := s.repo.SoftDelete(ctx, order, docVersion); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.NewEntry(ctx, EntityName, order.ID, audit.ActionDelete, map[string]any{
			"po_no": order.PoNo,
		}))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase order deleted", "id", orderID)
	return nil
}

func (s *Service) transition(
	ctx context.Context,
	orderID id.ID,
	docVersion int,
	note string,
	action HistoryAction,
	auditAction audit.Action,
	allowed ...Status,
) (*PurchaseOrder, error) {
	err := s.write(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID, docVersion)
		if err != nil {
			return err
		}
		if !slices.Contains(allowed, order.Status) {
			return statusError(order, string(action))
		}

		now := s.cfg.Now().UTC()
		user := appctx.GetUser(ctx)
		entry := HistoryEntry{
			Action:    action,
			At:        now,
			FromStage: order.CurrentStage,
			ToStage:   NoStage,
			Note:      note,
		}
		if user != nil {
			entry.UserID = user.UserID
			entry.UserName = user.Name
		}

		from := order.Status
		order.Status = StatusClosed
		order.NextStage = NoStage
		order.Assignees = Assignees{}
		order.Touch(now, entry.UserID)

		if err := s.repo.UpdateHeader(ctx, order, docVersion); err != nil {
			return err
		}
		if err := s.repo.AppendHistory(ctx, order.ID, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(ctx, EntityName, order.ID, auditAction, map[string]any{
			"from_status": from,
			"to_status":   order.Status,
			"note":        note,
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order "+string(action), "id", orderID)
	return s.Get(ctx, orderID)
}

// refreshTotals recomputes header totals from the stored active lines and
// bumps the header version.
func (s *Service) refreshTotals(ctx context.Context, order *PurchaseOrder, op string, detailID id.ID) error {
	totals, err := s.repo.SumActiveDetails(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("sum details: %w", err)
	}
	order.Totals = totals
	order.Touch(s.cfg.Now().UTC(), appctx.GetUserID(ctx))

	if err := s.repo.UpdateHeader(ctx, order, order.DocVersion); err != nil {
		return err
	}
	return s.audit.Record(ctx, audit.NewEntry(ctx, EntityName, order.ID, audit.ActionUpdate, map[string]any{
		"operation":    op,
		"detail_id":    detailID,
		"total_amount": totals.TotalAmount,
	}))
}

func (s *Service) load(ctx context.Context, orderID id.ID, docVersion int) (*PurchaseOrder, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DocVersion != docVersion {
		return nil, apperror.NewConflict(EntityName, orderID, docVersion, order.DocVersion)
	}
	return order, nil
}

func (s *Service) loadEditable(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Editable() {
		return nil, statusError(order, "edit details")
	}
	return order, nil
}

func (s *Service) write(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.RunDetached(ctx, s.txManager, s.cfg.WriteTimeout, fn)
}

func statusError(order *PurchaseOrder, op string) error {
	return apperror.NewInvalidArgument(fmt.Sprintf("cannot %s a purchase order in status %s", op, order.Status)).
		WithDetail("id", order.ID).
		WithDetail("status", order.Status)
}
