package memory

import (
	"context"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
	pr "procurement/internal/domain/purchase_request"
)

// RequestRepo implements purchase_request.Repository.
type RequestRepo struct {
	s *Store
}

var _ pr.Repository = (*RequestRepo)(nil)

// Add stores a request with its lines. Line header fields are filled from req.
func (r *RequestRepo) Add(ctx context.Context, req pr.Request, details ...pr.Detail) error {
	return r.s.write(ctx, func(st *state) error {
		st.requests[req.ID] = req
		for _, d := range details {
			d.RequestID = req.ID
			d.RequestNo = req.RequestNo
			d.RequestorID = req.RequestorID
			st.requestDetails[d.ID] = d
		}
		return nil
	})
}

// Get returns a request header.
func (r *RequestRepo) Get(ctx context.Context, requestID id.ID) (*pr.Request, error) {
	var out *pr.Request
	err := r.s.read(ctx, func(st *state) error {
		req, ok := st.requests[requestID]
		if !ok {
			return apperror.NewNotFound("purchase_request", requestID)
		}
		out = &req
		return nil
	})
	return out, err
}

// FindApprovedDetails implements purchase_request.Repository.
func (r *RequestRepo) FindApprovedDetails(ctx context.Context, detailIDs []id.ID) ([]pr.Detail, error) {
	var out []pr.Detail
	err := r.s.read(ctx, func(st *state) error {
		out = approvedDetails(st, detailIDs)
		return nil
	})
	return out, err
}

// LockApprovedDetails implements purchase_request.Repository. Writers are
// already serialized, so holding the transaction is the lock.
func (r *RequestRepo) LockApprovedDetails(ctx context.Context, detailIDs []id.ID) ([]pr.Detail, error) {
	if !r.s.InTransaction(ctx) {
		return nil, ErrNoTransaction
	}
	return r.FindApprovedDetails(ctx, detailIDs)
}

// MarkCompleted implements purchase_request.Repository.
func (r *RequestRepo) MarkCompleted(ctx context.Context, requestIDs []id.ID, _ string) (int, error) {
	n := 0
	err := r.s.write(ctx, func(st *state) error {
		for _, rid := range requestIDs {
			req, ok := st.requests[rid]
			if !ok || req.DeletedAt != nil || req.Status != pr.StatusApproved {
				continue
			}
			req.Status = pr.StatusCompleted
			st.requests[rid] = req
			n++
		}
		return nil
	})
	return n, err
}

func approvedDetails(st *state, detailIDs []id.ID) []pr.Detail {
	out := make([]pr.Detail, 0, len(detailIDs))
	for _, did := range detailIDs {
		d, ok := st.requestDetails[did]
		if !ok {
			continue
		}
		req, ok := st.requests[d.RequestID]
		if !ok || req.DeletedAt != nil || req.Status != pr.StatusApproved {
			continue
		}
		d.RequestNo = req.RequestNo
		d.RequestorID = req.RequestorID
		out = append(out, d)
	}
	return out
}
