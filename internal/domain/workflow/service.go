package workflow

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/core/apperror"
	appctx "procurement/internal/core/context"
	"procurement/internal/core/id"
	"procurement/internal/core/tx"
	"procurement/internal/domain/audit"
	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/directory"
	"procurement/internal/domain/notification"
	po "procurement/internal/domain/purchase_order"
	"procurement/pkg/logger"
)

const navigatorService = "workflow navigator"

// ApproveRequest is one approval of the order's current stage.
type ApproveRequest struct {
	// DeclaredRole is the role the client believes it acts in. It must
	// match the role resolved from the current stage.
	DeclaredRole string `json:"role"`

	// LineEdits are applied to the order lines as part of the approval
	LineEdits []po.LineEdit `json:"details"`

	// ExpectedDocVersion, when set, must equal the order version
	ExpectedDocVersion *int `json:"docVersion,omitempty"`
}

// Config tunes the approval service.
type Config struct {
	NavigationTimeout time.Duration
	WriteTimeout      time.Duration
	Now               func() time.Time
}

// ApprovalService advances orders through their workflow.
type ApprovalService struct {
	orders    po.Repository
	catalogs  catalogs.Lookup
	directory directory.Directory
	navigator Navigator
	audit     audit.Recorder
	notifier  *notification.Sender
	txManager tx.Manager
	cfg       Config
}

// NewApprovalService creates the approval service.
func NewApprovalService(
	orders po.Repository,
	lookup catalogs.Lookup,
	dir directory.Directory,
	navigator Navigator,
	recorder audit.Recorder,
	notifier *notification.Sender,
	txManager tx.Manager,
	cfg Config,
) *ApprovalService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &ApprovalService{
		orders:    orders,
		catalogs:  lookup,
		directory: dir,
		navigator: navigator,
		audit:     recorder,
		notifier:  notifier,
		txManager: txManager,
		cfg:       cfg,
	}
}

// Approve approves the current stage of an order as the caller in ctx.
func (s *ApprovalService) Approve(ctx context.Context, orderID id.ID, req ApproveRequest) (*po.PurchaseOrder, error) {
	caller := appctx.GetUser(ctx)
	if caller == nil || caller.UserID == "" {
		return nil, apperror.NewForbidden("caller identity is required")
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	role, err := s.callerRole(ctx, order, caller)
	if err != nil {
		return nil, err
	}
	if role == RoleViewOnly {
		return nil, apperror.NewForbidden("caller cannot act on the current stage").
			WithDetail("stage", order.CurrentStage)
	}
	if req.DeclaredRole != role {
		return nil, apperror.NewInvalidArgument("declared role does not match the current stage").
			WithDetail("declared_role", req.DeclaredRole).
			WithDetail("stage", order.CurrentStage)
	}
	if !order.Approvable() {
		return nil, apperror.NewInvalidArgument(fmt.Sprintf("purchase order in status %s cannot be approved", order.Status)).
			WithDetail("status", order.Status)
	}
	if req.ExpectedDocVersion != nil && *req.ExpectedDocVersion != order.DocVersion {
		return nil, apperror.NewConflict(po.EntityName, order.ID, *req.ExpectedDocVersion, order.DocVersion)
	}

	details, edited, err := s.applyEdits(ctx, order.ID, req.LineEdits)
	if err != nil {
		return nil, err
	}
	totals := po.SumDetails(details)

	nav, err := s.navigate(ctx, NavigateRequest{
		WorkflowID:    order.WorkflowID,
		CurrentStage:  order.CurrentStage,
		PreviousStage: order.PreviousStage,
		Payload:       Payload{DocType: po.DocType, Amount: totals.TotalAmount},
	})
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now().UTC()
	readVersion := order.DocVersion
	entry := advance(order, nav, caller, now)
	order.Totals = totals
	order.Touch(now, caller.UserID)

	err = tx.RunDetached(ctx, s.txManager, s.cfg.WriteTimeout, func(ctx context.Context) error {
		for _, e := range edited {
			if err := s.orders.UpdateDetail(ctx, e.detail, e.version); err != nil {
				return err
			}
		}
		if len(edited) > 0 {
			stored, err := s.orders.SumActiveDetails(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("sum details: %w", err)
			}
			order.Totals = stored
		}
		if err := s.orders.UpdateHeader(ctx, order, readVersion); err != nil {
			return err
		}
		if err := s.orders.AppendHistory(ctx, order.ID, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(ctx, po.EntityName, order.ID, audit.ActionApprove, map[string]any{
			"from_stage":   entry.FromStage,
			"to_stage":     entry.ToStage,
			"status":       order.Status,
			"edited_lines": len(edited),
			"total_amount": order.TotalAmount,
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order approved",
		"id", order.ID,
		"po_no", order.PoNo,
		"from_stage", entry.FromStage,
		"to_stage", entry.ToStage,
		"status", order.Status)

	s.notifier.Send(ctx, approvalMessage(order, nav))

	result, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	result.Details, err = s.orders.ListDetails(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list details: %w", err)
	}
	return result, nil
}

// advance moves the order pointers according to nav and returns the
// history entry for the transition.
func advance(order *po.PurchaseOrder, nav *Navigation, caller *appctx.UserContext, now time.Time) po.HistoryEntry {
	from := order.CurrentStage
	entry := po.HistoryEntry{
		Action:    po.ActionApproved,
		At:        now,
		UserID:    caller.UserID,
		UserName:  caller.Name,
		FromStage: from,
	}

	resolved := nav.CurrentStageInfo.Name
	if resolved == "" {
		resolved = from
	}

	if nav.Final() {
		entry.ToStage = po.NoStage
		order.PreviousStage = from
		order.CurrentStage = resolved
		order.NextStage = po.NoStage
		order.Assignees = po.Assignees{}
		order.Status = po.StatusSent
		order.ApprovalDate = &now
		return entry
	}

	entry.ToStage = resolved
	order.PreviousStage = nav.PreviousStep
	if order.PreviousStage == "" {
		order.PreviousStage = from
	}
	order.CurrentStage = resolved
	order.NextStage = nav.NextStageInfo.Name
	order.Assignees = po.NewAssignees(nav.CurrentStageInfo.AssignedUsers...)
	order.Status = po.StatusInProgress
	return entry
}

type editedDetail struct {
	detail  *po.Detail
	version int
}

// applyEdits loads the active lines and applies edits to working copies.
// It returns every line (edited or not) and the edited ones with the
// version they were read at.
func (s *ApprovalService) applyEdits(ctx context.Context, orderID id.ID, edits []po.LineEdit) ([]po.Detail, []editedDetail, error) {
	details, err := s.orders.ListDetails(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("list details: %w", err)
	}
	if len(edits) == 0 {
		return details, nil, nil
	}

	index := make(map[id.ID]int, len(details))
	for i := range details {
		index[details[i].ID] = i
	}

	var edited []editedDetail
	seen := make(map[id.ID]bool, len(edits))
	for _, e := range edits {
		i, ok := index[e.DetailID]
		if !ok {
			return nil, nil, apperror.NewNotFound("purchase_order_detail", e.DetailID)
		}
		d := &details[i]
		if e.DocVersion != nil && *e.DocVersion != d.DocVersion {
			return nil, nil, apperror.NewConflict("purchase_order_detail", d.ID, *e.DocVersion, d.DocVersion)
		}
		if !seen[d.ID] {
			edited = append(edited, editedDetail{detail: d, version: d.DocVersion})
			seen[d.ID] = true
		}
		if err := e.Apply(ctx, d, s.catalogs); err != nil {
			return nil, nil, err
		}
	}
	return details, edited, nil
}

// callerRole resolves the caller's role on the order's current stage.
func (s *ApprovalService) callerRole(ctx context.Context, order *po.PurchaseOrder, caller *appctx.UserContext) (string, error) {
	navCtx, cancel := s.withNavigationTimeout(ctx)
	defer cancel()

	stage, err := s.navigator.Stage(navCtx, order.WorkflowID, order.CurrentStage)
	if err != nil {
		return "", apperror.FromUpstream(navigatorService, err)
	}

	profiles, err := s.directory.Resolve(ctx, []string{caller.UserID, order.BuyerID})
	if err != nil {
		return "", fmt.Errorf("resolve users: %w", err)
	}
	var callerProfile, buyerProfile *directory.UserProfile
	for i := range profiles {
		if profiles[i].ID == caller.UserID {
			callerProfile = &profiles[i]
		}
		if profiles[i].ID == order.BuyerID {
			buyerProfile = &profiles[i]
		}
	}
	if callerProfile == nil && caller.Department != "" {
		callerProfile = &directory.UserProfile{ID: caller.UserID, Name: caller.Name, Department: caller.Department}
	}

	return ResolveRole(stage, caller.UserID, callerProfile, buyerProfile), nil
}

func (s *ApprovalService) navigate(ctx context.Context, req NavigateRequest) (*Navigation, error) {
	navCtx, cancel := s.withNavigationTimeout(ctx)
	defer cancel()

	nav, err := s.navigator.Navigate(navCtx, req)
	if err != nil {
		logger.Warn(ctx, "workflow navigation failed", "error", err, "workflow_id", req.WorkflowID, "stage", req.CurrentStage)
		return nil, apperror.FromUpstream(navigatorService, err)
	}
	return nav, nil
}

func (s *ApprovalService) withNavigationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.NavigationTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	}
	return context.WithCancel(ctx)
}

func approvalMessage(order *po.PurchaseOrder, nav *Navigation) notification.Message {
	meta := notification.Metadata{
		DocType:    po.DocType,
		DocumentID: order.ID.String(),
		DocumentNo: order.PoNo,
	}
	if nav.Final() {
		meta.Action = "approved"
		return notification.Message{
			Recipients: po.NewAssignees(order.BuyerID, order.CreatedBy),
			Title:      "Purchase order approved",
			Body:       fmt.Sprintf("Purchase order %s has been fully approved.", order.PoNo),
			Metadata:   meta,
		}
	}
	meta.Action = "assigned"
	return notification.Message{
		Recipients: order.Assignees,
		Title:      "Purchase order awaiting approval",
		Body:       fmt.Sprintf("Purchase order %s is waiting for your approval at stage %s.", order.PoNo, order.CurrentStage),
		Metadata:   meta,
	}
}
