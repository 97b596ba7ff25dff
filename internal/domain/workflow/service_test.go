package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/core/apperror"
	appctx "procurement/internal/core/context"
	"procurement/internal/core/entity"
	"procurement/internal/core/id"
	"procurement/internal/domain/directory"
	"procurement/internal/domain/notification"
	po "procurement/internal/domain/purchase_order"
	"procurement/internal/domain/workflow"
	"procurement/internal/infrastructure/storage/memory"
	navigators "procurement/internal/infrastructure/workflow"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg notification.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return nil
}

// blockingNavigator never answers Navigate before the deadline.
type blockingNavigator struct {
	workflow.Navigator
}

func (b blockingNavigator) Navigate(ctx context.Context, _ workflow.NavigateRequest) (*workflow.Navigation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fixture struct {
	store      *memory.Store
	nav        workflow.Navigator
	sender     *notification.Sender
	dispatched *recordingDispatcher
	svc        *workflow.ApprovalService
	order      *po.PurchaseOrder
	detailID   id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.Workflows().Put(ctx, workflow.Definition{
		ID:   "po-default",
		Name: "PO Approval",
		Stages: []workflow.StageDefinition{
			{StageInfo: workflow.StageInfo{Name: "Create", Role: "create", AssignedUsers: []string{"buyer-1"}, CreatorAccess: true}},
			{StageInfo: workflow.StageInfo{Name: "HOD", Role: "approve", AssignedUsers: []string{"hod-1"}}},
			{StageInfo: workflow.StageInfo{Name: "Completed"}},
		},
	}))
	require.NoError(t, store.Directory().Seed(ctx,
		directory.UserProfile{ID: "buyer-1", Name: "Bea Buyer", Department: "Purchasing"},
		directory.UserProfile{ID: "clerk-2", Name: "Carl Clerk", Department: "Purchasing"},
		directory.UserProfile{ID: "hod-1", Name: "Hana Head", Department: "Finance"},
		directory.UserProfile{ID: "sales-9", Name: "Sam Sales", Department: "Sales"},
	))

	nav, err := navigators.NewLocalNavigator(store.Workflows())
	require.NoError(t, err)

	order := &po.PurchaseOrder{
		ID:            id.New(),
		PoNo:          "PO24030001",
		Status:        po.StatusDraft,
		VendorID:      id.New(),
		VendorName:    "Alpha Supplies",
		CurrencyID:    id.New(),
		CurrencyName:  "USD",
		ExchangeRate:  decimal.NewFromInt(1),
		OrderDate:     now,
		BuyerID:       "buyer-1",
		BuyerName:     "Bea Buyer",
		WorkflowID:    "po-default",
		WorkflowName:  "PO Approval",
		CurrentStage:  "Create",
		PreviousStage: po.NoStage,
		NextStage:     "HOD",
		Assignees:     po.Assignees{"buyer-1"},
		History:       po.History{{Action: po.ActionCreated, At: now, UserID: "buyer-1", FromStage: po.NoStage, ToStage: "Create"}},
		Totals: po.Totals{
			TotalQty:    decimal.NewFromInt(10),
			TotalPrice:  decimal.NewFromInt(50),
			TotalTax:    decimal.RequireFromString("3.5"),
			TotalAmount: decimal.RequireFromString("53.5"),
		},
		DocVersion:  1,
		AuditFields: entity.AuditFields{CreatedAt: now, CreatedBy: "buyer-1", UpdatedAt: now, UpdatedBy: "buyer-1"},
	}
	require.NoError(t, store.Orders().Create(ctx, order))

	detail := po.Detail{
		ID:              id.New(),
		PurchaseOrderID: order.ID,
		SequenceNo:      1,
		ProductID:       id.New(),
		ProductName:     "Paper A4",
		OrderQty:        decimal.NewFromInt(10),
		FocQty:          decimal.Zero,
		Price:           decimal.NewFromInt(5),
		DiscountRate:    decimal.Zero,
		TaxRate:         decimal.NewFromInt(7),
		DocVersion:      1,
	}
	detail.Recalculate()
	require.NoError(t, store.Orders().CreateDetail(ctx, &detail))

	f := &fixture{
		store:      store,
		nav:        nav,
		dispatched: &recordingDispatcher{},
		order:      order,
		detailID:   detail.ID,
	}
	f.sender = notification.NewSender(f.dispatched, time.Second, 2)
	f.svc = f.service(nav, 0)
	return f
}

func (f *fixture) service(nav workflow.Navigator, navTimeout time.Duration) *workflow.ApprovalService {
	return workflow.NewApprovalService(
		f.store.Orders(),
		f.store.Catalogs(),
		f.store.Directory(),
		nav,
		f.store.Audit(),
		f.sender,
		f.store,
		workflow.Config{
			NavigationTimeout: navTimeout,
			Now:               func() time.Time { return now },
		},
	)
}

func (f *fixture) reload(t *testing.T) *po.PurchaseOrder {
	t.Helper()
	o, err := f.store.Orders().Get(context.Background(), f.order.ID)
	require.NoError(t, err)
	return o
}

func as(userID, department string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: userID, Name: userID, Department: department})
}

func version(v int) *int { return &v }

func TestApprove_MovesToNextStage(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create", ExpectedDocVersion: version(1)})
	require.NoError(t, err)
	f.sender.Wait()

	assert.Equal(t, po.StatusInProgress, got.Status)
	assert.Equal(t, "HOD", got.CurrentStage)
	assert.Equal(t, "Create", got.PreviousStage)
	assert.Equal(t, "Completed", got.NextStage)
	assert.Equal(t, po.Assignees{"hod-1"}, got.Assignees)
	assert.Equal(t, 2, got.DocVersion)
	assert.Nil(t, got.ApprovalDate)
	require.Len(t, got.History, 2)
	last := got.History[1]
	assert.Equal(t, po.ActionApproved, last.Action)
	assert.Equal(t, "Create", last.FromStage)
	assert.Equal(t, "HOD", last.ToStage)
	assert.Equal(t, "buyer-1", last.UserID)
	assert.Len(t, got.Details, 1)

	require.Len(t, f.dispatched.msgs, 1)
	assert.Equal(t, []string{"hod-1"}, f.dispatched.msgs[0].Recipients)
	assert.Equal(t, "assigned", f.dispatched.msgs[0].Metadata.Action)

	assert.Len(t, f.store.Audit().Entries(context.Background()), 1)
}

func TestApprove_CreatorAccessByDepartment(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Approve(as("clerk-2", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create"})
	require.NoError(t, err)
	assert.Equal(t, "HOD", got.CurrentStage)
}

func TestApprove_CompletesWorkflow(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create"})
	require.NoError(t, err)

	got, err := f.svc.Approve(as("hod-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "approve"})
	require.NoError(t, err)
	f.sender.Wait()

	assert.Equal(t, po.StatusSent, got.Status)
	assert.Equal(t, "Completed", got.CurrentStage)
	assert.Equal(t, "HOD", got.PreviousStage)
	assert.Equal(t, po.NoStage, got.NextStage)
	assert.Empty(t, got.Assignees)
	require.NotNil(t, got.ApprovalDate)
	assert.True(t, now.Equal(*got.ApprovalDate))
	assert.Equal(t, 3, got.DocVersion)
	require.Len(t, got.History, 3)
	assert.Equal(t, "HOD", got.History[2].FromStage)
	assert.Equal(t, po.NoStage, got.History[2].ToStage)

	require.Len(t, f.dispatched.msgs, 2)
	var final notification.Message
	for _, m := range f.dispatched.msgs {
		if m.Metadata.Action == "approved" {
			final = m
		}
	}
	assert.Equal(t, []string{"buyer-1"}, final.Recipients)

	_, err = f.svc.Approve(as("hod-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "approve"})
	require.Error(t, err, "a sent order has no stage left to approve")
}

func TestApprove_AppliesLineEdits(t *testing.T) {
	f := newFixture(t)
	qty := decimal.NewFromInt(20)

	got, err := f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{
		DeclaredRole: "create",
		LineEdits:    []po.LineEdit{{DetailID: f.detailID, DocVersion: version(1), OrderQty: &qty}},
	})
	require.NoError(t, err)

	require.Len(t, got.Details, 1)
	d := got.Details[0]
	assert.Equal(t, 2, d.DocVersion)
	assert.True(t, decimal.NewFromInt(100).Equal(d.NetAmount))
	assert.True(t, decimal.NewFromInt(107).Equal(d.TotalAmount))
	assert.True(t, decimal.NewFromInt(20).Equal(got.TotalQty))
	assert.True(t, decimal.NewFromInt(107).Equal(got.TotalAmount))
}

func TestApprove_ViewOnlyIsForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(as("sales-9", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	got := f.reload(t)
	assert.Equal(t, 1, got.DocVersion)
	assert.Equal(t, "Create", got.CurrentStage)
	assert.Len(t, got.History, 1)
}

func TestApprove_DeclaredRoleMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "approve"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))

	got := f.reload(t)
	assert.Equal(t, 1, got.DocVersion)
	assert.Equal(t, po.StatusDraft, got.Status)
	assert.Len(t, got.History, 1)
}

func TestApprove_RequiresCaller(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(context.Background(), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestApprove_StaleVersion(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create", ExpectedDocVersion: version(7)})
	assert.True(t, apperror.IsConflict(err))

	qty := decimal.NewFromInt(3)
	_, err = f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{
		DeclaredRole: "create",
		LineEdits:    []po.LineEdit{{DetailID: f.detailID, DocVersion: version(4), OrderQty: &qty}},
	})
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, 1, f.reload(t).DocVersion)
}

func TestApprove_UnknownLine(t *testing.T) {
	f := newFixture(t)
	qty := decimal.NewFromInt(3)

	_, err := f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{
		DeclaredRole: "create",
		LineEdits:    []po.LineEdit{{DetailID: id.New(), OrderQty: &qty}},
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestApprove_NavigationTimeout(t *testing.T) {
	f := newFixture(t)
	svc := f.service(blockingNavigator{Navigator: f.nav}, 20*time.Millisecond)

	_, err := svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUpstreamUnavailable, appErr.Code)
	assert.Equal(t, "timeout", appErr.Details["reason"])

	got := f.reload(t)
	assert.Equal(t, 1, got.DocVersion)
	assert.Equal(t, "Create", got.CurrentStage)
}

func TestApprove_ClosedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.reload(t)
	order.Status = po.StatusClosed
	require.NoError(t, f.store.Orders().UpdateHeader(ctx, order, 1))

	_, err := f.svc.Approve(as("buyer-1", ""), f.order.ID, workflow.ApproveRequest{DeclaredRole: "create"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestApprove_OrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(as("buyer-1", ""), id.New(), workflow.ApproveRequest{DeclaredRole: "create"})
	assert.True(t, apperror.IsNotFound(err))
}
