package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "procurement/internal/core/context"
	"procurement/internal/core/id"
	"procurement/internal/domain/auth"
	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/consolidation"
	"procurement/internal/domain/directory"
	"procurement/internal/domain/notification"
	po "procurement/internal/domain/purchase_order"
	pr "procurement/internal/domain/purchase_request"
	"procurement/internal/domain/workflow"
	v1 "procurement/internal/infrastructure/http/v1"
	"procurement/internal/infrastructure/http/v1/handlers"
	"procurement/internal/infrastructure/notify"
	"procurement/internal/infrastructure/numerator"
	"procurement/internal/infrastructure/storage/memory"
	navigators "procurement/internal/infrastructure/workflow"
	"procurement/pkg/logger"
)

var now = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

type api struct {
	t      *testing.T
	server http.Handler
	jwt    *auth.JWTService
	lines  []id.ID
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	vendor, usd, box := id.New(), id.New(), id.New()
	require.NoError(t, store.Catalogs().Seed(ctx,
		catalogs.Vendor{ID: vendor, Code: "V1", Name: "Alpha Supplies"},
		catalogs.Currency{ID: usd, Code: "USD", Name: "USD", ExchangeRate: decimal.NewFromInt(1)},
		catalogs.Unit{ID: box, Name: "Box"},
	))
	require.NoError(t, store.Directory().Seed(ctx,
		directory.UserProfile{ID: "buyer-1", Name: "Bea Buyer", Department: "Purchasing"},
		directory.UserProfile{ID: "hod-1", Name: "Hana Head", Department: "Finance"},
	))
	require.NoError(t, store.Workflows().Put(ctx, workflow.Definition{
		ID:   "po-default",
		Name: "PO Approval",
		Stages: []workflow.StageDefinition{
			{StageInfo: workflow.StageInfo{Name: "Create", Role: "create", AssignedUsers: []string{"buyer-1"}}},
			{StageInfo: workflow.StageInfo{Name: "HOD", Role: "approve", AssignedUsers: []string{"hod-1"}}},
			{StageInfo: workflow.StageInfo{Name: "Completed"}},
		},
	}))

	requestID, lineID := id.New(), id.New()
	require.NoError(t, store.Requests().Add(ctx,
		pr.Request{ID: requestID, RequestNo: "PR-0001", Status: pr.StatusApproved, RequestorID: "req-1"},
		pr.Detail{
			ID: lineID, RequestID: requestID, RequestNo: "PR-0001", RequestorID: "req-1",
			ProductID: id.New(), ProductName: "Paper A4",
			VendorID: &vendor, VendorName: "Alpha Supplies",
			CurrencyID: &usd, CurrencyName: "USD", ExchangeRate: decimal.NewFromInt(1),
			ApprovedQty: decimal.NewFromInt(10), FocQty: decimal.Zero,
			OrderUnitID: &box, OrderUnitName: "Box",
			Price: decimal.NewFromInt(5), SubTotalPrice: decimal.NewFromInt(50), NetAmount: decimal.NewFromInt(50),
			TaxRate: decimal.NewFromInt(7), TaxAmount: decimal.RequireFromString("3.5"), TotalAmount: decimal.RequireFromString("53.5"),
		},
	))

	nav, err := navigators.NewLocalNavigator(store.Workflows())
	require.NoError(t, err)
	sender := notification.NewSender(notify.Log{}, time.Second, 1)
	t.Cleanup(sender.Wait)
	clock := func() time.Time { return now }

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       logger.NewNop(),
		JWTValidator: jwtService,
		Consolidation: consolidation.NewService(
			store.Requests(), store.Orders(), store.Catalogs(),
			numerator.New(store.Numbering(), store.Numbering()),
			nav, store.Audit(), sender, store,
			consolidation.Config{WorkflowID: "po-default", NavigationTimeout: time.Second, Now: clock},
		),
		Approval: workflow.NewApprovalService(
			store.Orders(), store.Catalogs(), store.Directory(), nav, store.Audit(), sender, store,
			workflow.Config{NavigationTimeout: time.Second, Now: clock},
		),
		Orders: po.NewService(store.Orders(), store.Catalogs(), store.Audit(), store, po.Config{Now: clock}),
		Health: handlers.NewHealthHandler("memory", nil, "test"),
	})

	return &api{t: t, server: router, jwt: jwtService, lines: []id.ID{lineID}}
}

func (a *api) token(userID, dept string) string {
	a.t.Helper()
	token, _, err := a.jwt.GenerateAccessToken(appctx.UserContext{UserID: userID, Name: userID, Department: dept})
	require.NoError(a.t, err)
	return token
}

func (a *api) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (a *api) confirm(token string) map[string]any {
	a.t.Helper()
	w, body := a.do(http.MethodPost, "/api/v1/purchase-orders/confirm-pr", token,
		map[string]any{"prDetailIds": []string{a.lines[0].String()}})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	orders := body["orders"].([]any)
	require.Len(a.t, orders, 1)
	return orders[0].(map[string]any)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)

	w, body := a.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRequiresToken(t *testing.T) {
	a := newAPI(t)

	w, body := a.do(http.MethodPost, "/api/v1/purchase-orders/group-pr", "", map[string]any{"prDetailIds": []string{id.New().String()}})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestGroupPr(t *testing.T) {
	a := newAPI(t)
	token := a.token("buyer-1", "Purchasing")

	w, body := a.do(http.MethodPost, "/api/v1/purchase-orders/group-pr", token,
		map[string]any{"prDetailIds": []string{a.lines[0].String()}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	groups := body["groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, "Alpha Supplies", groups[0].(map[string]any)["vendorName"])

	w, body = a.do(http.MethodPost, "/api/v1/purchase-orders/group-pr", token, map[string]any{"prDetailIds": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	w, body = a.do(http.MethodPost, "/api/v1/purchase-orders/group-pr", token, map[string]any{"prDetailIds": []string{id.New().String()}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	w, _ = a.do(http.MethodPost, "/api/v1/purchase-orders/group-pr", token, map[string]any{"prDetailIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmAndApprove(t *testing.T) {
	a := newAPI(t)
	buyer := a.token("buyer-1", "Purchasing")
	hod := a.token("hod-1", "Finance")

	order := a.confirm(buyer)
	assert.Equal(t, "PO24050001", order["poNo"])
	assert.Equal(t, "draft", order["status"])
	assert.Equal(t, "Create", order["workflowCurrentStage"])
	orderPath := fmt.Sprintf("/api/v1/purchase-orders/%s", order["id"])

	// the buyer's stage role is "create"; a wrong declaration is rejected
	w, body := a.do(http.MethodPost, orderPath+"/approve", buyer, map[string]any{"role": "approve"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	w, body = a.do(http.MethodPost, orderPath+"/approve", hod, map[string]any{"role": "approve"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	w, body = a.do(http.MethodPost, orderPath+"/approve", buyer, map[string]any{"role": "create", "docVersion": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "in_progress", body["status"])
	assert.Equal(t, "HOD", body["workflowCurrentStage"])
	assert.EqualValues(t, 2, body["docVersion"])

	w, body = a.do(http.MethodPost, orderPath+"/approve", hod, map[string]any{"role": "approve", "docVersion": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", body["code"])

	w, body = a.do(http.MethodPost, orderPath+"/approve", hod, map[string]any{"role": "approve", "docVersion": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, "-", body["workflowNextStage"])
	assert.NotNil(t, body["approvalDate"])

	w, body = a.do(http.MethodGet, orderPath, hod, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["workflowHistory"], 3)
	assert.Len(t, body["details"], 1)

	// requests are consumed by the first confirmation
	w, _ = a.do(http.MethodPost, "/api/v1/purchase-orders/confirm-pr", buyer,
		map[string]any{"prDetailIds": []string{a.lines[0].String()}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetailLifecycle(t *testing.T) {
	a := newAPI(t)
	buyer := a.token("buyer-1", "Purchasing")

	order := a.confirm(buyer)
	orderPath := fmt.Sprintf("/api/v1/purchase-orders/%s", order["id"])
	detail := order["details"].([]any)[0].(map[string]any)
	detailPath := fmt.Sprintf("%s/details/%s", orderPath, detail["id"])

	w, body := a.do(http.MethodPut, detailPath, buyer, map[string]any{"docVersion": 1, "orderQty": "20"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "107", body["totalAmount"])

	w, _ = a.do(http.MethodPut, detailPath, buyer, map[string]any{"orderQty": "20"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "docVersion is required")

	w, body = a.do(http.MethodPost, orderPath+"/details", buyer, map[string]any{
		"docVersion": body["docVersion"],
		"productId":  id.New().String(),
		"orderQty":   "1",
		"price":       "3",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, body["details"], 2)

	w, _ = a.do(http.MethodDelete, detailPath+"?docVersion=2", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = a.do(http.MethodDelete, detailPath+"?docVersion=3", buyer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelAndDelete(t *testing.T) {
	a := newAPI(t)
	buyer := a.token("buyer-1", "Purchasing")

	order := a.confirm(buyer)
	orderPath := fmt.Sprintf("/api/v1/purchase-orders/%s", order["id"])

	w, _ := a.do(http.MethodDelete, orderPath, buyer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "docVersion query is required")

	w, body := a.do(http.MethodPost, orderPath+"/cancel", buyer, map[string]any{"docVersion": 1, "note": "not needed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "closed", body["status"])

	w, body = a.do(http.MethodDelete, orderPath+"?docVersion=2", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
}
