package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/core/apperror"
	appctx "procurement/internal/core/context"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticValidator struct {
	user *appctx.UserContext
}

func (v staticValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return v.user, nil
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.GET("/t", handlers...)
	return r
}

func serve(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestErrorHandler_AppError(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(apperror.NewConflict("purchase_order", "po-1", 2, 3))
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/t", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeConflict, body["code"])
	details := body["details"].(map[string]any)
	assert.EqualValues(t, 3, details["actual_version"])
}

func TestErrorHandler_AppErrorWithoutStatus(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(&apperror.AppError{Code: "CUSTOM", Message: "no status"})
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/t", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "CUSTOM", body["code"])
}

func TestErrorHandler_UnknownErrorIsHidden(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(errors.New("pq: relation does not exist"))
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/t", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "relation")
}

func TestRecovery(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		panic("boom")
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/t", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
}

func TestTrace_PropagatesIDs(t *testing.T) {
	var seen *appctx.TraceContext
	r := newEngine(func(c *gin.Context) {
		seen = appctx.GetTrace(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w, _ := serve(r, req)

	require.NotNil(t, seen)
	assert.Equal(t, "req-1", seen.RequestID)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

func TestAuth(t *testing.T) {
	user := &appctx.UserContext{UserID: "hod-1", Department: "Finance"}
	var seen *appctx.UserContext
	r := newEngine(Auth(staticValidator{user: user}), func(c *gin.Context) {
		seen = appctx.GetUser(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/t", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w, body := serve(r, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, apperror.CodeUnauthorized, body["code"])
				assert.Nil(t, seen)
				return
			}
			assert.Equal(t, user, seen)
		})
	}
}
