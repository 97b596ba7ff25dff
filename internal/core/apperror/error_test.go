package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFound("purchase_order", "po-1"), http.StatusNotFound},
		{"wrapped conflict", fmt.Errorf("save: %w", NewConflict("purchase_order", "po-1", 1, 2)), http.StatusConflict},
		{"missing status", &AppError{Code: "CUSTOM"}, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
		})
	}
}
