package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/core/apperror"
	domain "procurement/internal/domain/workflow"
)

func TestHTTPNavigator_Navigate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/navigate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req domain.NavigateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wf-1", req.WorkflowID)
		assert.Equal(t, "HOD", req.CurrentStage)
		assert.Equal(t, "1250.5", req.Payload.Amount.String())

		_, _ = w.Write([]byte(`{
			"current_stage_info": {"name": "FC", "role": "approve", "assigned_users": ["u7", "u8"], "creator_access": false},
			"next_stage_info": {"name": "Completed"},
			"workflow_previous_step": "HOD",
			"workflow_next_step": "Completed"
		}`))
	}))
	defer srv.Close()

	nav := NewHTTPNavigator(srv.URL+"/", nil, time.Second)
	var req domain.NavigateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"workflow_id":"wf-1","current_stage":"HOD","payload":{"amount":"1250.50"}}`), &req))

	got, err := nav.Navigate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "FC", got.CurrentStageInfo.Name)
	assert.Equal(t, []string{"u7", "u8"}, got.CurrentStageInfo.AssignedUsers)
	assert.False(t, got.Final())
	assert.Equal(t, "HOD", got.PreviousStep)
}

func TestHTTPNavigator_FinalResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current_stage_info": {"name": "Completed"}, "workflow_previous_step": "FC"}`))
	}))
	defer srv.Close()

	got, err := NewHTTPNavigator(srv.URL, nil, time.Second).Navigate(context.Background(), domain.NavigateRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.True(t, got.Final())
}

func TestHTTPNavigator_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stage":
			http.Error(w, "unknown stage", http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	nav := NewHTTPNavigator(srv.URL, nil, time.Second)

	_, err := nav.Stage(context.Background(), "wf-1", "X")
	assert.True(t, apperror.IsNotFound(err))

	_, err = nav.Start(context.Background(), "wf-1", domain.Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPNavigator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	nav := NewHTTPNavigator(srv.URL, nil, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := nav.Navigate(ctx, domain.NavigateRequest{WorkflowID: "wf-1"})
	require.Error(t, err)

	mapped := apperror.FromUpstream("workflow navigator", err)
	assert.True(t, apperror.HasCode(mapped, apperror.CodeUpstreamUnavailable))
}
