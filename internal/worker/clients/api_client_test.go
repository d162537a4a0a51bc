package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sharedmodels "SilentFail/internal/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerSweep_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, cronCheckPath, r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sharedmodels.CronCheckResponse{Success: true, Checked: 4, MarkedDown: 1})
	}))
	defer ts.Close()

	api := NewAPIClient(ts.URL+"/", "s3cret", time.Second)
	resp, err := api.TriggerSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &sharedmodels.CronCheckResponse{Success: true, Checked: 4, MarkedDown: 1}, resp)
}

func TestTriggerSweep_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrUnauthorized},
		{name: "conflict", status: http.StatusConflict, want: ErrSweepInProgress},
		{name: "server error", status: http.StatusInternalServerError, want: ErrBackendDown},
		{name: "bad gateway", status: http.StatusBadGateway, want: ErrBackendDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			_, err := NewAPIClient(ts.URL, "x", time.Second).TriggerSweep(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTriggerSweep_BackendUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := NewAPIClient(url, "", time.Second).TriggerSweep(context.Background())
	assert.ErrorIs(t, err, ErrBackendDown)
}

func TestTriggerSweep_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer ts.Close()

	_, err := NewAPIClient(ts.URL, "", time.Second).TriggerSweep(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackendDown)
}
