package eramba

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewClient(srv.URL, "secret-token", true, logger)
}

func sampleEvidence() domain.Evidence {
	return domain.Evidence{
		ID:          "ev-1",
		ControlID:   123,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:      domain.EvidenceFail,
		Description: "2 of 50 pull requests violated the review control",
	}
}

func TestSubmit(t *testing.T) {
	var gotPayload evidencePayload
	var gotAuth string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/evidences", r.URL.Path)

		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": 99}`))
	}))

	status, body, err := client.Submit(context.Background(), sampleEvidence())

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id": 99}`, body)

	assert.Equal(t, "Token secret-token", gotAuth)
	assert.Equal(t, 123, gotPayload.ControlID)
	assert.Equal(t, "fail", gotPayload.Result)
	assert.Equal(t, "2025-06-01T12:00:00Z", gotPayload.Date)
	assert.NotEmpty(t, gotPayload.Description)
}

func TestSubmit_Rejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "unknown control"}`, http.StatusUnprocessableEntity)
	}))

	status, body, err := client.Submit(context.Background(), sampleEvidence())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSubmission)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body, "unknown control")

	var submissionErr *apperrors.SubmissionError
	require.ErrorAs(t, err, &submissionErr)
	assert.Equal(t, http.StatusUnprocessableEntity, submissionErr.StatusCode)
}

func TestSubmit_Unreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	client := NewClient("http://127.0.0.1:1", "secret-token", true, logger)

	_, _, err := client.Submit(context.Background(), sampleEvidence())
	assert.ErrorIs(t, err, apperrors.ErrSubmission)
}

func TestTestConnection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/me", r.URL.Path)
		require.Equal(t, "Token secret-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, client.TestConnection(context.Background()))
}

func TestTestConnection_BadToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.TestConnection(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSubmission)
}
