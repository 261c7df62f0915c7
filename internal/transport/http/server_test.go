package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *EvidenceRepositoryMock) {
	t.Helper()

	store := &EvidenceRepositoryMock{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewServer(logger, store, 123), store
}

func doRequest(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()

	server.Routes().ServeHTTP(rr, req)

	return rr
}

func TestServer_GetHealth(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rr.Body.String())
}

func TestServer_GetEvidence(t *testing.T) {
	server, store := newTestServer(t)

	evidence := &domain.Evidence{
		ID:        "ev-1",
		ControlID: 123,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:    domain.EvidencePass,
		Metrics:   domain.ComplianceMetrics{Total: 50, Compliant: 50, ComplianceRate: 1.0, Passed: true},
	}

	store.On("Load", mock.Anything, "ev-1").Return(evidence, nil).Once()

	rr := doRequest(t, server, http.MethodGet, "/evidence/ev-1")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"ev-1"`)
	assert.Contains(t, rr.Body.String(), `"complianceRate":1`)

	store.AssertExpectations(t)
}

func TestServer_GetEvidence_NotFound(t *testing.T) {
	server, store := newTestServer(t)

	store.On("Load", mock.Anything, "missing").
		Return(nil, fmt.Errorf("load: %w", apperrors.ErrNotFound)).Once()

	rr := doRequest(t, server, http.MethodGet, "/evidence/missing")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error": "resource not found"}`, rr.Body.String())
}

func TestServer_GetEvidenceHistory(t *testing.T) {
	server, store := newTestServer(t)

	history := []domain.Evidence{
		{ID: "ev-1", ControlID: 123, Status: domain.EvidenceFail},
		{ID: "ev-2", ControlID: 123, Status: domain.EvidencePass},
	}

	store.On("History", mock.Anything, 123, 2).Return(history, nil).Once()

	rr := doRequest(t, server, http.MethodGet, "/evidence?limit=2")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"ev-1"`)
	assert.Contains(t, rr.Body.String(), `"id":"ev-2"`)

	store.AssertExpectations(t)
}

func TestServer_GetEvidenceHistory_DefaultLimit(t *testing.T) {
	server, store := newTestServer(t)

	store.On("History", mock.Anything, 123, defaultHistoryLimit).
		Return([]domain.Evidence{}, nil).Once()

	rr := doRequest(t, server, http.MethodGet, "/evidence")

	assert.Equal(t, http.StatusOK, rr.Code)
	store.AssertExpectations(t)
}

func TestServer_GetEvidenceHistory_BadLimit(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/evidence?limit=zero")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_GetLatestCompliance(t *testing.T) {
	server, store := newTestServer(t)

	evidence := &domain.Evidence{
		ID:        "ev-9",
		ControlID: 123,
		Status:    domain.EvidenceFail,
		Metrics: domain.ComplianceMetrics{
			Total:           100,
			Compliant:       96,
			ComplianceRate:  0.96,
			NonCompliantIDs: []int{4, 8, 15, 16},
			Passed:          false,
		},
	}

	store.On("Latest", mock.Anything, 123).Return(evidence, nil).Once()

	rr := doRequest(t, server, http.MethodGet, "/compliance/latest")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"fail"`)
	assert.Contains(t, rr.Body.String(), `"nonCompliantIds":[4,8,15,16]`)

	store.AssertExpectations(t)
}

func TestServer_GetLatestCompliance_NoEvidenceYet(t *testing.T) {
	server, store := newTestServer(t)

	store.On("Latest", mock.Anything, 123).
		Return(nil, fmt.Errorf("latest: %w", apperrors.ErrNotFound)).Once()

	rr := doRequest(t, server, http.MethodGet, "/compliance/latest")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
