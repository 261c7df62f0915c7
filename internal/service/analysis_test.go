package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/compliance"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/grcops/pr-compliance/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// funcClassifier adapts a plain function, letting tests inject faults.
type funcClassifier func(domain.PullRequestRecord) domain.RiskAssessment

func (f funcClassifier) Classify(record domain.PullRequestRecord) domain.RiskAssessment {
	return f(record)
}

type serviceMocks struct {
	fetcher   *FetcherMock
	store     *EvidenceRepositoryMock
	submitter *SubmitterMock
	analyzer  *AnalyzerMock
}

func testConfig() Config {
	return Config{
		Repo:      "acme/payments-api",
		Days:      30,
		MinSample: 2,
		ControlID: 123,
		Thresholds: compliance.Thresholds{
			MinComplianceRate:     0.95,
			MaxHighRiskProportion: 0.10,
		},
		RequireReviewComments: true,
	}
}

func newTestService(t *testing.T, classifier RiskClassifier) (*AnalysisServiceImpl, serviceMocks) {
	t.Helper()

	if classifier == nil {
		classifier = risk.NewClassifier(risk.DefaultConfig())
	}

	mocks := serviceMocks{
		fetcher:   &FetcherMock{},
		store:     &EvidenceRepositoryMock{},
		submitter: &SubmitterMock{},
		analyzer:  &AnalyzerMock{},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	svc := NewAnalysisService(logger, testConfig(), classifier,
		mocks.fetcher, mocks.store, mocks.submitter, mocks.analyzer)

	return svc, mocks
}

func reviewedRecord(number int, author string, approvers ...string) domain.PullRequestRecord {
	return domain.PullRequestRecord{
		Number:         number,
		Author:         author,
		Approvers:      approvers,
		ChangedFiles:   []string{"internal/api/handler.go"},
		Additions:      40,
		Deletions:      10,
		ReviewComments: 2,
		TimeToMerge:    6 * time.Hour,
	}
}

func TestRunCheck(t *testing.T) {
	svc, mocks := newTestService(t, nil)
	ctx := context.Background()

	records := []domain.PullRequestRecord{
		reviewedRecord(1, "dev-a", "dev-b"),
		reviewedRecord(2, "dev-b", "dev-b"), // self-approved
		reviewedRecord(3, "dev-c", "dev-a"),
	}

	mocks.fetcher.On("FetchMergedPullRequests", ctx, "acme/payments-api", 30).
		Return(records, nil).Once()

	metrics, err := svc.RunCheck(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, metrics.Total)
	assert.Equal(t, 2, metrics.Compliant)
	assert.Equal(t, []int{2}, metrics.NonCompliantIDs)
	assert.False(t, metrics.Passed)

	assert.Equal(t, map[string]int{"dev-b": 2, "dev-a": 1}, metrics.ReviewPatterns)
	require.NotNil(t, metrics.TimeStats)
	assert.Equal(t, 6.0, metrics.TimeStats.MedianTimeToMerge)

	mocks.fetcher.AssertExpectations(t)
}

func TestRunCheck_FetchFailureIsFatal(t *testing.T) {
	svc, mocks := newTestService(t, nil)
	ctx := context.Background()

	fetchErr := &apperrors.FetchError{
		Repository: "acme/payments-api",
		Days:       30,
		Cause:      errors.New("401 unauthorized"),
	}

	mocks.fetcher.On("FetchMergedPullRequests", ctx, "acme/payments-api", 30).
		Return(nil, fetchErr).Once()

	_, err := svc.RunCheck(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFetch)
}

func TestRunCheck_ClassificationFaultDegradesSinglePR(t *testing.T) {
	real := risk.NewClassifier(risk.DefaultConfig())

	classifier := funcClassifier(func(record domain.PullRequestRecord) domain.RiskAssessment {
		if record.Number == 2 {
			panic("corrupted record")
		}

		return real.Classify(record)
	})

	svc, mocks := newTestService(t, classifier)
	ctx := context.Background()

	records := []domain.PullRequestRecord{
		reviewedRecord(1, "dev-a", "dev-b"),
		reviewedRecord(2, "dev-b", "dev-c"),
		reviewedRecord(3, "dev-c", "dev-a"),
	}

	mocks.fetcher.On("FetchMergedPullRequests", ctx, "acme/payments-api", 30).
		Return(records, nil).Once()

	metrics, err := svc.RunCheck(ctx)

	require.NoError(t, err, "a per-PR fault must not abort the batch")
	assert.Equal(t, 3, metrics.Total)
	assert.Equal(t, 1, metrics.RiskDistribution["critical"])
	// The degraded PR lands in Critical with a lone approver, so it fails
	// the tiered approval rule.
	assert.Contains(t, metrics.NonCompliantIDs, 2)
}

func TestStoreEvidence(t *testing.T) {
	svc, mocks := newTestService(t, nil)
	ctx := context.Background()

	metrics := domain.ComplianceMetrics{
		Total:            50,
		Compliant:        49,
		ComplianceRate:   0.98,
		RiskDistribution: map[string]int{"low": 48, "medium": 1, "high": 1, "critical": 0},
		NonCompliantIDs:  []int{17},
		Passed:           true,
	}

	mocks.store.On("Save", ctx, mock.MatchedBy(func(evidence domain.Evidence) bool {
		return evidence.ControlID == 123 &&
			evidence.Status == domain.EvidencePass &&
			evidence.Metrics.Total == 50
	})).Return("ev-1", nil).Once()

	evidence, err := svc.StoreEvidence(ctx, metrics)

	require.NoError(t, err)
	assert.Equal(t, "ev-1", evidence.ID)
	assert.Contains(t, evidence.Description, "Total PRs checked: 50")
	assert.Contains(t, evidence.Description, "#17")
	assert.Contains(t, evidence.Description, "Overall result: PASS")

	mocks.store.AssertExpectations(t)
}

func TestStoreEvidence_FailedMetricsGetFailStatus(t *testing.T) {
	svc, mocks := newTestService(t, nil)
	ctx := context.Background()

	mocks.store.On("Save", ctx, mock.MatchedBy(func(evidence domain.Evidence) bool {
		return evidence.Status == domain.EvidenceFail
	})).Return("ev-2", nil).Once()

	_, err := svc.StoreEvidence(ctx, domain.ComplianceMetrics{Total: 10, Compliant: 5, ComplianceRate: 0.5})

	require.NoError(t, err)
	mocks.store.AssertExpectations(t)
}

func TestSubmitEvidence_FailureKeepsLocalEvidence(t *testing.T) {
	svc, mocks := newTestService(t, nil)
	ctx := context.Background()

	evidence := domain.Evidence{ID: "ev-1", ControlID: 123, Status: domain.EvidenceFail}

	mocks.submitter.On("Submit", ctx, evidence).
		Return(422, "", &apperrors.SubmissionError{StatusCode: 422, Body: "rejected"}).Once()

	err := svc.SubmitEvidence(ctx, evidence)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSubmission)
	mocks.submitter.AssertExpectations(t)
}

func TestAnalyzeEvidence(t *testing.T) {
	svc, mocks := newTestService(t, nil)
	ctx := context.Background()

	latest := &domain.Evidence{
		ID:      "ev-3",
		Metrics: domain.ComplianceMetrics{Total: 50, ComplianceRate: 0.96},
	}
	history := []domain.Evidence{*latest}

	mocks.store.On("Latest", ctx, 123).Return(latest, nil).Once()
	mocks.store.On("History", ctx, 123, historyLimit).Return(history, nil).Once()
	mocks.analyzer.On("Analyze", ctx, latest.Metrics, history).
		Return("## Critical Issues\nNone.", nil).Once()

	report, err := svc.AnalyzeEvidence(ctx)

	require.NoError(t, err)
	assert.Contains(t, report, "Critical Issues")

	mocks.store.AssertExpectations(t)
	mocks.analyzer.AssertExpectations(t)
}

func TestComplianceTrend(t *testing.T) {
	svc, mocks := newTestService(t, nil)
	ctx := context.Background()

	history := []domain.Evidence{
		{Metrics: domain.ComplianceMetrics{ComplianceRate: 0.80}},
		{Metrics: domain.ComplianceMetrics{ComplianceRate: 0.85}},
		{Metrics: domain.ComplianceMetrics{ComplianceRate: 0.97}},
	}

	mocks.store.On("History", ctx, 123, historyLimit).Return(history, nil).Once()

	trend, err := svc.ComplianceTrend(ctx)

	require.NoError(t, err)
	assert.Equal(t, domain.TrendImproving, trend)
}
