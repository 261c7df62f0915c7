// package service contains the orchestrator that sequences fetch, classify,
// evaluate, aggregate, and the downstream evidence/GRC/narrative steps.
package service

import (
	"context"

	"github.com/grcops/pr-compliance/internal/domain"
)

// RiskClassifier scores a single pull request. Implementations must be pure:
// the same record always yields the same assessment.
type RiskClassifier interface {
	Classify(record domain.PullRequestRecord) domain.RiskAssessment
}

// PullRequestFetcher is the source-control collaborator. A fetch failure is
// fatal for the run: the orchestrator never computes metrics from a partial
// window.
type PullRequestFetcher interface {
	FetchMergedPullRequests(ctx context.Context, repo string, days int) ([]domain.PullRequestRecord, error)
}

// Submitter is the GRC platform collaborator.
type Submitter interface {
	Submit(ctx context.Context, evidence domain.Evidence) (int, string, error)
}

// NarrativeAnalyzer is the LLM collaborator. Its output is purely additive
// and never affects verdicts or metrics.
type NarrativeAnalyzer interface {
	Analyze(ctx context.Context, metrics domain.ComplianceMetrics, history []domain.Evidence) (string, error)
}
