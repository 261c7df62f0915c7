package service

import (
	"context"

	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/grcops/pr-compliance/internal/repository"
	"github.com/stretchr/testify/mock"
)

type FetcherMock struct {
	mock.Mock
}

var _ PullRequestFetcher = (*FetcherMock)(nil)

func (m *FetcherMock) FetchMergedPullRequests(ctx context.Context, repo string, days int) ([]domain.PullRequestRecord, error) {
	args := m.Called(ctx, repo, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.PullRequestRecord), args.Error(1)
}

type EvidenceRepositoryMock struct {
	mock.Mock
}

var _ repository.EvidenceRepository = (*EvidenceRepositoryMock)(nil)

func (m *EvidenceRepositoryMock) Save(ctx context.Context, evidence domain.Evidence) (string, error) {
	args := m.Called(ctx, evidence)
	return args.String(0), args.Error(1)
}

func (m *EvidenceRepositoryMock) Load(ctx context.Context, id string) (*domain.Evidence, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Evidence), args.Error(1)
}

func (m *EvidenceRepositoryMock) Latest(ctx context.Context, controlID int) (*domain.Evidence, error) {
	args := m.Called(ctx, controlID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Evidence), args.Error(1)
}

func (m *EvidenceRepositoryMock) History(ctx context.Context, controlID int, limit int) ([]domain.Evidence, error) {
	args := m.Called(ctx, controlID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Evidence), args.Error(1)
}

type SubmitterMock struct {
	mock.Mock
}

var _ Submitter = (*SubmitterMock)(nil)

func (m *SubmitterMock) Submit(ctx context.Context, evidence domain.Evidence) (int, string, error) {
	args := m.Called(ctx, evidence)
	return args.Int(0), args.String(1), args.Error(2)
}

type AnalyzerMock struct {
	mock.Mock
}

var _ NarrativeAnalyzer = (*AnalyzerMock)(nil)

func (m *AnalyzerMock) Analyze(ctx context.Context, metrics domain.ComplianceMetrics, history []domain.Evidence) (string, error) {
	args := m.Called(ctx, metrics, history)
	return args.String(0), args.Error(1)
}
