package http

import (
	"context"

	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/grcops/pr-compliance/internal/repository"
	"github.com/stretchr/testify/mock"
)

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
