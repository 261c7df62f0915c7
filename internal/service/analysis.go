package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/compliance"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/grcops/pr-compliance/internal/repository"
	"github.com/grcops/pr-compliance/pkg/logger/sl"
)

// trendEpsilon is the band within which rate movement counts as stable.
const trendEpsilon = 0.01

// historyLimit bounds how much prior evidence feeds the trend and the
// narrative prompt.
const historyLimit = 12

type AnalysisService interface {
	// RunCheck fetches the window and computes the full compliance metrics.
	RunCheck(ctx context.Context) (*domain.ComplianceMetrics, error)

	// StoreEvidence persists metrics as a new evidence record and returns it.
	StoreEvidence(ctx context.Context, metrics domain.ComplianceMetrics) (*domain.Evidence, error)

	// SubmitEvidence sends an evidence record to the GRC platform.
	SubmitEvidence(ctx context.Context, evidence domain.Evidence) error

	// AnalyzeEvidence produces the narrative report over the latest evidence.
	AnalyzeEvidence(ctx context.Context) (string, error)

	// ComplianceTrend reports how the compliance rate has moved across the
	// stored evidence history.
	ComplianceTrend(ctx context.Context) (domain.TrendDirection, error)
}

// Config carries the run parameters the orchestrator needs.
type Config struct {
	Repo      string
	Days      int
	MinSample int
	ControlID int

	Thresholds            compliance.Thresholds
	RequireReviewComments bool
}

type AnalysisServiceImpl struct {
	log        *slog.Logger
	cfg        Config
	classifier RiskClassifier
	evaluator  *compliance.Evaluator
	fetcher    PullRequestFetcher
	store      repository.EvidenceRepository
	submitter  Submitter
	analyzer   NarrativeAnalyzer
}

func NewAnalysisService(
	log *slog.Logger,
	cfg Config,
	classifier RiskClassifier,
	fetcher PullRequestFetcher,
	store repository.EvidenceRepository,
	submitter Submitter,
	analyzer NarrativeAnalyzer,
) *AnalysisServiceImpl {
	return &AnalysisServiceImpl{
		log:        log,
		cfg:        cfg,
		classifier: classifier,
		evaluator:  compliance.NewEvaluator(cfg.RequireReviewComments),
		fetcher:    fetcher,
		store:      store,
		submitter:  submitter,
		analyzer:   analyzer,
	}
}

func (s *AnalysisServiceImpl) RunCheck(ctx context.Context) (*domain.ComplianceMetrics, error) {
	const op = "internal.service.analysis.RunCheck"
	log := s.log.With(slog.String("op", op), slog.String("repo", s.cfg.Repo))

	records, err := s.fetcher.FetchMergedPullRequests(ctx, s.cfg.Repo, s.cfg.Days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(records) < s.cfg.MinSample {
		log.Warn("sample below configured minimum, metrics may not be representative",
			slog.Int("sample", len(records)),
			slog.Int("min_sample", s.cfg.MinSample),
		)
	}

	verdicts := make([]domain.ComplianceVerdict, 0, len(records))

	for _, record := range records {
		assessment := s.classify(record)
		verdicts = append(verdicts, s.evaluator.Evaluate(record, assessment))
	}

	metrics := compliance.Aggregate(verdicts, s.cfg.Thresholds)
	metrics.ReviewPatterns = compliance.ReviewPatterns(records)
	metrics.TimeStats = compliance.TimeStatistics(records)

	log.Info("compliance check complete",
		slog.Int("total", metrics.Total),
		slog.Int("compliant", metrics.Compliant),
		slog.Float64("rate", metrics.ComplianceRate),
		slog.Bool("passed", metrics.Passed),
	)

	return &metrics, nil
}

// classify isolates a single PR's classification: an internal fault degrades
// that PR to the most conservative tier instead of aborting the batch.
func (s *AnalysisServiceImpl) classify(record domain.PullRequestRecord) (assessment domain.RiskAssessment) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("classification fault, degrading to critical",
				slog.Int("number", record.Number),
				slog.Any("fault", r),
			)

			assessment = domain.RiskAssessment{
				Tier:    domain.TierCritical,
				Reasons: []string{fmt.Sprintf("classification fault, conservatively treated as critical: %v", r)},
			}
		}
	}()

	return s.classifier.Classify(record)
}

func (s *AnalysisServiceImpl) StoreEvidence(ctx context.Context, metrics domain.ComplianceMetrics) (*domain.Evidence, error) {
	const op = "internal.service.analysis.StoreEvidence"

	status := domain.EvidenceFail
	if metrics.Passed {
		status = domain.EvidencePass
	}

	evidence := domain.Evidence{
		ControlID:   s.cfg.ControlID,
		CreatedAt:   time.Now().UTC(),
		Status:      status,
		Description: renderDescription(s.cfg.Repo, s.cfg.Days, metrics),
		Metrics:     metrics,
	}

	id, err := s.store.Save(ctx, evidence)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to store evidence: %w", op, err)
	}

	evidence.ID = id

	return &evidence, nil
}

// SubmitEvidence reports a submission failure to the caller but leaves the
// already-stored local evidence intact.
func (s *AnalysisServiceImpl) SubmitEvidence(ctx context.Context, evidence domain.Evidence) error {
	const op = "internal.service.analysis.SubmitEvidence"

	status, _, err := s.submitter.Submit(ctx, evidence)
	if err != nil {
		s.log.Error("evidence submission failed, local evidence remains stored",
			sl.Err(err),
			slog.String("evidence_id", evidence.ID),
		)

		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("evidence submitted",
		slog.String("evidence_id", evidence.ID),
		slog.Int("status", status),
	)

	return nil
}

func (s *AnalysisServiceImpl) AnalyzeEvidence(ctx context.Context) (string, error) {
	const op = "internal.service.analysis.AnalyzeEvidence"

	latest, err := s.store.Latest(ctx, s.cfg.ControlID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	history, err := s.store.History(ctx, s.cfg.ControlID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	report, err := s.analyzer.Analyze(ctx, latest.Metrics, history)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return report, nil
}

func (s *AnalysisServiceImpl) ComplianceTrend(ctx context.Context) (domain.TrendDirection, error) {
	const op = "internal.service.analysis.ComplianceTrend"

	history, err := s.store.History(ctx, s.cfg.ControlID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	rates := make([]domain.ComplianceMetrics, 0, len(history))
	for _, evidence := range history {
		rates = append(rates, evidence.Metrics)
	}

	return compliance.Trend(rates, trendEpsilon), nil
}

// LatestEvidence exposes the newest stored record, for the read API.
func (s *AnalysisServiceImpl) LatestEvidence(ctx context.Context) (*domain.Evidence, error) {
	const op = "internal.service.analysis.LatestEvidence"

	evidence, err := s.store.Latest(ctx, s.cfg.ControlID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.log.Warn("failed to load latest evidence", sl.Err(err))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return evidence, nil
}

// renderDescription produces the human-readable evidence body sent to the
// GRC platform alongside the structured metrics.
func renderDescription(repo string, days int, metrics domain.ComplianceMetrics) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "GitHub PR Review Control Check Results for %s (last %d days):\n", repo, days)
	fmt.Fprintf(&sb, "- Total PRs checked: %d\n", metrics.Total)
	fmt.Fprintf(&sb, "- Properly reviewed PRs: %d\n", metrics.Compliant)
	fmt.Fprintf(&sb, "- Non-compliant PRs: %d\n", len(metrics.NonCompliantIDs))
	fmt.Fprintf(&sb, "- Compliance rate: %.1f%%\n", metrics.ComplianceRate*100)

	fmt.Fprintf(&sb, "- Risk distribution: low=%d medium=%d high=%d critical=%d\n",
		metrics.RiskDistribution["low"],
		metrics.RiskDistribution["medium"],
		metrics.RiskDistribution["high"],
		metrics.RiskDistribution["critical"],
	)

	if len(metrics.NonCompliantIDs) > 0 {
		ids := make([]string, 0, len(metrics.NonCompliantIDs))
		for _, id := range metrics.NonCompliantIDs {
			ids = append(ids, fmt.Sprintf("#%d", id))
		}

		fmt.Fprintf(&sb, "- Non-compliant: %s\n", strings.Join(ids, ", "))
	}

	result := "FAIL"
	if metrics.Passed {
		result = "PASS"
	}
	fmt.Fprintf(&sb, "- Overall result: %s\n", result)

	return sb.String()
}
