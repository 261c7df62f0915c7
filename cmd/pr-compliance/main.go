package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/grcops/pr-compliance/internal/cache"
	"github.com/grcops/pr-compliance/internal/clients/eramba"
	ghclient "github.com/grcops/pr-compliance/internal/clients/github"
	aiclient "github.com/grcops/pr-compliance/internal/clients/openai"
	"github.com/grcops/pr-compliance/internal/compliance"
	"github.com/grcops/pr-compliance/internal/config"
	"github.com/grcops/pr-compliance/internal/repository"
	"github.com/grcops/pr-compliance/internal/repository/file"
	"github.com/grcops/pr-compliance/internal/repository/postgres"
	"github.com/grcops/pr-compliance/internal/risk"
	"github.com/grcops/pr-compliance/internal/service"
	myhttp "github.com/grcops/pr-compliance/internal/transport/http"
	"github.com/grcops/pr-compliance/pkg/logger/slogpretty"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run dispatches on the action argument:
//
//	check    fetch the window, compute metrics, store evidence (default)
//	submit   check, then push the evidence to the GRC platform
//	analyze  produce the narrative report over the stored evidence
//	serve    expose the stored evidence over the read API
func run(ctx context.Context, args []string) error {
	cfg := config.MustLoad()
	log := slogpretty.SetupLogger(cfg.Env)

	action := "check"
	if len(args) > 0 {
		action = args[0]
	}

	log.Info("starting pr-compliance",
		slog.String("env", cfg.Env),
		slog.String("action", action),
		slog.String("repo", cfg.GitHub.Repo),
	)

	store, cleanup, err := newEvidenceStore(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to init evidence store: %w", err)
	}
	defer cleanup()

	svc, err := newAnalysisService(cfg, log, store)
	if err != nil {
		return err
	}

	switch action {
	case "check":
		return runCheck(ctx, log, svc)

	case "submit":
		return runSubmit(ctx, log, svc)

	case "analyze":
		report, err := svc.AnalyzeEvidence(ctx)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		fmt.Println(report)
		return nil

	case "serve":
		return serve(ctx, cfg, log, store)

	default:
		return fmt.Errorf("unknown action '%s', want check, submit, analyze, or serve", action)
	}
}

func newEvidenceStore(cfg *config.Config, log *slog.Logger) (repository.EvidenceRepository, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.NewDB(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}

		cleanup := func() {
			if err := db.Close(); err != nil {
				log.Error("failed to close database", slog.Any("error", err))
			}
		}

		return postgres.NewEvidenceRepository(db.DB(), log), cleanup, nil

	default:
		repo, err := file.New(cfg.Storage.EvidenceDir, log)
		if err != nil {
			return nil, nil, err
		}

		return repo, func() {}, nil
	}
}

func newAnalysisService(cfg *config.Config, log *slog.Logger, store repository.EvidenceRepository) (*service.AnalysisServiceImpl, error) {
	diskCache, err := cache.New(cfg.Storage.CacheDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init cache: %w", err)
	}

	fetcher := ghclient.NewClient(cfg.GitHub.Token, diskCache, log, cfg.Analysis.FetchTTL)
	submitter := eramba.NewClient(cfg.Eramba.BaseURL, cfg.Eramba.Token, cfg.Eramba.VerifySSL, log)
	analyzer := aiclient.NewClient(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.Temperature,
		cfg.OpenAI.MaxTokens,
		diskCache,
		log,
		cfg.Analysis.AnalysisTTL,
	)

	svcCfg := service.Config{
		Repo:      cfg.GitHub.Repo,
		Days:      cfg.Analysis.Days,
		MinSample: cfg.Analysis.MinSample,
		ControlID: cfg.Eramba.ControlID,
		Thresholds: compliance.Thresholds{
			MinComplianceRate:     cfg.Analysis.MinComplianceRate,
			MaxHighRiskProportion: cfg.Analysis.MaxHighRiskProportion,
		},
		RequireReviewComments: cfg.Analysis.RequireReviewComments,
	}

	classifier := risk.NewClassifier(risk.DefaultConfig())

	return service.NewAnalysisService(log, svcCfg, classifier, fetcher, store, submitter, analyzer), nil
}

func runCheck(ctx context.Context, log *slog.Logger, svc *service.AnalysisServiceImpl) error {
	metrics, err := svc.RunCheck(ctx)
	if err != nil {
		return fmt.Errorf("compliance check failed: %w", err)
	}

	evidence, err := svc.StoreEvidence(ctx, *metrics)
	if err != nil {
		return fmt.Errorf("failed to store evidence: %w", err)
	}

	log.Info("evidence stored", slog.String("id", evidence.ID))
	fmt.Print(evidence.Description)

	return nil
}

func runSubmit(ctx context.Context, log *slog.Logger, svc *service.AnalysisServiceImpl) error {
	metrics, err := svc.RunCheck(ctx)
	if err != nil {
		return fmt.Errorf("compliance check failed: %w", err)
	}

	evidence, err := svc.StoreEvidence(ctx, *metrics)
	if err != nil {
		return fmt.Errorf("failed to store evidence: %w", err)
	}

	if err := svc.SubmitEvidence(ctx, *evidence); err != nil {
		// Local evidence survives a failed submission, the operator can
		// resubmit later.
		return fmt.Errorf("submission failed, evidence %s remains stored locally: %w", evidence.ID, err)
	}

	log.Info("evidence submitted", slog.String("id", evidence.ID))

	return nil
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, store repository.EvidenceRepository) error {
	srv := myhttp.NewServer(log, store, cfg.Eramba.ControlID)

	httpServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:     srv.Routes(),
		ReadTimeout: cfg.Server.Timeout,
	}

	errChan := make(chan error, 1)

	go startServer(log, httpServer, errChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %w", err)

	case <-ctx.Done():
		log.Info("stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down http server: %w", err)
	}

	return nil
}

func startServer(log *slog.Logger, httpServer *http.Server, errChan chan error) {
	defer close(errChan)

	log.Info("service started", slog.String("addr", httpServer.Addr))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errChan <- fmt.Errorf("error listening and serving: %w", err)
	}
}
