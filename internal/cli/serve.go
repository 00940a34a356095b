package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rekoda/internal/config"
	"rekoda/internal/crfsearch"
	"rekoda/internal/encode"
	"rekoda/internal/events"
	"rekoda/internal/failures"
	"rekoda/internal/handlers"
	"rekoda/internal/library"
	"rekoda/internal/mediainfo"
	"rekoda/internal/models"
	"rekoda/internal/pipeline"
	"rekoda/internal/storage"
	"rekoda/internal/tuning"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

var (
	serveResume bool
	serveScan   bool
)

const (
	recomputeInterval = 15 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipelines and the HTTP control surface",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveResume, "resume", false, "start the pipelines running instead of paused")
	serveCmd.Flags().BoolVar(&serveScan, "scan", false, "scan configured libraries at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	videos := storage.NewVideoRepository(db)
	failureRepo := storage.NewFailureRepository(db)
	recorder := failures.NewRecorder(&recorderStore{videos: videos, failures: failureRepo}, logger)

	bus := events.NewBus()

	monitor := tuning.NewMonitor(cfg.ChunkMin, cfg.ChunkMin, cfg.ChunkMax)
	controller := tuning.NewController(tuning.ControllerConfig{
		MaxWorkers:  cfg.MaxWorkers,
		BaseTimeout: cfg.BaseTimeout,
		MaxTimeout:  cfg.MaxTimeout,
	}, monitor, logger)
	controller.Start(ctx, recomputeInterval)

	resolver := mediainfo.NewResolver(
		mediainfo.NewCLIRunner(cfg.MediaInfoBin),
		mediainfo.NewCache(),
		controller,
		logger,
	)

	searcher := crfsearch.NewCLISearcher(cfg.AbAv1Bin, int(cfg.MinVMAF))
	encoder := encode.NewCLIEncoder(cfg.AbAv1Bin, cfg.OutputDir)

	stages := []pipeline.StageConfig{
		pipeline.AnalysisStage(),
		pipeline.CRFSearchStage(videos, searcher),
		pipeline.EncodingStage(videos, encoder),
	}

	var pipelines []*pipeline.Pipeline
	for _, stage := range stages {
		disp := pipeline.NewDispatcher(stage, videos, controller, cfg.DispatchRate, logger)
		proc := pipeline.NewProcessor(stage, videos, resolver, recorder, controller, monitor, bus, logger)
		p := pipeline.New(stage, disp, proc, videos, bus, logger)
		p.Start(ctx)
		pipelines = append(pipelines, p)
	}

	if serveScan && len(cfg.Libraries) > 0 {
		scanner := library.NewScanner(videos, logger)
		if n, err := scanner.Scan(ctx, cfg.Libraries); err != nil {
			logger.Error("library scan failed", "error", err)
		} else {
			logger.Info("startup scan complete", "registered", n)
		}
	}

	if serveResume {
		for _, p := range pipelines {
			p.Resume()
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	pipelineHandler := handlers.NewPipelineHandler(pipelines)
	handlers.Register(e,
		pipelineHandler,
		handlers.NewVideoHandler(videos, failureRepo, pipelineHandler.DispatchStage),
		handlers.NewFailureHandler(failureRepo),
		handlers.NewEventsHandler(bus, logger),
	)

	go func() {
		if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil {
			logger.Info("http server stopped", "error", err)
		}
	}()
	logger.Info("rekoda serving", "port", cfg.Port, "db", cfg.DBPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	cancel()
	for _, p := range pipelines {
		p.Wait()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return e.Shutdown(shutdownCtx)
}

// recorderStore adapts the two repositories to the recorder's store
// contract.
type recorderStore struct {
	videos   *storage.VideoRepository
	failures *storage.FailureRepository
}

func (s *recorderStore) InsertFailure(ctx context.Context, f *models.Failure) error {
	return s.failures.InsertFailure(ctx, f)
}

func (s *recorderStore) ResolveFailures(ctx context.Context, videoID int64) error {
	return s.failures.ResolveFailures(ctx, videoID)
}

func (s *recorderStore) SetVideoState(ctx context.Context, videoID int64, state string) error {
	return s.videos.SetVideoState(ctx, videoID, state)
}
