package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"invoice-tracker/internal/async"
	"invoice-tracker/internal/common"
	"invoice-tracker/internal/export"
	"invoice-tracker/internal/extract"
	"invoice-tracker/internal/ingest"
	"invoice-tracker/internal/ocr"
	processor "invoice-tracker/internal/pipeline"
	"invoice-tracker/internal/pipeline/parsefields"
	"invoice-tracker/internal/pipeline/textextract"
	"invoice-tracker/internal/repository"
	"invoice-tracker/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 3*time.Second); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", db.Driver)

	profilesRepo := repository.NewProfileRepository(db, logger)
	filesRepo := repository.NewReceiptFileRepository(db, logger)
	jobsRepo := repository.NewExtractJobRepository(db, logger)
	receiptsRepo := repository.NewReceiptRepository(db, logger)

	ocrExtractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:        cfg.OCR.Pdftotext,
		Pdftoppm:         cfg.OCR.Pdftoppm,
		Tesseract:        cfg.OCR.Tesseract,
		TesseractLang:    cfg.OCR.TesseractLang,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPages,
		TessdataDir:      cfg.OCR.TessdataDir,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)
	if cfg.OCR.CachePath != "" {
		cache, err := ocr.OpenCache(cfg.OCR.CachePath)
		if err != nil {
			logger.Error("failed to open ocr cache", "path", cfg.OCR.CachePath, "error", err)
			os.Exit(1)
		}
		defer func() { _ = cache.Close() }()
		ocrExtractor = ocrExtractor.WithCache(cache)
		logger.Info("ocr cache enabled", "path", cfg.OCR.CachePath)
	}

	fieldExtractor := extract.NewRulesExtractor(extract.ExtraLabels{
		Total:    cfg.Parser.ExtraTotalLabels,
		Tax:      cfg.Parser.ExtraTaxLabels,
		Subtotal: cfg.Parser.ExtraSubtotalLabels,
	}, logger)

	ocrStage := textextract.NewPipeline(filesRepo, jobsRepo, extract.NewOCRAdapter(ocrExtractor, logger), logger)
	parseStage := parsefields.NewPipeline(logger, parsefields.Config{}, jobsRepo, filesRepo, profilesRepo, receiptsRepo, fieldExtractor)
	proc := processor.NewProcessor(logger, ocrStage, parseStage)

	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
	)

	ingestor := ingest.NewFSIngestor(profilesRepo, filesRepo, logger)

	if len(cfg.Ingest.WatchDirs) > 0 {
		watchProfile, err := profilesRepo.GetOrCreateByName(ctx, "watched", "USD")
		if err != nil {
			logger.Error("failed to resolve watch profile", "error", err)
			os.Exit(1)
		}
		evCh, errCh, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       cfg.Ingest.WatchDirs,
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			for path := range evCh {
				res, err := ingestor.IngestPath(ctx, watchProfile.ID, path)
				if err != nil {
					logger.Warn("watch ingest failed", "path", path, "error", err)
					continue
				}
				if res.Deduplicated {
					continue
				}
				_ = queue.Enqueue(ctx, async.Job{FileID: res.FileID, SubmittedAt: time.Now().UTC()})
			}
		}()
		go func() {
			for err := range errCh {
				logger.Error("watcher error", "error", err)
			}
		}()
		logger.Info("watching directories", "dirs", cfg.Ingest.WatchDirs)
	}

	srv := server.NewServer(server.Deps{
		Logger:    logger,
		DB:        db,
		Profiles:  profilesRepo,
		Receipts:  receiptsRepo,
		Jobs:      jobsRepo,
		Ingestor:  ingestor,
		Queue:     queue,
		Exporter:  export.NewService(receiptsRepo, logger),
		Fields:    fieldExtractor,
		UploadDir: cfg.Ingest.UploadDir,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Server.Addr) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
