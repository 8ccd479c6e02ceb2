package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/scamdunk/scamguard/pkg/config"
	"github.com/scamdunk/scamguard/pkg/detect"
	"github.com/scamdunk/scamguard/pkg/feedback"
	"github.com/scamdunk/scamguard/pkg/logging"
	"github.com/scamdunk/scamguard/pkg/patterns"
	"github.com/scamdunk/scamguard/pkg/scan"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		configPath := ""
		if len(os.Args) > 2 {
			configPath = os.Args[2]
		}
		if err := runServe(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "scamguard: %v\n", err)
			os.Exit(1)
		}
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: scamguard scan <text>")
			os.Exit(1)
		}
		if err := runCLIScan(strings.Join(os.Args[2:], " ")); err != nil {
			fmt.Fprintf(os.Stderr, "scamguard: %v\n", err)
			os.Exit(1)
		}
	case "version":
		cfg, _ := config.Load("")
		version := "unknown"
		if cfg != nil {
			version = cfg.App.Version
		}
		fmt.Printf("scamguard v%s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("scamguard - scam message risk scoring engine")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  scamguard serve [config.yaml]   Start the HTTP service")
	fmt.Println("  scamguard scan <text>           Score one message and print the analysis")
	fmt.Println("  scamguard version               Show version")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  SCAMGUARD_*   Override any config key, e.g. SCAMGUARD_REDIS_HOST")
}

// buildDetectors assembles the detector set. A configured model path gets
// the ONNX classifier; otherwise the deterministic simulator stands in.
func buildDetectors(cfg *config.Config, registry *patterns.Registry, log *logging.Logger) []detect.Detector {
	detectors := []detect.Detector{
		detect.NewPatternDetector(registry, log),
		detect.NewBehavioralAnalyzer(log),
	}

	if cfg.Detection.ModelPath != "" {
		classifier, err := detect.NewHugotClassifier(cfg.Detection.ModelPath, "scam-classifier", log)
		if err == nil {
			log.Info().Str("model_path", cfg.Detection.ModelPath).Msg("ONNX classifier enabled")
			return append(detectors, classifier)
		}
		log.Warn().Err(err).Msg("ONNX classifier unavailable, falling back to simulator")
	}
	return append(detectors, detect.NewSimulator(uint64(cfg.Detection.SimulatorSeed), log))
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []patterns.Option
	if cfg.Detection.RulesFile != "" {
		opts = append(opts, patterns.WithOverlayFile(cfg.Detection.RulesFile))
	}
	registry, err := patterns.NewRegistry(opts...)
	if err != nil {
		return fmt.Errorf("load pattern registry: %w", err)
	}
	for _, skipped := range registry.OverlaySkipped() {
		log.Warn().Str("rule", skipped).Msg("overlay rule skipped")
	}
	log.Info().Int("rules", registry.Len()).Str("version", registry.Version()).Msg("pattern registry loaded")

	store, err := scan.NewRedisStore(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ensemble := detect.NewEnsemble(cfg.Detection.EnsembleWeights, log)
	service := scan.NewService(
		buildDetectors(cfg, registry, log),
		ensemble,
		detect.NewExplainer(),
		store,
		cfg.Detection,
		log,
	)

	processor := scan.NewProcessor(service, store, cfg.Queue, log)
	if err := processor.Start(ctx); err != nil {
		return err
	}
	defer processor.Stop()

	drift := scan.NewDriftMonitor(cfg.Drift, log)
	drift.Start(ctx)
	defer drift.Stop()

	var feedbackStore *feedback.Store
	if cfg.Postgres.DSN != "" {
		feedbackStore, err = feedback.New(ctx, cfg.Postgres, log)
		if err != nil {
			return err
		}
		defer feedbackStore.Close()
		warmDriftMonitor(ctx, feedbackStore, drift, cfg.Drift.WindowSize, log)
	} else {
		log.Info().Msg("feedback sink disabled (no postgres dsn)")
	}

	app := newApp(cfg, service, processor, drift, store, feedbackStore, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Msg("http server starting")
		errCh <- app.Listen(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// warmDriftMonitor replays recent labeled samples so a restart does not
// reset the drift window.
func warmDriftMonitor(ctx context.Context, store *feedback.Store, drift *scan.DriftMonitor, limit int, log *logging.Logger) {
	samples, err := store.Recent(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("failed to warm drift monitor")
		return
	}
	for _, s := range samples {
		drift.Record(s.PredictedScore, s.ActualLabel)
	}
	log.Info().Int("samples", len(samples)).Msg("drift monitor warmed from feedback store")
}

func runCLIScan(text string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	log := logging.Nop()

	registry, err := patterns.NewRegistry()
	if err != nil {
		return err
	}

	detectors := buildDetectors(cfg, registry, log)
	ensemble := detect.NewEnsemble(cfg.Detection.EnsembleWeights, log)
	explainer := detect.NewExplainer()

	predictions := make([]detect.Prediction, 0, len(detectors))
	ctx := context.Background()
	for _, d := range detectors {
		pred, err := d.Analyze(ctx, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "detector %s failed: %v\n", d.Name(), err)
			continue
		}
		predictions = append(predictions, pred)
	}
	assessment := ensemble.Combine(predictions)
	explanation := explainer.Explain(text, assessment)

	out, err := json.MarshalIndent(map[string]any{
		"risk_score":  assessment.Score,
		"risk_tier":   assessment.Tier,
		"confidence":  assessment.Confidence,
		"explanation": explanation,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// httpError maps domain errors onto status codes.
func httpError(c fiber.Ctx, err error) error {
	var verr *scan.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error()})
	case errors.Is(err, scan.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func newApp(
	cfg *config.Config,
	service *scan.Service,
	processor *scan.Processor,
	drift *scan.DriftMonitor,
	store scan.Store,
	feedbackStore *feedback.Store,
	log *logging.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Get("/healthz", func(c fiber.Ctx) error {
		if err := store.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"redis":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok", "version": cfg.App.Version})
	})

	v1 := app.Group("/v1")

	v1.Post("/analyze", func(c fiber.Ctx) error {
		var req struct {
			Text               string `json:"text"`
			IncludeExplanation *bool  `json:"include_explanation"`
			IncludeEvidence    *bool  `json:"include_evidence"`
			UseCache           *bool  `json:"use_cache"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		opts := scan.DefaultOptions()
		if req.IncludeExplanation != nil {
			opts.IncludeExplanation = *req.IncludeExplanation
		}
		if req.IncludeEvidence != nil {
			opts.IncludeEvidence = *req.IncludeEvidence
		}
		if req.UseCache != nil {
			opts.UseCache = *req.UseCache
		}

		analysis, err := service.Analyze(c.Context(), req.Text, opts)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(analysis)
	})

	v1.Post("/analyze/conversation", func(c fiber.Ctx) error {
		var req struct {
			Messages []scan.Message `json:"messages"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		result, err := service.AnalyzeConversation(c.Context(), req.Messages, scan.DefaultOptions())
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(result)
	})

	v1.Post("/scan", func(c fiber.Ctx) error {
		var req struct {
			Text        string `json:"text"`
			Priority    string `json:"priority"`
			CallbackURL string `json:"callback_url"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Priority == "" {
			req.Priority = scan.PriorityNormal
		}
		id, err := processor.SubmitScan(c.Context(), req.Text, req.Priority, req.CallbackURL)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"request_id": id,
			"status":     scan.StatusQueued,
		})
	})

	v1.Post("/scan/batch", func(c fiber.Ctx) error {
		var req struct {
			Texts       []string `json:"texts"`
			CallbackURL string   `json:"callback_url"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		id, err := processor.SubmitBatch(c.Context(), req.Texts, req.CallbackURL)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"batch_id": id,
			"status":   scan.StatusQueued,
		})
	})

	v1.Get("/scan/:id", func(c fiber.Ctx) error {
		result, err := store.GetScanResult(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(result)
	})

	v1.Get("/batch/:id", func(c fiber.Ctx) error {
		status, err := store.GetBatchStatus(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(status)
	})

	v1.Get("/metrics", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":   service.Metrics(),
			"processor": processor.Stats(c.Context()),
			"drift": fiber.Map{
				"sample_count": drift.SampleCount(),
				"alerts":       drift.Alerts(),
			},
		})
	})

	v1.Put("/admin/weights", func(c fiber.Ctx) error {
		var req struct {
			Weights map[string]float64 `json:"weights"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := service.Ensemble().SetWeights(req.Weights); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Info().Interface("weights", service.Ensemble().Weights()).Msg("ensemble weights updated")
		return c.JSON(fiber.Map{"weights": service.Ensemble().Weights()})
	})

	v1.Post("/admin/calibrate", func(c fiber.Ctx) error {
		var req struct {
			Samples []detect.CalibrationSample `json:"samples"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		thresholds, err := service.Ensemble().Calibrate(req.Samples)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Info().Interface("thresholds", thresholds).Msg("thresholds recalibrated")
		return c.JSON(fiber.Map{"thresholds": thresholds})
	})

	v1.Post("/feedback", func(c fiber.Ctx) error {
		var req struct {
			PredictedScore float64 `json:"predicted_score"`
			ActualLabel    int     `json:"actual_label"`
			Confidence     float64 `json:"confidence"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.ActualLabel != 0 && req.ActualLabel != 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "actual_label must be 0 or 1"})
		}
		if req.PredictedScore < 0 || req.PredictedScore > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "predicted_score must be in [0,1]"})
		}

		drift.Record(req.PredictedScore, req.ActualLabel)
		if feedbackStore != nil {
			sample := feedback.Sample{
				PredictedScore: req.PredictedScore,
				ActualLabel:    req.ActualLabel,
				Confidence:     req.Confidence,
				CreatedAt:      time.Now().UTC(),
			}
			if err := feedbackStore.Record(c.Context(), sample); err != nil {
				log.Warn().Err(err).Msg("failed to persist feedback sample")
			}
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "recorded"})
	})

	return app
}
