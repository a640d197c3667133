package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/speaker-splitter/internal/cleanup"
	"github.com/codebuildervaibhav/speaker-splitter/internal/config"
	"github.com/codebuildervaibhav/speaker-splitter/internal/handlers"
	"github.com/codebuildervaibhav/speaker-splitter/internal/queue"
)

const (
	queueCapacity   = 100
	maxUploadSizeMB = 2048
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept runs over HTTP and process them one at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	logBuffer := handlers.NewLogBuffer(handlers.DefaultLogLines)
	log := newLogger(cfg, logBuffer)

	if err := cleanup.EnsureTempDirExists(cfg.Paths.TempDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("initializing components")
	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	runQueue := queue.NewQueue(c.pipeline, c.ledger, queueCapacity, log)
	runQueue.Start(ctx)
	defer runQueue.Stop()

	scheduler := cleanup.NewScheduler(
		cfg.Paths.TempDir,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour,
		log,
	)
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit:             maxUploadSizeMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	uploadRoot := filepath.Join(cfg.Paths.TempDir, "uploads")
	runs := handlers.NewRunsHandler(runQueue, c.ledger, cfg.Paths.InputDir, log)
	upload := handlers.NewUploadHandler(runQueue, uploadRoot, cfg.Audio.Extensions, maxUploadSizeMB, log)
	gdrive := handlers.NewGDriveHandler(runQueue, uploadRoot, cfg.Audio.Extensions[0], log)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
			"pending": runQueue.Pending(),
		})
	})
	app.Post("/runs", runs.Create)
	app.Post("/runs/upload", upload.Handle)
	app.Post("/runs/gdrive", gdrive.Handle)
	app.Get("/runs", runs.List)
	app.Get("/runs/:id", runs.Get)
	app.Get("/logs", logBuffer.Handle)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down gracefully")
		app.Shutdown()
	}()

	log.Info().
		Str("addr", cfg.Addr()).
		Strs("endpoints", []string{
			"POST /runs", "POST /runs/upload", "POST /runs/gdrive",
			"GET /runs", "GET /runs/:id", "GET /logs", "GET /health",
		}).
		Msg("server starting")

	return app.Listen(cfg.Addr())
}
