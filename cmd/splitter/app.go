package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
	"github.com/codebuildervaibhav/speaker-splitter/internal/config"
	"github.com/codebuildervaibhav/speaker-splitter/internal/diarization"
	"github.com/codebuildervaibhav/speaker-splitter/internal/pipeline"
	"github.com/codebuildervaibhav/speaker-splitter/internal/segment"
	"github.com/codebuildervaibhav/speaker-splitter/internal/separation"
	"github.com/codebuildervaibhav/speaker-splitter/internal/storage"
)

// components are shared by the run and serve commands
type components struct {
	ledger   *storage.Ledger
	pipeline *pipeline.Pipeline
}

func (c *components) Close() error {
	return c.ledger.Close()
}

func buildComponents(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*components, error) {
	if err := storage.EnsureDir(filepath.Dir(cfg.Paths.Database)); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}
	ledger, err := storage.NewLedger(cfg.Paths.Database)
	if err != nil {
		return nil, err
	}

	drive, err := storage.NewDriveClient(ctx,
		cfg.GoogleDrive.CredentialsFile,
		cfg.GoogleDrive.TokenFile,
		cfg.GoogleDrive.FolderName,
		logger,
	)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("google drive: %w", err)
	}

	format := cfg.Format()
	ffmpeg := audio.NewFFmpeg(cfg.Audio.FFmpeg, format)

	p := pipeline.New(pipeline.Config{
		TempDir:            cfg.Paths.TempDir,
		FinalAudioPath:     cfg.Paths.FinalAudio,
		OutputRoot:         cfg.Paths.OutputRoot,
		Format:             format,
		SilenceThresholdDB: cfg.Silence.ThresholdDB,
		MinSilenceMs:       cfg.Silence.MinSilenceMs,
	}, pipeline.Deps{
		Combiner:     audio.NewIngestor(ffmpeg, format, cfg.Audio.Extensions, logger),
		Intermediate: audio.WAV{},
		Final:        ffmpeg,
		Separator: separation.NewDemucs(separation.Config{
			Python:    cfg.Separation.Python,
			Model:     cfg.Separation.Model,
			ExtraArgs: cfg.Separation.ExtraArgs,
			Timeout:   cfg.SeparationTimeout(),
		}, logger),
		Publisher: drive,
		Diarizer: diarization.NewAssemblyAI(diarization.Config{
			BaseURL:      cfg.AssemblyAI.BaseURL,
			APIKey:       cfg.AssemblyAI.APIKey,
			PollInterval: cfg.PollInterval(),
			MaxWait:      cfg.MaxWait(),
		}, logger),
		Segmenter: segment.NewSegmenter(audio.WAV{}, logger),
		Ledger:    ledger,
	}, logger)

	return &components{ledger: ledger, pipeline: p}, nil
}
