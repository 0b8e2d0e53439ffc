package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spectrovideo/apiserver"
	"spectrovideo/framegenerator"
	"spectrovideo/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := framegenerator.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	flag.StringVar(&settings.PanoramaPath, "in", settings.PanoramaPath, "panorama image (RGB, frame height)")
	flag.StringVar(&settings.OutputDir, "out", settings.OutputDir, "directory receiving the numbered frames")
	flag.IntVar(&settings.Workers, "workers", settings.Workers, "frames rendered in parallel, 0 for one per CPU")
	serve := flag.Bool("serve", false, "serve preview frames over HTTP instead of writing them")
	flag.Parse()

	cfg, err := settings.Config()
	if err != nil {
		return err
	}

	log, err := logger.New(settings.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With(zap.String("run_id", uuid.NewString()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := framegenerator.NewGGBackend()
	if err != nil {
		return err
	}

	extractor, err := framegenerator.NewExtractor(cfg, backend, log)
	if err != nil {
		return err
	}

	panorama, err := extractor.Load(settings.PanoramaPath)
	if err != nil {
		return err
	}

	if *serve {
		return apiserver.NewServer(extractor, panorama, backend, log).Run(ctx, settings.PreviewPort)
	}

	res, err := extractor.Extract(ctx, panorama)
	if err != nil {
		return err
	}

	fmt.Printf("Frames written: %d\nEncode with: ffmpeg -framerate %d -i %s/%%06d.%s -i <audio> out.mp4\nAudio must last %.2f seconds\n",
		res.Written, res.Plan.FrameRate, cfg.OutputDir, cfg.Format, res.Plan.Duration)
	return nil
}
