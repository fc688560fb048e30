package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/promolens/backend/config"
	"github.com/promolens/backend/internal/app"
	"github.com/promolens/backend/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flyerparse: %v\n", err)
		os.Exit(1)
	}
}

// run annotates every flyer page in the image directory, extracts the
// promotions and writes them to the configured sink
func run(args []string) error {
	flags := pflag.NewFlagSet("flyerparse", pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", "", "config file (default: config.yaml in . or ./config)")
	flags.StringP("images", "i", "", "directory of flyer page images")
	flags.StringP("output", "o", "", "CSV file receiving the promotions")
	flags.Int("max-images", 0, "maximum number of pages to process")
	flags.Int("workers", 0, "pages processed concurrently")
	flags.String("engine", "", "OCR engine: vision, tesseract or none")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	v := config.NewViper()
	for key, flag := range map[string]string{
		"pipeline.image_dir":   "images",
		"pipeline.output_path": "output",
		"pipeline.max_images":  "max-images",
		"pipeline.workers":     "workers",
		"ocr.engine":           "engine",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	cfg, err := config.LoadFrom(v, *configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	sink, err := app.NewSink(ctx, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	promotions, err := services.Flyers.ProcessDirectory(ctx, cfg.Pipeline.ImageDir)
	if err != nil {
		sink.Close()
		return err
	}

	if err := sink.Write(ctx, promotions); err != nil {
		sink.Close()
		return fmt.Errorf("writing promotions: %w", err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"promotions": len(promotions),
		"output":     cfg.Output.Type,
		"duration":   time.Since(start).Round(time.Millisecond).String(),
	}).Info("flyer parsing complete")
	return nil
}
