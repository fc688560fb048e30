package app

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/promolens/backend/config"
	"github.com/promolens/backend/internal/domain"
	"github.com/promolens/backend/internal/geometry"
	"github.com/promolens/backend/internal/infrastructure/annotations"
	"github.com/promolens/backend/internal/infrastructure/cache"
	"github.com/promolens/backend/internal/infrastructure/dictionary"
	"github.com/promolens/backend/internal/infrastructure/output"
	"github.com/promolens/backend/internal/infrastructure/tesseract"
	"github.com/promolens/backend/internal/infrastructure/vision"
	"github.com/promolens/backend/internal/layout"
	"github.com/promolens/backend/internal/usecase"
)

// App holds the services shared by the server and the batch command
type App struct {
	Products *usecase.MatchingService
	Units    *usecase.UnitParser
	Flyers   *usecase.FlyerService

	closers []io.Closer
}

// New loads the dictionaries and wires the OCR engine, annotation store,
// cache and extraction services described by cfg.
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	products, err := dictionary.Load(cfg.Dictionary.ProductsPath)
	if err != nil {
		return nil, fmt.Errorf("loading product dictionary: %w", err)
	}
	unitEntries, err := dictionary.Load(cfg.Dictionary.UnitsPath)
	if err != nil {
		return nil, fmt.Errorf("loading unit dictionary: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"products": len(products),
		"units":    len(unitEntries),
	}).Info("dictionaries loaded")

	fixPriceMode, err := usecase.ParseFixPriceMode(cfg.Pipeline.FixPriceMode)
	if err != nil {
		return nil, err
	}

	a := &App{}

	a.Products = usecase.NewMatchingService(products, usecase.MatchConfig{
		MinConfidenceThreshold: cfg.Pipeline.MinConfidence,
		EnableDebugLogging:     cfg.Log.Level == "debug",
	}, logger)
	a.Units = usecase.NewUnitParser(unitEntries)
	extractor := usecase.NewExtractionService(a.Products, a.Units, usecase.ExtractionConfig{
		FixPriceMode: fixPriceMode,
	})

	annotationCache, err := a.newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.Flyers = usecase.NewFlyerService(
		newEngine(cfg, logger),
		annotations.NewDiskStore(),
		annotationCache,
		extractor,
		usecase.FlyerServiceConfig{
			MaxImages: cfg.Pipeline.MaxImages,
			Workers:   cfg.Pipeline.Workers,
			CacheTTL:  cfg.Cache.TTL,
			Cluster:   ClusterOptions(cfg.Pipeline),
		},
		logger,
	)

	return a, nil
}

// ClusterOptions converts the pipeline settings into layout options
func ClusterOptions(p config.PipelineConfig) layout.ClusterOptions {
	return layout.ClusterOptions{
		MaxDistance:   p.MaxLinkDistance,
		MinCount:      p.MinClusterCount,
		MinDimensions: geometry.Dimensions{Width: p.MinBlockWidth, Height: p.MinBlockHeight},
	}
}

// NewSink opens the promotion sink selected by the output settings
func NewSink(ctx context.Context, cfg *config.Config) (domain.PromotionSink, error) {
	if cfg.Output.Type == "postgres" {
		sink, err := output.NewPostgresSink(ctx, cfg.Output.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}

	sink, err := output.NewCSVFileWriter(cfg.Pipeline.OutputPath, cfg.Output.CSVHeader)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// Close releases the cache connection
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) newCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, error) {
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisCache)
		return redisCache, nil
	}

	memoryCache := cache.NewMemoryCache()
	a.closers = append(a.closers, memoryCache)
	return memoryCache, nil
}

// newEngine returns nil for the "none" engine so only stored annotations
// are processed
func newEngine(cfg *config.Config, logger logrus.FieldLogger) domain.OCREngine {
	switch cfg.OCR.Engine {
	case "vision":
		client := vision.NewClient(cfg.Vision.APIKey, cfg.Vision.BaseURL, cfg.Vision.RequestsPerSecond, cfg.Vision.Burst, logger)
		client.SetDebug(cfg.Server.Environment == "development")
		return client
	case "tesseract":
		return tesseract.NewEngine(cfg.OCR.Languages)
	default:
		return nil
	}
}
