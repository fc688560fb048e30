package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/promolens/backend/internal/domain"
	"github.com/promolens/backend/internal/infrastructure/vision"
	"github.com/promolens/backend/internal/layout"
)

const (
	defaultMaxImages = 212
	defaultWorkers   = 4
	defaultCacheTTL  = 720 * time.Hour // 30 days
)

// FlyerServiceConfig holds configuration for the flyer service
type FlyerServiceConfig struct {
	MaxImages int
	Workers   int
	CacheTTL  time.Duration
	Cluster   layout.ClusterOptions
}

// FlyerService runs the OCR -> layout -> extraction pipeline over flyer images
type FlyerService struct {
	engine    domain.OCREngine
	store     domain.AnnotationStore
	cache     domain.CacheRepository
	extractor *ExtractionService
	maxImages int
	workers   int
	cacheTTL  time.Duration
	cluster   layout.ClusterOptions
	logger    logrus.FieldLogger
}

// NewFlyerService creates a new flyer service with dependencies. The
// engine, store and cache are optional: without an engine only stored
// annotations can be processed.
func NewFlyerService(
	engine domain.OCREngine,
	store domain.AnnotationStore,
	cache domain.CacheRepository,
	extractor *ExtractionService,
	config FlyerServiceConfig,
	logger logrus.FieldLogger,
) *FlyerService {
	maxImages := config.MaxImages
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}

	workers := config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = defaultCacheTTL
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &FlyerService{
		engine:    engine,
		store:     store,
		cache:     cache,
		extractor: extractor,
		maxImages: maxImages,
		workers:   workers,
		cacheTTL:  cacheTTL,
		cluster:   config.Cluster,
		logger:    logger.WithField("component", "flyer"),
	}
}

// ProcessAnnotation finds the ad blocks of one annotated flyer page and
// extracts a promotion from each. Blocks without a confident product name
// are skipped; any other extraction error aborts the page.
func (s *FlyerService) ProcessAnnotation(ctx context.Context, flyerName string, annotation *domain.Annotation) (*domain.ExtractResponse, error) {
	if annotation == nil {
		return nil, domain.ErrInvalidRequest
	}

	fragments, err := vision.MapToFragments(annotation)
	if err != nil {
		return nil, &domain.ExtractionError{Image: flyerName, Cluster: -1, Err: err}
	}

	blocks := layout.FindAdBlocks(fragments, s.cluster)
	response := &domain.ExtractResponse{
		FlyerName:  flyerName,
		AdBlocks:   len(blocks),
		Promotions: []domain.Promotion{},
	}

	for i, block := range blocks {
		promotion, err := s.extractor.Extract(ctx, flyerName, block.Text())
		if errors.Is(err, domain.ErrLowConfidence) || errors.Is(err, domain.ErrNoProductMatch) {
			s.logger.WithFields(logrus.Fields{
				"image":   flyerName,
				"cluster": i,
			}).Debug("skipping block without a confident product name")
			continue
		}
		if err != nil {
			return nil, &domain.ExtractionError{Image: flyerName, Cluster: i, Err: err}
		}

		s.logger.WithFields(logrus.Fields{
			"image":   flyerName,
			"cluster": i,
			"product": promotion.ProductName,
		}).Info("parsed promotion")
		response.Promotions = append(response.Promotions, *promotion)
	}

	return response, nil
}

// ProcessImage annotates one image (or reuses a stored annotation) and
// extracts its promotions. The flyer name is the file name without its
// extension.
func (s *FlyerService) ProcessImage(ctx context.Context, imagePath string) (*domain.ExtractResponse, error) {
	annotation, err := s.Annotation(ctx, imagePath)
	if err != nil {
		return nil, &domain.ExtractionError{Image: filepath.Base(imagePath), Cluster: -1, Err: err}
	}
	return s.ProcessAnnotation(ctx, FlyerName(imagePath), annotation)
}

// ProcessDirectory processes the *.jpg images of a directory in name order,
// at most MaxImages of them, and returns their promotions in that order.
func (s *FlyerService) ProcessDirectory(ctx context.Context, dir string) ([]domain.Promotion, error) {
	images, err := s.ListImages(dir)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := s.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"dir":    dir,
	})
	logger.WithField("images", len(images)).Info("processing flyer images")

	results := make([][]domain.Promotion, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, image := range images {
		g.Go(func() error {
			response, err := s.ProcessImage(gctx, image)
			if err != nil {
				return err
			}
			results[i] = response.Promotions
			logger.WithFields(logrus.Fields{
				"image":      filepath.Base(image),
				"ad_blocks":  response.AdBlocks,
				"promotions": len(response.Promotions),
			}).Debug("image processed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var promotions []domain.Promotion
	for _, r := range results {
		promotions = append(promotions, r...)
	}

	logger.WithField("promotions", len(promotions)).Info("run complete")
	return promotions, nil
}

// ListImages returns the *.jpg files of dir sorted by name, capped at
// MaxImages.
func (s *FlyerService) ListImages(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrNotDirectory, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".jpg") {
			continue
		}
		images = append(images, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(images)

	if len(images) > s.maxImages {
		images = images[:s.maxImages]
	}
	return images, nil
}

// Annotation returns the annotation of an image.
// Flow: check cache -> check store -> run OCR -> store -> cache -> return
func (s *FlyerService) Annotation(ctx context.Context, imagePath string) (*domain.Annotation, error) {
	cacheKey := s.generateCacheKey(imagePath)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		return cached, nil
	}

	if s.store != nil {
		annotation, err := s.store.Load(imagePath)
		if err == nil {
			s.setInCache(ctx, cacheKey, annotation)
			return annotation, nil
		}
		if !errors.Is(err, domain.ErrAnnotationNotFound) {
			return nil, err
		}
	}

	if s.engine == nil {
		return nil, fmt.Errorf("%w: no OCR engine configured", domain.ErrAnnotationNotFound)
	}

	annotation, err := s.engine.Annotate(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.Save(imagePath, annotation); err != nil {
			s.logger.WithError(err).WithField("image", filepath.Base(imagePath)).Warn("failed to store annotation")
		}
	}
	s.setInCache(ctx, cacheKey, annotation)

	return annotation, nil
}

// FlyerName is the image file name without its extension
func FlyerName(imagePath string) string {
	base := filepath.Base(imagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// generateCacheKey creates a cache key for an image annotation.
// Format: "annotation:{engine}:{normalized_file_name}"
func (s *FlyerService) generateCacheKey(imagePath string) string {
	engine := "stored"
	if s.engine != nil {
		engine = s.engine.Name()
	}
	return fmt.Sprintf("annotation:%s:%s", engine, normalizeForCacheKey(filepath.Base(imagePath)))
}

// getFromCache retrieves an annotation from cache
func (s *FlyerService) getFromCache(ctx context.Context, key string) (*domain.Annotation, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var annotation domain.Annotation
	if err := json.Unmarshal(value, &annotation); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &annotation, nil
}

// setInCache stores an annotation in cache; failures are only logged
func (s *FlyerService) setInCache(ctx context.Context, key string, annotation *domain.Annotation) {
	if s.cache == nil {
		return
	}

	value, err := json.Marshal(annotation)
	if err == nil {
		err = s.cache.Set(ctx, key, value, s.cacheTTL)
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to cache annotation")
	}
}
