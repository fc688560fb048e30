package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// OCREngine produces a text annotation for one image
type OCREngine interface {
	Name() string
	Annotate(ctx context.Context, imagePath string) (*Annotation, error)
}

// AnnotationStore persists annotations alongside the images they describe
type AnnotationStore interface {
	Load(imagePath string) (*Annotation, error)
	Save(imagePath string, annotation *Annotation) error
}

// PromotionSink receives the extracted records of a run
type PromotionSink interface {
	Write(ctx context.Context, promotions []Promotion) error
	Close() error
}
