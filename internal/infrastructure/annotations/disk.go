package annotations

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/promolens/backend/internal/domain"
)

// DiskStore keeps each annotation as a JSON file next to its image:
// page_1.jpg is cached as page_1.json.
type DiskStore struct{}

// NewDiskStore creates a new disk-backed annotation store
func NewDiskStore() *DiskStore {
	return &DiskStore{}
}

// PathFor returns the annotation file path for an image
func PathFor(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
}

// Load reads the stored annotation of an image. A missing file is reported
// as domain.ErrAnnotationNotFound.
func (s *DiskStore) Load(imagePath string) (*domain.Annotation, error) {
	path := PathFor(imagePath)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrAnnotationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation %s: %w", path, err)
	}

	var annotation domain.Annotation
	if err := json.Unmarshal(data, &annotation); err != nil {
		return nil, fmt.Errorf("failed to decode annotation %s: %w", path, err)
	}
	return &annotation, nil
}

// Save writes the annotation beside the image, replacing any earlier one.
// The file is written to a temporary name first so readers never see a
// partial document.
func (s *DiskStore) Save(imagePath string, annotation *domain.Annotation) error {
	path := PathFor(imagePath)

	data, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("failed to encode annotation: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create annotation file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write annotation %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write annotation %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write annotation %s: %w", path, err)
	}
	return nil
}
