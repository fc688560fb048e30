package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/promolens/backend/internal/domain"
)

// Engine annotates images locally with Tesseract. Its word boxes are
// regrouped into the block/paragraph/word tree the Vision API returns so
// both engines feed the same layout stage.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed OCR engine
func NewEngine(languages []string) *Engine {
	return &Engine{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Annotate runs OCR on the image file at imagePath
func (e *Engine) Annotate(ctx context.Context, imagePath string) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("%w: set languages: %v", domain.ErrOCRFailure, err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("%w: set image: %v", domain.ErrOCRFailure, err)
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("%w: recognize: %v", domain.ErrOCRFailure, err)
	}

	return BuildAnnotation(boxes), nil
}

// BuildAnnotation groups word boxes by block and paragraph number, keeping
// the order Tesseract reports them in. Empty words are dropped.
func BuildAnnotation(boxes []gosseract.BoundingBox) *domain.Annotation {
	var page domain.Page
	var blockBounds, paragraphBounds image.Rectangle
	lastBlock, lastParagraph := -1, -1

	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}

		if b.BlockNum != lastBlock || len(page.Blocks) == 0 {
			page.Blocks = append(page.Blocks, domain.Block{})
			lastBlock, lastParagraph = b.BlockNum, -1
			blockBounds = b.Box
		}
		block := &page.Blocks[len(page.Blocks)-1]

		if b.ParNum != lastParagraph {
			block.Paragraphs = append(block.Paragraphs, domain.Paragraph{})
			lastParagraph = b.ParNum
			paragraphBounds = b.Box
		}
		paragraph := &block.Paragraphs[len(block.Paragraphs)-1]

		paragraph.Words = append(paragraph.Words, domain.Word{
			BoundingBox: polygon(b.Box),
			Symbols:     []domain.Symbol{{Text: text}},
		})

		blockBounds = blockBounds.Union(b.Box)
		paragraphBounds = paragraphBounds.Union(b.Box)
		block.BoundingBox = polygon(blockBounds)
		paragraph.BoundingBox = polygon(paragraphBounds)
	}

	annotation := &domain.Annotation{}
	if len(page.Blocks) > 0 {
		annotation.FullTextAnnotation.Pages = []domain.Page{page}
	}
	return annotation
}

// polygon lists the corners of r clockwise from the top left
func polygon(r image.Rectangle) domain.BoundingPoly {
	return domain.BoundingPoly{Vertices: []domain.Vertex{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}}
}
