package vision

import (
	"fmt"
	"strings"

	"github.com/promolens/backend/internal/domain"
)

// MapToFragments flattens the block hierarchy of an annotation into text
// fragments in reading order. Fragment indices run across pages.
func MapToFragments(annotation *domain.Annotation) ([]*domain.Fragment, error) {
	if annotation == nil {
		return nil, nil
	}

	var fragments []*domain.Fragment
	for p, page := range annotation.FullTextAnnotation.Pages {
		for b, block := range page.Blocks {
			bounds, err := block.BoundingBox.Rect()
			if err != nil {
				return nil, fmt.Errorf("page %d, block %d: %w", p, b, err)
			}

			fragments = append(fragments, &domain.Fragment{
				Index:  len(fragments),
				Bounds: bounds,
				Text:   BlockText(block),
			})
		}
	}

	return fragments, nil
}

// BlockText joins the paragraphs of a block with newlines
func BlockText(block domain.Block) string {
	paragraphs := make([]string, 0, len(block.Paragraphs))
	for _, paragraph := range block.Paragraphs {
		paragraphs = append(paragraphs, ParagraphText(paragraph))
	}
	return strings.Join(paragraphs, "\n")
}

// ParagraphText joins the words of a paragraph with spaces
func ParagraphText(paragraph domain.Paragraph) string {
	words := make([]string, 0, len(paragraph.Words))
	for _, word := range paragraph.Words {
		words = append(words, WordText(word))
	}
	return strings.Join(words, " ")
}

// WordText concatenates the symbols of a word
func WordText(word domain.Word) string {
	var sb strings.Builder
	for _, symbol := range word.Symbols {
		sb.WriteString(symbol.Text)
	}
	return sb.String()
}
