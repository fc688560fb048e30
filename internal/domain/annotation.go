package domain

import "github.com/promolens/backend/internal/geometry"

// Annotation is the text annotation of one image as returned by the OCR
// service. The JSON layout follows the Google Vision AnnotateImageResponse
// so cached responses can be read back directly.
type Annotation struct {
	FullTextAnnotation TextAnnotation `json:"fullTextAnnotation"`
	Error              *Status        `json:"error,omitempty"`
}

// Status is the per-image error reported by the OCR service
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TextAnnotation is the page hierarchy of detected text
type TextAnnotation struct {
	Pages []Page `json:"pages"`
	Text  string `json:"text,omitempty"`
}

// Page holds the blocks detected on one page
type Page struct {
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Blocks []Block `json:"blocks"`
}

// Block is a group of paragraphs the OCR service considers one region
type Block struct {
	BoundingBox BoundingPoly `json:"boundingBox"`
	Paragraphs  []Paragraph  `json:"paragraphs"`
	Confidence  float64      `json:"confidence,omitempty"`
}

// Paragraph is a sequence of words
type Paragraph struct {
	BoundingBox BoundingPoly `json:"boundingBox"`
	Words       []Word       `json:"words"`
}

// Word is a sequence of symbols
type Word struct {
	BoundingBox BoundingPoly `json:"boundingBox"`
	Symbols     []Symbol     `json:"symbols"`
}

// Symbol is a single recognised character
type Symbol struct {
	Text string `json:"text"`
}

// BoundingPoly is the polygon around a detected element. Vertices omitted
// from the JSON have zero coordinates.
type BoundingPoly struct {
	Vertices []Vertex `json:"vertices"`
}

// Vertex is a polygon corner in image pixels
type Vertex struct {
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`
}

// Rect reduces the polygon to its axis-aligned bounding rectangle.
func (p BoundingPoly) Rect() (geometry.Rect, error) {
	points := make([]geometry.Point, 0, len(p.Vertices))
	for _, v := range p.Vertices {
		points = append(points, geometry.Point{X: float64(v.X), Y: float64(v.Y)})
	}

	r, err := geometry.FromVertices(points)
	if err != nil {
		return geometry.Rect{}, ErrEmptyPolygon
	}
	return r, nil
}

// Fragment is one OCR-detected text region. Index is its position in
// page reading order and doubles as its identity within a page.
type Fragment struct {
	Index  int
	Bounds geometry.Rect
	Text   string
}
