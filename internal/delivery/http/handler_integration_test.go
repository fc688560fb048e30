package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/promolens/backend/config"
	"github.com/promolens/backend/internal/domain"
	"github.com/promolens/backend/internal/layout"
	"github.com/promolens/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	// Run tests
	exitCode := m.Run()

	// Exit with the test result code
	os.Exit(exitCode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*", "https://promo.example.com"},
		},
		Cache: config.CacheConfig{
			Type: "memory",
		},
	}
}

// setupTestRouter creates a test router without a flyer service
func setupTestRouter() *gin.Engine {
	handler := NewHandler(nil, nil, nil, nil)
	if handler == nil {
		panic("setupTestRouter: NewHandler returned nil")
	}

	router := SetupRouter(testConfig(), handler)
	if router == nil {
		panic("setupTestRouter: SetupRouter returned nil *gin.Engine")
	}

	return router
}

// setupTestRouterWithService creates a test router with a real FlyerService
// and no OCR engine
func setupTestRouterWithService(mode usecase.FixPriceMode) *gin.Engine {
	products := usecase.NewMatchingService([]string{"Great Brand Cereal", "Whole Milk"}, usecase.MatchConfig{}, nil)
	units := usecase.NewUnitParser([]string{"oz", "lb", "gallon"})
	extractor := usecase.NewExtractionService(products, units, usecase.ExtractionConfig{FixPriceMode: mode})
	flyers := usecase.NewFlyerService(nil, nil, nil, extractor, usecase.FlyerServiceConfig{
		Cluster: layout.DefaultClusterOptions(),
	}, nil)

	return SetupRouter(testConfig(), NewHandler(flyers, products, units, nil))
}

func rectBlock(x, y, w, h int, text string) domain.Block {
	var paragraph domain.Paragraph
	for _, word := range strings.Fields(text) {
		paragraph.Words = append(paragraph.Words, domain.Word{Symbols: []domain.Symbol{{Text: word}}})
	}
	return domain.Block{
		BoundingBox: domain.BoundingPoly{Vertices: []domain.Vertex{
			{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h},
		}},
		Paragraphs: []domain.Paragraph{paragraph},
	}
}

// extractPayload renders an extraction request for one ad block of four
// stacked fragments and a distant footer
func extractPayload(t *testing.T, flyerName, product, price string) string {
	t.Helper()
	req := domain.ExtractRequest{
		FlyerName: flyerName,
		Annotation: &domain.Annotation{
			FullTextAnnotation: domain.TextAnnotation{
				Pages: []domain.Page{{
					Blocks: []domain.Block{
						rectBlock(10, 10, 200, 40, product),
						rectBlock(10, 60, 100, 40, price),
						rectBlock(10, 110, 150, 40, "save 20% on 2"),
						rectBlock(10, 160, 100, 30, "Organic"),
						rectBlock(1000, 1000, 50, 20, "Flyer footer"),
					},
				}},
			},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	return string(body)
}

func postExtract(router *gin.Engine, payload string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/api/v1/flyers/extract", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "promolens-backend" {
			t.Errorf("service = %v, want promolens-backend", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestExtractEndpoint tests the flyer extraction endpoint
func TestExtractEndpoint(t *testing.T) {
	t.Run("returns unavailable without a flyer service", func(t *testing.T) {
		router := setupTestRouter()

		w := postExtract(router, extractPayload(t, "page_1", "Great Brand Cereal", "$3.99"))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		errorMsg, ok := response["error"].(string)
		if !ok || !strings.Contains(errorMsg, "not configured") {
			t.Errorf("error = %v, want to contain 'not configured'", response["error"])
		}
	})

	t.Run("extracts promotions from an annotation", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceLenient)

		w := postExtract(router, extractPayload(t, "page_1", "Great Brand Cereal", "$3.99"))

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
		}

		var response domain.ExtractResponse
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response.FlyerName != "page_1" || response.AdBlocks != 1 {
			t.Errorf("response = %+v, want page_1 with one ad block", response)
		}
		if len(response.Promotions) != 1 {
			t.Fatalf("got %d promotions, want 1", len(response.Promotions))
		}
		p := response.Promotions[0]
		if p.ProductName != "Great Brand Cereal" {
			t.Errorf("ProductName = %s, want Great Brand Cereal", p.ProductName)
		}
		if p.UnitPromoPrice == nil || *p.UnitPromoPrice != 3.99 {
			t.Errorf("UnitPromoPrice = %v, want 3.99", p.UnitPromoPrice)
		}
		// 20% on 2 units is 10% per unit
		if p.PercentDiscount == nil || math.Abs(*p.PercentDiscount-0.1) > 1e-9 {
			t.Errorf("PercentDiscount = %v, want 0.1", p.PercentDiscount)
		}
		if p.IsOrganic == nil || !*p.IsOrganic {
			t.Errorf("IsOrganic = %v, want true", p.IsOrganic)
		}
	})

	t.Run("returns empty list when no product matches", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceLenient)

		w := postExtract(router, extractPayload(t, "page_1", "Bananas", "$0.59"))

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var response domain.ExtractResponse
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response.Promotions == nil || len(response.Promotions) != 0 {
			t.Errorf("Promotions = %v, want empty list", response.Promotions)
		}
	})

	t.Run("returns 400 for missing flyerName", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceLenient)

		w := postExtract(router, `{"annotation":{"fullTextAnnotation":{"pages":[]}}}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 400 for missing annotation", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceLenient)

		w := postExtract(router, `{"flyerName":"page_1"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 400 for invalid JSON", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceLenient)

		w := postExtract(router, `{"flyerName":`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 422 for a block without vertices", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceLenient)

		payload := `{"flyerName":"page_1","annotation":{"fullTextAnnotation":{"pages":[{"blocks":[{"boundingBox":{"vertices":[]},"paragraphs":[]}]}]}}}`
		w := postExtract(router, payload)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("returns 422 with the failing cluster in strict mode", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceStrict)

		w := postExtract(router, extractPayload(t, "page_1", "Great Brand Cereal", "$1250"))

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["image"] != "page_1" {
			t.Errorf("image = %v, want page_1", response["image"])
		}
		if response["cluster"] != float64(0) {
			t.Errorf("cluster = %v, want 0", response["cluster"])
		}
	})
}

// TestDictionaryStatsEndpoint tests the dictionary stats endpoint
func TestDictionaryStatsEndpoint(t *testing.T) {
	t.Run("reports dictionary sizes", func(t *testing.T) {
		router := setupTestRouterWithService(usecase.FixPriceLenient)

		req, _ := http.NewRequest("GET", "/api/v1/dictionary/stats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]int
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["products"] != 2 || response["units"] != 3 {
			t.Errorf("stats = %v, want 2 products and 3 units", response)
		}
	})

	t.Run("reports zero without dictionaries", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/api/v1/dictionary/stats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var response map[string]int
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["products"] != 0 || response["units"] != 0 {
			t.Errorf("stats = %v, want zeros", response)
		}
	})
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for allowed origin", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "http://localhost:8081")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "http://localhost:8081" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "http://localhost:8081")
		}
	})

	t.Run("preflight on extract endpoint", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("OPTIONS", "/api/v1/flyers/extract", nil)
		req.Header.Set("Origin", "https://promo.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://promo.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://promo.example.com")
		}
	})
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic without crashing server", func(t *testing.T) {
		router := setupTestRouter()

		// Add a test route that panics
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req, _ := http.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		// This should not crash the test - recovery middleware should handle it
		router.ServeHTTP(w, req)

		// Gin's default recovery returns 500
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

// TestAPIVersioning tests that API v1 routes are correctly versioned
func TestAPIVersioning(t *testing.T) {
	t.Run("non-versioned routes return 404", func(t *testing.T) {
		router := setupTestRouter()

		for _, path := range []string{"/api/flyers/extract", "/flyers/extract", "/api/v1/flyers"} {
			req, _ := http.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Path %s: Status = %d, want %d", path, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestJSONResponses tests that all responses are valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/v1/dictionary/stats"},
		{"POST", "/api/v1/flyers/extract"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router := setupTestRouterWithService(usecase.FixPriceLenient)

			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			gotContentType := w.Header().Get("Content-Type")
			wantContentType := "application/json; charset=utf-8"
			if gotContentType != wantContentType {
				t.Errorf("Content-Type = %q, want %q", gotContentType, wantContentType)
			}

			var response map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Errorf("Response should be valid JSON, got error: %v", err)
			}
		})
	}
}
