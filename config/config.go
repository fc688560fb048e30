package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Vision     VisionConfig     `mapstructure:"vision"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Output     OutputConfig     `mapstructure:"output"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// VisionConfig holds Cloud Vision API configuration
type VisionConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// OCRConfig selects the OCR engine
type OCRConfig struct {
	Engine    string   `mapstructure:"engine"` // "vision", "tesseract" or "none"
	Languages []string `mapstructure:"languages"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// DictionaryConfig locates the product and unit dictionaries
type DictionaryConfig struct {
	ProductsPath string `mapstructure:"products_path"`
	UnitsPath    string `mapstructure:"units_path"`
}

// PipelineConfig tunes the extraction pipeline
type PipelineConfig struct {
	ImageDir        string  `mapstructure:"image_dir"`
	OutputPath      string  `mapstructure:"output_path"`
	MaxImages       int     `mapstructure:"max_images"`
	Workers         int     `mapstructure:"workers"`
	MinConfidence   int     `mapstructure:"min_confidence"`
	MaxLinkDistance float64 `mapstructure:"max_link_distance"`
	MinClusterCount int     `mapstructure:"min_cluster_count"`
	MinBlockWidth   float64 `mapstructure:"min_block_width"`
	MinBlockHeight  float64 `mapstructure:"min_block_height"`
	FixPriceMode    string  `mapstructure:"fix_price_mode"` // "lenient" or "strict"
}

// OutputConfig selects where promotions are written
type OutputConfig struct {
	Type        string `mapstructure:"type"` // "csv" or "postgres"
	DatabaseURL string `mapstructure:"database_url"`
	CSVHeader   bool   `mapstructure:"csv_header"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// NewViper returns a viper instance with config search paths, environment
// binding and defaults applied. Callers may bind flags to it before
// passing it to LoadFrom.
func NewViper() *viper.Viper {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/promolens/")

	// Environment variable settings: PROMOLENS_PIPELINE_IMAGE_DIR -> pipeline.image_dir
	v.SetEnvPrefix("PROMOLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// Load loads configuration from the environment, an optional .env file and
// an optional config.yaml
func Load() (*Config, error) {
	return LoadFrom(NewViper(), "")
}

// LoadFrom loads configuration through v. A non-empty configFile replaces
// the config.yaml search.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present. Variables
// already set in the environment win.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key gets a default
// so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Vision defaults
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.base_url", "https://vision.googleapis.com")
	v.SetDefault("vision.requests_per_second", 10)
	v.SetDefault("vision.burst", 5)

	// OCR defaults
	v.SetDefault("ocr.engine", "vision")
	v.SetDefault("ocr.languages", []string{"eng"})

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Dictionary defaults
	v.SetDefault("dictionary.products_path", "res/csv/products.csv")
	v.SetDefault("dictionary.units_path", "res/csv/units.csv")

	// Pipeline defaults
	v.SetDefault("pipeline.image_dir", "res/full/ad-pages")
	v.SetDefault("pipeline.output_path", "res/full/ad-pages.csv")
	v.SetDefault("pipeline.max_images", 212)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.min_confidence", 80)
	v.SetDefault("pipeline.max_link_distance", 50)
	v.SetDefault("pipeline.min_cluster_count", 2)
	v.SetDefault("pipeline.min_block_width", 0)
	v.SetDefault("pipeline.min_block_height", 0)
	v.SetDefault("pipeline.fix_price_mode", "lenient")

	// Output defaults
	v.SetDefault("output.type", "csv")
	v.SetDefault("output.database_url", "")
	v.SetDefault("output.csv_header", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.OCR.Engine {
	case "vision":
		if config.Vision.APIKey == "" {
			return fmt.Errorf("Vision API key is required (set PROMOLENS_VISION_API_KEY)")
		}
	case "tesseract", "none":
	default:
		return fmt.Errorf("ocr engine must be 'vision', 'tesseract' or 'none', got: %s", config.OCR.Engine)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Output.Type != "csv" && config.Output.Type != "postgres" {
		return fmt.Errorf("output type must be 'csv' or 'postgres', got: %s", config.Output.Type)
	}

	if config.Output.Type == "postgres" && config.Output.DatabaseURL == "" {
		return fmt.Errorf("database URL is required when output type is 'postgres'")
	}

	if mode := strings.ToLower(config.Pipeline.FixPriceMode); mode != "lenient" && mode != "strict" {
		return fmt.Errorf("fix price mode must be 'lenient' or 'strict', got: %s", config.Pipeline.FixPriceMode)
	}

	if config.Pipeline.MaxImages <= 0 {
		return fmt.Errorf("pipeline max_images must be positive, got: %d", config.Pipeline.MaxImages)
	}

	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive, got: %d", config.Pipeline.Workers)
	}

	if config.Pipeline.MinConfidence < 0 || config.Pipeline.MinConfidence > 100 {
		return fmt.Errorf("pipeline min_confidence must be within 0-100, got: %d", config.Pipeline.MinConfidence)
	}

	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}
