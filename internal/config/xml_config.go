// Package config provides XML-based configuration management with
// environment overrides.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"TechSpecReviewer"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// AI review configuration
	Review ReviewConfig `xml:"Review"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Report archive configuration
	Archive ArchiveConfig `xml:"Archive"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	PublicURL    string `xml:"PublicURL"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	StaticDirectory  string `xml:"StaticDirectory"`
	HistoryDatabase  string `xml:"HistoryDatabase"`
}

// ReviewConfig selects the AI provider and the review inputs
type ReviewConfig struct {
	Provider          string  `xml:"Provider"`
	ModelID           string  `xml:"ModelID"`
	Region            string  `xml:"Region"`
	MaxTokens         int     `xml:"MaxTokens"`
	Temperature       float64 `xml:"Temperature"`
	MaxRetries        int     `xml:"MaxRetries"`
	RequestsPerMinute int     `xml:"RequestsPerMinute"`
	OpenAIAPIKey      string  `xml:"OpenAIAPIKey"`
	OpenAIBaseURL     string  `xml:"OpenAIBaseURL"`
	OllamaURL         string  `xml:"OllamaURL"`
	TemplatePath      string  `xml:"TemplatePath"`
	RulesPath         string  `xml:"RulesPath"`
	ChunkAnnotations  bool    `xml:"ChunkAnnotations"`
}

// ProcessingConfig contains review session settings
type ProcessingConfig struct {
	MaxSessions            int  `xml:"MaxSessions"`
	SessionTimeoutMinutes  int  `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int  `xml:"CleanupIntervalMinutes"`
	EnableCompression      bool `xml:"EnableCompression"`
	CompressionLevel       int  `xml:"CompressionLevel"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool   `xml:"AllowFileDeletion"`
	AllowedFileTypes  string `xml:"AllowedFileTypes"`
	MaxFileSize       string `xml:"MaxFileSize"`
	ShareSecret       string `xml:"ShareSecret"`
	ShareTTLMinutes   int    `xml:"ShareTTLMinutes"`
}

// ArchiveConfig enables copying finished reports to S3
type ArchiveConfig struct {
	S3Bucket string `xml:"S3Bucket"`
	S3Prefix string `xml:"S3Prefix"`
	Format   string `xml:"Format"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8501,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 330,
			IdleTimeout:  120,
			BodyLimit:    "15M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			StaticDirectory:  "./static",
			HistoryDatabase:  "./data/history.duckdb",
		},
		Review: ReviewConfig{
			Provider:          "bedrock",
			ModelID:           "anthropic.claude-3-sonnet-20240229-v1:0",
			Region:            "us-east-1",
			MaxTokens:         1500,
			Temperature:       0.7,
			MaxRetries:        3,
			RequestsPerMinute: 0,
			OllamaURL:         "http://localhost:11434",
			TemplatePath:      "TechspecificationTemplate.docx",
			RulesPath:         "review_rules.yaml",
		},
		Processing: ProcessingConfig{
			MaxSessions:            50,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			AllowedFileTypes:  ".pdf,.docx,.txt,.html,.htm",
			MaxFileSize:       "10MB",
			ShareTTLMinutes:   24 * 60,
		},
		Archive: ArchiveConfig{
			Format: "pdf",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file. A missing file is created
// with defaults. A .env file next to it is loaded into the environment first.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(configDir)

	return config, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding the real environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	fmt.Printf("[Config] Loaded environment from %s\n", path)
	return nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- TechSpec Reviewer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		c.Server.BindAddress = addr
	}
	if url := os.Getenv("PUBLIC_URL"); url != "" {
		c.Server.PublicURL = url
	}

	// DATA_DIR moves every storage path that still sits under the default data dir
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.HistoryDatabase = filepath.Join(dataDir, "history.duckdb")
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		c.Review.Region = region
	}
	if provider := os.Getenv("REVIEW_PROVIDER"); provider != "" {
		c.Review.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("REVIEW_MODEL"); model != "" {
		c.Review.ModelID = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Review.OpenAIAPIKey = key
	} else if key := os.Getenv("REVIEWER_API_KEY"); key != "" {
		c.Review.OpenAIAPIKey = key
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		c.Review.OllamaURL = url
	}

	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.Archive.S3Bucket = bucket
	}
	if secret := os.Getenv("SHARE_SECRET"); secret != "" {
		c.Security.ShareSecret = secret
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.StaticDirectory,
		&c.Storage.HistoryDatabase,
		&c.Review.TemplatePath,
		&c.Review.RulesPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// MaxFileSizeBytes parses Security.MaxFileSize ("10MB", "512K", "1048576").
func (c *AppConfig) MaxFileSizeBytes() (int64, error) {
	return ParseSize(c.Security.MaxFileSize)
}

// ParseSize parses a byte size with an optional K, M or G suffix (B optional).
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1<<10, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1<<20, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		mult, s = 1<<30, strings.TrimSuffix(s, "G")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.StaticDirectory,
		filepath.Dir(c.Storage.HistoryDatabase),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
