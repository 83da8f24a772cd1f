package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names an optional YAML file layered between defaults and env vars
const EnvConfigFile = "CLEANING_CONFIG"

// Supported artifact backends and registries
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"

	RegistryFile     = "file"
	RegistryPostgres = "postgres"
)

// Config holds all application-level configuration
type Config struct {
	// Artifact store
	Backend      string `yaml:"backend"`
	Registry     string `yaml:"registry"`
	ArtifactRoot string `yaml:"artifact_root"`
	CacheDir     string `yaml:"cache_dir"`
	Project      string `yaml:"project"`

	// S3
	S3Bucket         string `yaml:"s3_bucket"`
	S3Prefix         string `yaml:"s3_prefix"`
	S3Region         string `yaml:"s3_region"`
	S3Endpoint       string `yaml:"s3_endpoint_url"`
	S3ForcePathStyle bool   `yaml:"s3_force_path_style"`
	AWSAccessKey     string `yaml:"-"`
	AWSSecretKey     string `yaml:"-"`
	AWSSessionToken  string `yaml:"-"`

	// GCS
	GCSBucket      string `yaml:"gcs_bucket"`
	GCSPrefix      string `yaml:"gcs_prefix"`
	GCSCredentials string `yaml:"gcs_credentials"`

	// Database
	DatabaseURL    string `yaml:"database_url"`
	DBMaxOpenConns int    `yaml:"db_max_open_conns"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Backend:        BackendLocal,
		Registry:       RegistryFile,
		ArtifactRoot:   "~/.basic-cleaning/artifacts",
		CacheDir:       filepath.Join(os.TempDir(), "basic-cleaning", "cache"),
		Project:        "default",
		S3Region:       "us-east-1",
		DBMaxOpenConns: 10,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads configuration from defaults, the optional YAML file, then environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Backend = getEnv("ARTIFACT_BACKEND", cfg.Backend)
	cfg.Registry = getEnv("ARTIFACT_REGISTRY", cfg.Registry)
	cfg.ArtifactRoot = getEnv("ARTIFACT_ROOT", cfg.ArtifactRoot)
	cfg.CacheDir = getEnv("ARTIFACT_CACHE_DIR", cfg.CacheDir)
	cfg.Project = getEnv("ARTIFACT_PROJECT", cfg.Project)

	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.S3Region = getEnv("AWS_REGION", cfg.S3Region)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT_URL", cfg.S3Endpoint)
	cfg.S3ForcePathStyle = getEnvBool("S3_FORCE_PATH_STYLE", cfg.S3ForcePathStyle)
	cfg.AWSAccessKey = getEnv("AWS_ACCESS_KEY_ID", cfg.AWSAccessKey)
	cfg.AWSSecretKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.AWSSecretKey)
	cfg.AWSSessionToken = getEnv("AWS_SESSION_TOKEN", cfg.AWSSessionToken)

	cfg.GCSBucket = getEnv("GCS_BUCKET", cfg.GCSBucket)
	cfg.GCSPrefix = getEnv("GCS_PREFIX", cfg.GCSPrefix)
	cfg.GCSCredentials = getEnv("GCS_CREDENTIALS", cfg.GCSCredentials)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.ArtifactRoot, err = homedir.Expand(cfg.ArtifactRoot); err != nil {
		return nil, fmt.Errorf("failed to expand artifact root: %w", err)
	}
	if cfg.CacheDir, err = homedir.Expand(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("failed to expand cache dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend and registry are fully configured
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.ArtifactRoot == "" {
			return fmt.Errorf("artifact root is required for the %s backend", BackendLocal)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the %s backend", BackendS3)
		}
		if (c.AWSAccessKey == "") != (c.AWSSecretKey == "") {
			return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
		}
	case BackendGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the %s backend", BackendGCS)
		}
	default:
		return fmt.Errorf("unknown artifact backend %q", c.Backend)
	}

	switch c.Registry {
	case RegistryFile:
		if c.ArtifactRoot == "" {
			return fmt.Errorf("artifact root is required for the %s registry", RegistryFile)
		}
	case RegistryPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s registry", RegistryPostgres)
		}
	default:
		return fmt.Errorf("unknown artifact registry %q", c.Registry)
	}

	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("db max open conns must be at least 1, got %d", c.DBMaxOpenConns)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand config path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
