package fileserver

import (
	"os"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/jonmmease/jons-mcp-file-server/internal/errs"
)

// Backend identifies the transfer backend.
type Backend string

const (
	// BackendLocalhost serves transfers from an HTTP listener in this process.
	BackendLocalhost Backend = "localhost"

	// BackendS3 issues signed URLs against an S3-compatible object store
	// (MinIO, AWS S3, or GCS via its S3 interoperability endpoint).
	BackendS3 Backend = "s3"
)

// Environment variables consulted by ConfigFromEnv. Explicit config always
// wins over the environment; the environment wins over defaults.
const (
	EnvBackend         = "MCP_FILE_SERVER_BACKEND"
	EnvConfigFile      = "MCP_FILE_SERVER_CONFIG"
	EnvPort            = "MCP_FILE_SERVER_PORT"
	EnvDownloadTTL     = "MCP_FILE_SERVER_DOWNLOAD_TTL"
	EnvUploadTTL       = "MCP_FILE_SERVER_UPLOAD_TTL"
	EnvS3Endpoint      = "MCP_FILE_SERVER_S3_ENDPOINT"
	EnvCredentialsFile = "MCP_FILE_SERVER_CREDENTIALS_FILE"
	EnvBucket          = "S3_BUCKET"
	EnvBucketLegacy    = "GCS_BUCKET" // kept from the original deployment
)

// DefaultListenPort is used when neither config nor environment picks a port.
// Port 0 asks the OS for a free one.
const DefaultListenPort = 9171

// Config selects and configures a backend.
type Config struct {
	// Backend picks the provider. Empty means auto-detect: s3 when a bucket
	// is configured, localhost otherwise.
	Backend Backend

	Localhost LocalhostConfig
	S3        S3Config
}

// LocalhostConfig configures the HTTP listener backend.
type LocalhostConfig struct {
	// Host is the interface to bind. Default 127.0.0.1. Loopback and
	// unspecified hosts are advertised in URLs as "localhost".
	Host string

	// Port to listen on. 0 lets the OS assign one.
	Port int

	// DownloadTTL bounds how long download URLs stay valid.
	DownloadTTL time.Duration

	// UploadTTL bounds how long upload slots stay open.
	UploadTTL time.Duration

	// SweepInterval is how often expired registrations are purged.
	SweepInterval time.Duration
}

// S3Config configures the object-store backend.
type S3Config struct {
	// Endpoint is the host:port of the store. Default "s3.amazonaws.com".
	Endpoint string

	// Region for region-aware stores. Leave empty for MinIO.
	Region string

	// Bucket holds every transfer object. Required for this backend.
	Bucket string

	// AccessKey / SecretKey are static credentials. When empty and no
	// CredentialsFile is set, the AWS environment variables are used.
	AccessKey string
	SecretKey string

	// CredentialsFile points at an AWS shared-credentials file.
	// Takes precedence over static keys.
	CredentialsFile string

	// UseSSL controls TLS on the store connection. Default true.
	UseSSL bool

	// ForcePathStyle addresses buckets by path instead of subdomain.
	// Needed for MinIO and other non-AWS endpoints.
	ForcePathStyle bool

	// DownloadTTL bounds signed GET URLs.
	DownloadTTL time.Duration

	// UploadTTL bounds signed PUT URLs.
	UploadTTL time.Duration
}

// DefaultConfig returns the stock configuration: auto-detected backend,
// loopback listener on the default port, and the TTLs the service has
// always shipped with (localhost 1h/5m, s3 5m/1m).
func DefaultConfig() *Config {
	return &Config{
		Localhost: LocalhostConfig{
			Host:          "127.0.0.1",
			Port:          DefaultListenPort,
			DownloadTTL:   time.Hour,
			UploadTTL:     5 * time.Minute,
			SweepInterval: 10 * time.Minute,
		},
		S3: S3Config{
			Endpoint:    "s3.amazonaws.com",
			UseSSL:      true,
			DownloadTTL: 5 * time.Minute,
			UploadTTL:   time.Minute,
		},
	}
}

// ConfigFromEnv resolves configuration from the process environment on top
// of DefaultConfig. When MCP_FILE_SERVER_CONFIG names a YAML file, the file
// is loaded first and the remaining environment variables override it.
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv(EnvConfigFile); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Backend = Backend(v)
	}
	if v := os.Getenv(EnvBucket); v != "" {
		cfg.S3.Bucket = v
	} else if v := os.Getenv(EnvBucketLegacy); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv(EnvS3Endpoint); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv(EnvCredentialsFile); v != "" {
		cfg.S3.CredentialsFile = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return nil, errs.Newf(errs.ErrKindConfiguration, "invalid %s: %q", EnvPort, v)
		}
		cfg.Localhost.Port = port
	}
	if v := os.Getenv(EnvDownloadTTL); v != "" {
		ttl, err := envSeconds(v)
		if err != nil {
			return nil, errs.Newf(errs.ErrKindConfiguration, "invalid %s: %q", EnvDownloadTTL, v)
		}
		cfg.Localhost.DownloadTTL = ttl
		cfg.S3.DownloadTTL = ttl
	}
	if v := os.Getenv(EnvUploadTTL); v != "" {
		ttl, err := envSeconds(v)
		if err != nil {
			return nil, errs.Newf(errs.ErrKindConfiguration, "invalid %s: %q", EnvUploadTTL, v)
		}
		cfg.Localhost.UploadTTL = ttl
		cfg.S3.UploadTTL = ttl
	}

	return cfg, nil
}

func envSeconds(v string) (time.Duration, error) {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0, errs.Newf(errs.ErrKindConfiguration, "not a positive integer: %q", v)
	}
	return time.Duration(secs) * time.Second, nil
}

// fileConfig is the YAML schema. TTLs are integer seconds so config files
// stay readable without duration-string parsing.
type fileConfig struct {
	Backend   string `yaml:"backend"`
	Localhost struct {
		Host            string `yaml:"host"`
		Port            *int   `yaml:"port"`
		DownloadTTLSecs int    `yaml:"download_ttl_seconds"`
		UploadTTLSecs   int    `yaml:"upload_ttl_seconds"`
		SweepSecs       int    `yaml:"sweep_interval_seconds"`
	} `yaml:"localhost"`
	S3 struct {
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		AccessKey       string `yaml:"access_key"`
		SecretKey       string `yaml:"secret_key"`
		CredentialsFile string `yaml:"credentials_file"`
		UseSSL          *bool  `yaml:"use_ssl"`
		ForcePathStyle  bool   `yaml:"force_path_style"`
		DownloadTTLSecs int    `yaml:"download_ttl_seconds"`
		UploadTTLSecs   int    `yaml:"upload_ttl_seconds"`
	} `yaml:"s3"`
}

// LoadConfig reads a YAML config file and applies it on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to read config file", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to parse config file", err)
	}

	cfg := DefaultConfig()
	cfg.Backend = Backend(fc.Backend)

	if fc.Localhost.Host != "" {
		cfg.Localhost.Host = fc.Localhost.Host
	}
	if fc.Localhost.Port != nil {
		cfg.Localhost.Port = *fc.Localhost.Port
	}
	if fc.Localhost.DownloadTTLSecs > 0 {
		cfg.Localhost.DownloadTTL = time.Duration(fc.Localhost.DownloadTTLSecs) * time.Second
	}
	if fc.Localhost.UploadTTLSecs > 0 {
		cfg.Localhost.UploadTTL = time.Duration(fc.Localhost.UploadTTLSecs) * time.Second
	}
	if fc.Localhost.SweepSecs > 0 {
		cfg.Localhost.SweepInterval = time.Duration(fc.Localhost.SweepSecs) * time.Second
	}

	if fc.S3.Endpoint != "" {
		cfg.S3.Endpoint = fc.S3.Endpoint
	}
	cfg.S3.Region = fc.S3.Region
	cfg.S3.Bucket = fc.S3.Bucket
	cfg.S3.AccessKey = fc.S3.AccessKey
	cfg.S3.SecretKey = fc.S3.SecretKey
	cfg.S3.CredentialsFile = fc.S3.CredentialsFile
	if fc.S3.UseSSL != nil {
		cfg.S3.UseSSL = *fc.S3.UseSSL
	}
	cfg.S3.ForcePathStyle = fc.S3.ForcePathStyle
	if fc.S3.DownloadTTLSecs > 0 {
		cfg.S3.DownloadTTL = time.Duration(fc.S3.DownloadTTLSecs) * time.Second
	}
	if fc.S3.UploadTTLSecs > 0 {
		cfg.S3.UploadTTL = time.Duration(fc.S3.UploadTTLSecs) * time.Second
	}

	return cfg, nil
}

// Resolve fills in the backend when unset (bucket configured → s3, else
// localhost) and validates that the selected backend has what it needs.
func (c *Config) Resolve() (Backend, error) {
	backend := c.Backend
	if backend == "" {
		if c.S3.Bucket != "" {
			backend = BackendS3
		} else {
			backend = BackendLocalhost
		}
	}
	switch backend {
	case BackendLocalhost:
		return backend, nil
	case BackendS3:
		if c.S3.Bucket == "" {
			return "", errs.Newf(errs.ErrKindConfiguration,
				"s3 backend requires a bucket (set %s or config)", EnvBucket)
		}
		return backend, nil
	default:
		return "", errs.Newf(errs.ErrKindConfiguration, "unknown backend %q", backend)
	}
}
