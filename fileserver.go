package fileserver

import (
	ifs "github.com/jonmmease/jons-mcp-file-server/internal/fileserver"
)

// Re-exports so callers outside the module depend on this package only.

type (
	// FileServer is the interface both transfer backends implement.
	FileServer = ifs.FileServer

	// Config selects and configures a backend.
	Config = ifs.Config
	// LocalhostConfig configures the HTTP listener backend.
	LocalhostConfig = ifs.LocalhostConfig
	// S3Config configures the object-store backend.
	S3Config = ifs.S3Config
	// Backend identifies the transfer backend.
	Backend = ifs.Backend

	// Download is the result of RegisterDownload.
	Download = ifs.Download
	// Upload is the result of RegisterUpload.
	Upload = ifs.Upload
	// UploadOptions configures RegisterUpload.
	UploadOptions = ifs.UploadOptions
)

const (
	BackendLocalhost = ifs.BackendLocalhost
	BackendS3        = ifs.BackendS3

	// DefaultMaxUploadBytes caps uploads that do not set their own limit.
	DefaultMaxUploadBytes = ifs.DefaultMaxUploadBytes
)

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config { return ifs.DefaultConfig() }

// ConfigFromEnv resolves configuration from the process environment,
// optionally starting from the YAML file named by MCP_FILE_SERVER_CONFIG.
func ConfigFromEnv() (*Config, error) { return ifs.ConfigFromEnv() }

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) { return ifs.LoadConfig(path) }
