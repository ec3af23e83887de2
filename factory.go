package fileserver

import (
	"context"
	"sync"

	ifs "github.com/jonmmease/jons-mcp-file-server/internal/fileserver"
	"github.com/jonmmease/jons-mcp-file-server/internal/fileserver/localhost"
	"github.com/jonmmease/jons-mcp-file-server/internal/fileserver/minio"
	"github.com/jonmmease/jons-mcp-file-server/internal/logger"
)

var (
	mu       sync.Mutex
	instance FileServer
)

// Get returns the process-wide file server singleton, constructing it on
// the first call. A nil cfg resolves configuration from the environment.
//
// Later calls return the existing instance and IGNORE any new configuration.
// That is a deliberate simplicity trade-off, not a bug: callers that need
// different configuration must call Cleanup (or Reset) first.
//
// Backend selection when cfg.Backend is empty: s3 if a bucket is configured
// (config or the S3_BUCKET / GCS_BUCKET environment variables), localhost
// otherwise.
func Get(ctx context.Context, cfg *Config) (FileServer, error) {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance, nil
	}

	if cfg == nil {
		resolved, err := ifs.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		cfg = resolved
	}
	backend, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	log := logger.New(nil)
	var srv FileServer
	switch backend {
	case BackendS3:
		srv, err = minio.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	default:
		srv = localhost.New(cfg, log)
	}

	instance = srv
	return instance, nil
}

// Cleanup stops the active backend (listener shut down, client released,
// all outstanding tokens invalidated) and clears the singleton so the next
// Get call reconstructs with fresh configuration.
func Cleanup() error {
	mu.Lock()
	defer mu.Unlock()

	if instance == nil {
		return nil
	}
	err := instance.Close()
	instance = nil
	return err
}

// Reset clears the singleton without stopping the current backend. Intended
// for tests that manage the backend's lifetime themselves; production code
// should call Cleanup.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
}
