package fileserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localTestConfig returns a localhost config on an OS-assigned port.
func localTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendLocalhost
	cfg.Localhost.Port = 0
	return cfg
}

// s3TestConfig starts an in-memory S3 server and returns a config for it.
func s3TestConfig(t *testing.T) *Config {
	t.Helper()
	backend := s3mem.New()
	server := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(server.Close)
	require.NoError(t, backend.CreateBucket("factory-test"))

	cfg := DefaultConfig()
	cfg.Backend = BackendS3
	cfg.S3.Endpoint = strings.TrimPrefix(server.URL, "http://")
	cfg.S3.Region = "us-east-1"
	cfg.S3.Bucket = "factory-test"
	cfg.S3.AccessKey = "test"
	cfg.S3.SecretKey = "test"
	cfg.S3.UseSSL = false
	cfg.S3.ForcePathStyle = true
	return cfg
}

func TestGetReturnsSingleton(t *testing.T) {
	t.Cleanup(func() { _ = Cleanup() })

	first, err := Get(context.Background(), localTestConfig())
	require.NoError(t, err)

	// A second call with different configuration returns the same instance
	// and silently ignores the new settings.
	other := localTestConfig()
	other.Localhost.DownloadTTL = time.Second
	second, err := Get(context.Background(), other)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestGetNilConfigResolvesFromEnv(t *testing.T) {
	t.Cleanup(func() { _ = Cleanup() })
	t.Setenv("MCP_FILE_SERVER_PORT", "0")

	srv, err := Get(context.Background(), nil)
	require.NoError(t, err)

	// Environment had no bucket, so auto-detection picked localhost.
	up, err := srv.RegisterUpload(context.Background(), UploadOptions{})
	require.NoError(t, err)
	assert.Contains(t, up.UploadURL, "http://localhost:")
}

func TestGetConfigurationErrors(t *testing.T) {
	t.Cleanup(func() { _ = Cleanup() })

	cfg := DefaultConfig()
	cfg.Backend = "ftp"
	_, err := Get(context.Background(), cfg)
	assert.True(t, IsConfiguration(err))

	cfg = DefaultConfig()
	cfg.Backend = BackendS3 // no bucket anywhere
	_, err = Get(context.Background(), cfg)
	assert.True(t, IsConfiguration(err))
}

func TestCleanupAllowsReconfiguration(t *testing.T) {
	t.Cleanup(func() { _ = Cleanup() })

	first, err := Get(context.Background(), localTestConfig())
	require.NoError(t, err)
	require.NoError(t, Cleanup())

	second, err := Get(context.Background(), localTestConfig())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestResetLeavesInstanceRunning(t *testing.T) {
	t.Cleanup(func() { _ = Cleanup() })

	first, err := Get(context.Background(), localTestConfig())
	require.NoError(t, err)
	defer first.Close()

	_, err = first.RegisterUpload(context.Background(), UploadOptions{})
	require.NoError(t, err)

	Reset()
	assert.True(t, first.Running(), "Reset must not stop the old instance")

	second, err := Get(context.Background(), localTestConfig())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

// Switching backends: Cleanup stops the localhost listener, and tokens from
// the old backend do not resolve against the new one.
func TestSwitchLocalhostToS3(t *testing.T) {
	t.Cleanup(func() { _ = Cleanup() })

	local, err := Get(context.Background(), localTestConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	dl, err := local.RegisterDownload(context.Background(), path, "x.txt")
	require.NoError(t, err)
	up, err := local.RegisterUpload(context.Background(), UploadOptions{})
	require.NoError(t, err)

	require.NoError(t, Cleanup())
	assert.False(t, local.Running(), "old listener must be stopped")

	cloud, err := Get(context.Background(), s3TestConfig(t))
	require.NoError(t, err)
	assert.NotSame(t, local, cloud)

	// Stale tokens from the previous backend are dead.
	_, err = cloud.ResolveUpload(context.Background(), up.Token)
	assert.True(t, IsNotFound(err))
	_, err = cloud.ConsumeUpload(context.Background(), up.Token)
	assert.True(t, IsNotFound(err))
	_, err = http.Get(dl.URL)
	assert.Error(t, err, "old download URLs must no longer be served")
}
