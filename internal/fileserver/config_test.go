package fileserver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmmease/jons-mcp-file-server/internal/errs"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Backend(""), cfg.Backend)
	assert.Equal(t, "127.0.0.1", cfg.Localhost.Host)
	assert.Equal(t, DefaultListenPort, cfg.Localhost.Port)
	assert.Equal(t, time.Hour, cfg.Localhost.DownloadTTL)
	assert.Equal(t, 5*time.Minute, cfg.Localhost.UploadTTL)
	assert.Equal(t, "s3.amazonaws.com", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.UseSSL)
	assert.Equal(t, 5*time.Minute, cfg.S3.DownloadTTL)
	assert.Equal(t, time.Minute, cfg.S3.UploadTTL)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvBackend, "s3")
	t.Setenv(EnvBucket, "transfer-bucket")
	t.Setenv(EnvS3Endpoint, "minio.internal:9000")
	t.Setenv(EnvPort, "8123")
	t.Setenv(EnvDownloadTTL, "120")
	t.Setenv(EnvUploadTTL, "30")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendS3, cfg.Backend)
	assert.Equal(t, "transfer-bucket", cfg.S3.Bucket)
	assert.Equal(t, "minio.internal:9000", cfg.S3.Endpoint)
	assert.Equal(t, 8123, cfg.Localhost.Port)
	assert.Equal(t, 2*time.Minute, cfg.Localhost.DownloadTTL)
	assert.Equal(t, 2*time.Minute, cfg.S3.DownloadTTL)
	assert.Equal(t, 30*time.Second, cfg.Localhost.UploadTTL)
	assert.Equal(t, 30*time.Second, cfg.S3.UploadTTL)
}

func TestConfigFromEnvLegacyBucketVar(t *testing.T) {
	t.Setenv(EnvBucketLegacy, "old-gcs-bucket")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "old-gcs-bucket", cfg.S3.Bucket)

	// The new name wins when both are set.
	t.Setenv(EnvBucket, "new-bucket")
	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "new-bucket", cfg.S3.Bucket)
}

func TestConfigFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad port", key: EnvPort, val: "not-a-port"},
		{name: "port out of range", key: EnvPort, val: "70000"},
		{name: "bad download ttl", key: EnvDownloadTTL, val: "1h"},
		{name: "negative upload ttl", key: EnvUploadTTL, val: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := ConfigFromEnv()
			assert.True(t, errs.IsConfiguration(err))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fileserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: s3
localhost:
  host: 0.0.0.0
  port: 0
  download_ttl_seconds: 10
s3:
  endpoint: localhost:9000
  bucket: demo
  access_key: minioadmin
  secret_key: minioadmin
  use_ssl: false
  force_path_style: true
  upload_ttl_seconds: 45
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendS3, cfg.Backend)
	assert.Equal(t, "0.0.0.0", cfg.Localhost.Host)
	assert.Equal(t, 0, cfg.Localhost.Port)
	assert.Equal(t, 10*time.Second, cfg.Localhost.DownloadTTL)
	assert.Equal(t, 5*time.Minute, cfg.Localhost.UploadTTL) // default kept
	assert.Equal(t, "localhost:9000", cfg.S3.Endpoint)
	assert.Equal(t, "demo", cfg.S3.Bucket)
	assert.False(t, cfg.S3.UseSSL)
	assert.True(t, cfg.S3.ForcePathStyle)
	assert.Equal(t, 45*time.Second, cfg.S3.UploadTTL)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.IsConfiguration(err))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0o600))
	_, err = LoadConfig(path)
	assert.True(t, errs.IsConfiguration(err))
}

func TestConfigFromEnvReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fileserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("s3:\n  bucket: from-file\n"), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.S3.Bucket)

	// Environment overrides the file.
	t.Setenv(EnvBucket, "from-env")
	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.S3.Bucket)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		want    Backend
		wantErr func(error) bool
	}{
		{
			name:   "explicit localhost",
			mutate: func(c *Config) { c.Backend = BackendLocalhost },
			want:   BackendLocalhost,
		},
		{
			name: "explicit s3 with bucket",
			mutate: func(c *Config) {
				c.Backend = BackendS3
				c.S3.Bucket = "b"
			},
			want: BackendS3,
		},
		{
			name:   "auto-detect defaults to localhost",
			mutate: func(c *Config) {},
			want:   BackendLocalhost,
		},
		{
			name:   "auto-detect picks s3 when bucket set",
			mutate: func(c *Config) { c.S3.Bucket = "b" },
			want:   BackendS3,
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Backend = BackendS3 },
			wantErr: errs.IsConfiguration,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend = "ftp" },
			wantErr: errs.IsConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			got, err := cfg.Resolve()
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "my file (1).txt", want: "my_file__1_.txt"},
		{in: "../../etc/passwd", want: ".._.._etc_passwd"},
		{in: "", want: "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeFilename(tt.in))
	}
}

func TestCheckLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	assert.NoError(t, CheckLocalFile(path))
	assert.True(t, errs.IsNotFound(CheckLocalFile(filepath.Join(dir, "missing"))))
	assert.True(t, errs.IsNotFound(CheckLocalFile(dir)), "directories are rejected")
}
