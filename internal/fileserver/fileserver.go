// Package fileserver defines the unified interface for file-transfer backends.
//
// Both providers (localhost HTTP listener, S3-compatible object store)
// implement the FileServer interface. Callers depend only on this package —
// never on a specific backend package.
//
// Usage:
//
//	cfg := fileserver.DefaultConfig()
//	srv, err := localhost.New(cfg, nil)
//	if err != nil { ... }
//	defer srv.Close()
//
//	dl, err := srv.RegisterDownload(ctx, "/tmp/report.pdf", "report.pdf")
package fileserver

import (
	"context"
	"os"
	"regexp"
	"time"

	"github.com/jonmmease/jons-mcp-file-server/internal/errs"
)

// FileServer is the single interface both transfer backends implement.
// Implementations are safe for concurrent use by multiple goroutines.
type FileServer interface {
	// RegisterDownload makes the file at localPath available for download
	// under the given display filename. Fails with a not-found error when
	// localPath does not exist or is not a readable regular file.
	RegisterDownload(ctx context.Context, localPath, filename string) (*Download, error)

	// RegisterUpload creates an upload slot and returns the URL a remote
	// client PUTs the payload to. Exceeding opts.MaxBytes fails the upload
	// attempt itself, never this call.
	RegisterUpload(ctx context.Context, opts UploadOptions) (*Upload, error)

	// ResolveUpload returns the upload URL for token. Idempotent; it never
	// changes registration state. Unknown and expired tokens report not found.
	ResolveUpload(ctx context.Context, tok string) (string, error)

	// ConsumeUpload returns the uploaded payload exactly once and deletes
	// the registration. Unknown, expired, not-yet-uploaded, and already
	// consumed tokens all report not found.
	ConsumeUpload(ctx context.Context, tok string) ([]byte, error)

	// Running reports whether the backend is ready to handle transfers.
	Running() bool

	// Close stops any listener, releases client handles, and invalidates
	// every outstanding token.
	Close() error
}

// Download is the result of RegisterDownload.
type Download struct {
	// URL is what the remote client fetches with a plain HTTP GET.
	URL string

	// Filename is the display name the client receives the file under.
	Filename string

	// Curl is a ready-to-run download command for pasting into a shell.
	Curl string

	// Token identifies the registration, mainly for log correlation.
	Token string
}

// UploadOptions configures RegisterUpload.
type UploadOptions struct {
	// Filename is an optional suggested name for the uploaded file.
	Filename string

	// MaxBytes bounds the accepted payload size. 0 means DefaultMaxUploadBytes.
	MaxBytes int64
}

// Upload is the result of RegisterUpload.
type Upload struct {
	// UploadURL is where the remote client PUTs the raw payload.
	UploadURL string

	// Curl is a ready-to-run upload command.
	Curl string

	// Token is handed back to ResolveUpload / ConsumeUpload.
	Token string

	// Method is the HTTP method the client must use. Always "PUT".
	Method string

	// ExpiresIn is how long the upload URL stays valid.
	ExpiresIn time.Duration
}

// DefaultMaxUploadBytes caps uploads that do not specify their own limit (50 MiB).
const DefaultMaxUploadBytes = 50 * 1024 * 1024

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SafeFilename replaces every character outside [a-zA-Z0-9._-] with an
// underscore. Applied to object keys and curl examples, never to the
// display filename itself.
func SafeFilename(name string) string {
	if name == "" {
		return "file"
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// CheckLocalFile verifies localPath names a readable regular file.
// Registration fails fast on a bad path instead of surfacing the problem to
// the remote client at transfer time.
func CheckLocalFile(localPath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return errs.Wrap(errs.ErrKindNotFound, "file does not exist", err)
	}
	if !info.Mode().IsRegular() {
		return errs.Newf(errs.ErrKindNotFound, "not a regular file: %s", localPath)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return errs.Wrap(errs.ErrKindNotFound, "file is not readable", err)
	}
	return f.Close()
}
