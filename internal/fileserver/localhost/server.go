// Package localhost implements fileserver.FileServer with an HTTP listener
// in this process.
//
// The listener serves two token-bearing routes:
//
//	GET /downloads/{token}/{filename}   stream a registered file
//	PUT /uploads/{token}                receive a raw upload body
//
// It binds the configured interface and is intended to stay reachable only
// on the local network: there is no TLS and no authentication beyond
// possession of an unguessable token.
package localhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonmmease/jons-mcp-file-server/internal/errs"
	"github.com/jonmmease/jons-mcp-file-server/internal/fileserver"
	"github.com/jonmmease/jons-mcp-file-server/internal/logger"
	"github.com/jonmmease/jons-mcp-file-server/internal/registry"
)

// Listener lifecycle. Stopped is terminal; the factory constructs a fresh
// Server after Cleanup.
type state int

const (
	stateUnstarted state = iota
	stateListening
	stateStopped
)

// Server is the localhost implementation of fileserver.FileServer.
// It is safe for concurrent use by multiple goroutines.
type Server struct {
	cfg fileserver.LocalhostConfig
	log *logger.Logger
	reg *registry.Store

	mu        sync.Mutex
	st        state
	httpSrv   *http.Server
	baseURL   string
	stopSweep chan struct{}
}

// New returns an unstarted Server. The listener binds lazily on the first
// register call, mirroring how the process is typically embedded in an MCP
// server that may never transfer a file.
func New(cfg *fileserver.Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		cfg: cfg.Localhost,
		log: log.With().Str("backend", "localhost").Logger(),
		reg: registry.New(),
	}
}

// Running reports whether the listener is bound and serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st == stateListening
}

// BaseURL returns the advertised URL prefix, or "" before the first start.
func (s *Server) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// RegisterDownload registers the file at localPath and returns its download
// URL. The path must name a readable regular file at call time.
func (s *Server) RegisterDownload(ctx context.Context, localPath, filename string) (*fileserver.Download, error) {
	if err := fileserver.CheckLocalFile(localPath); err != nil {
		return nil, err
	}
	if err := s.ensureRunning(); err != nil {
		return nil, err
	}
	s.reg.Sweep()

	abs, err := filepath.Abs(localPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid file path", err)
	}
	tok := s.reg.Put(registry.Record{
		Kind:     registry.KindDownload,
		Path:     abs,
		Filename: filename,
	}, s.cfg.DownloadTTL)

	dlURL := fmt.Sprintf("%s/downloads/%s/%s", s.BaseURL(), tok, url.PathEscape(filename))
	s.log.Debugf("registered download %s for %s", tok, abs)

	return &fileserver.Download{
		URL:      dlURL,
		Filename: filename,
		Curl:     fmt.Sprintf("curl -o '%s' '%s'", fileserver.SafeFilename(filename), dlURL),
		Token:    tok,
	}, nil
}

// RegisterUpload opens an upload slot and returns the URL a client PUTs to.
func (s *Server) RegisterUpload(ctx context.Context, opts fileserver.UploadOptions) (*fileserver.Upload, error) {
	if err := s.ensureRunning(); err != nil {
		return nil, err
	}
	s.reg.Sweep()

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = fileserver.DefaultMaxUploadBytes
	}
	tok := s.reg.Put(registry.Record{
		Kind:     registry.KindUpload,
		Filename: opts.Filename,
		MaxBytes: maxBytes,
	}, s.cfg.UploadTTL)

	upURL := fmt.Sprintf("%s/uploads/%s", s.BaseURL(), tok)
	s.log.Debugf("registered upload %s (max %d bytes)", tok, maxBytes)

	return &fileserver.Upload{
		UploadURL: upURL,
		Curl:      fmt.Sprintf("curl -X PUT --data-binary @'%s' '%s'", fileserver.SafeFilename(opts.Filename), upURL),
		Token:     tok,
		Method:    http.MethodPut,
		ExpiresIn: s.cfg.UploadTTL,
	}, nil
}

// ResolveUpload re-derives the upload URL for tok without touching state.
func (s *Server) ResolveUpload(ctx context.Context, tok string) (string, error) {
	rec, ok := s.reg.Get(tok)
	if !ok || rec.Kind != registry.KindUpload {
		return "", errs.New(errs.ErrKindNotFound, "unknown or expired upload token")
	}
	return fmt.Sprintf("%s/uploads/%s", s.BaseURL(), tok), nil
}

// ConsumeUpload returns the uploaded payload exactly once.
func (s *Server) ConsumeUpload(ctx context.Context, tok string) ([]byte, error) {
	rec, err := s.reg.Consume(tok)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("consumed upload %s (%d bytes)", tok, len(rec.Body))
	return rec.Body, nil
}

// Close shuts the listener down and invalidates every outstanding token.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st != stateListening {
		s.st = stateStopped
		return nil
	}
	close(s.stopSweep)
	err := s.httpSrv.Close()
	s.httpSrv = nil
	s.reg.Clear()
	s.st = stateStopped
	s.log.Info("listener stopped")
	return err
}

// ensureRunning binds the listener on first use.
func (s *Server) ensureRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.st {
	case stateListening:
		return nil
	case stateStopped:
		return errs.New(errs.ErrKindUnavailable, "file server already stopped")
	}

	host := s.cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return errs.Wrap(errs.ErrKindUnavailable, "listener failed to bind", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://%s:%d", advertiseHost(host), port)

	s.httpSrv = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.ErrorWith("listener exited", err)
		}
	}(s.httpSrv)

	s.stopSweep = make(chan struct{})
	go s.sweepLoop(s.stopSweep)

	s.st = stateListening
	s.log.Infof("listening on %s", s.baseURL)
	return nil
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(allowAnyOrigin)
	r.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/downloads/{token}/{filename}", s.handleDownload)
	r.Put("/uploads/{token}", s.handleUpload)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func (s *Server) sweepLoop(stop <-chan struct{}) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.reg.Sweep(); n > 0 {
				s.log.Debugf("swept %d expired registrations", n)
			}
		case <-stop:
			return
		}
	}
}

// --- HTTP handlers ---

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	requested := chi.URLParam(r, "filename")
	if name, err := url.PathUnescape(requested); err == nil {
		requested = name
	}

	rec, ok := s.reg.Get(tok)
	if !ok || rec.Kind != registry.KindDownload || rec.Filename != requested {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	f, err := os.Open(rec.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	ctype := mime.TypeByExtension(filepath.Ext(rec.Path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(rec.Filename)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		s.log.WarnWith("download aborted mid-stream", err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	rec, ok := s.reg.Get(tok)
	if !ok || rec.Kind != registry.KindUpload {
		writeError(w, http.StatusNotFound, "unknown or expired upload token")
		return
	}
	if rec.State != registry.StatePending {
		writeError(w, http.StatusConflict, "upload already received")
		return
	}
	if r.ContentLength > rec.MaxBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("payload too large, limit is %d bytes", rec.MaxBytes))
		return
	}

	// The whole body is buffered before the state transition is committed,
	// so a racing consume never sees a partial payload.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rec.MaxBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("payload too large, limit is %d bytes", rec.MaxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := s.reg.Fulfill(tok, body); err != nil {
		if errs.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "unknown or expired upload token")
		} else {
			writeError(w, http.StatusConflict, "upload already received")
		}
		return
	}

	s.log.Debugf("upload %s fulfilled (%d bytes)", tok, len(body))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"bytes": len(body),
	})
}

// --- helpers ---

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// advertiseHost maps bind addresses to the host name embedded in URLs.
// Loopback and unspecified binds advertise "localhost".
func advertiseHost(bind string) string {
	switch bind {
	case "", "0.0.0.0", "::", "127.0.0.1", "::1":
		return "localhost"
	}
	if ip := net.ParseIP(bind); ip != nil && (ip.IsLoopback() || ip.IsUnspecified()) {
		return "localhost"
	}
	return bind
}

var _ fileserver.FileServer = (*Server)(nil)
