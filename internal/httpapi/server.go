// Package httpapi exposes the audit over HTTP. Report bodies are always
// text/plain; status endpoints answer JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
	"github.com/a3tai/reportshield/internal/pipeline"
)

const (
	ServiceName = "Compliance Audit API"

	headerRulesVersion     = "X-Rules-Version"
	headerSchematicVersion = "X-Schematic-Version"
	headerOutputMode       = "X-Output-Mode"

	contentTypeText = "text/plain; charset=utf-8"

	// multipartOverhead is the slack allowed above the file size limit for
	// form boundaries and headers.
	multipartOverhead = 1 << 20
)

// allowedUploadTypes are the part content types accepted on /audit.
var allowedUploadTypes = map[string]bool{
	"application/pdf":          true,
	"application/x-pdf":        true,
	"binary/octet-stream":      true,
	"application/octet-stream": true,
}

// Auditor is the part of the pipeline the HTTP layer drives.
type Auditor interface {
	Run(ctx context.Context, in audit.Input, style audit.Style) *pipeline.Result
	Ready() error
	Versions() (rules, schematic string)
}

// Server routes HTTP requests to the audit pipeline.
type Server struct {
	cfg     *config.Config
	auditor Auditor
	limiter *ipLimiter
	client  *http.Client
	router  chi.Router
}

// NewServer builds the router for cfg.
func NewServer(cfg *config.Config, auditor Auditor) *Server {
	s := &Server{
		cfg:     cfg,
		auditor: auditor,
		limiter: newIPLimiter(cfg.Server.RateLimitRPM),
		client:  &http.Client{Timeout: time.Duration(cfg.Server.FetchTimeoutSecs) * time.Second},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if origins := nonEmpty(cfg.Server.CORSOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{headerRulesVersion, headerSchematicVersion, headerOutputMode},
		}))
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/version", s.handleVersion)
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/audit", s.handleAudit)
		r.Post("/audit_url", s.handleAuditURL)
	})

	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "http server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		zap.L().Info("http server shutting down")
		return eris.Wrap(srv.Shutdown(shutdownCtx), "http shutdown")
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	_, schematic := s.auditor.Versions()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": ServiceName, "schematic": schematic})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	rules, schematic := s.auditor.Versions()
	body := map[string]any{"status": "ready", "rules": rules, "schematic": schematic}
	status := http.StatusOK
	if err := s.auditor.Ready(); err != nil {
		zap.L().Warn("not ready", zap.Error(err))
		body["status"] = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	rules, schematic := s.auditor.Versions()
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules, "schematic": schematic})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Audit.MaxFileSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			shortFail(w, http.StatusBadRequest, "file too large")
			return
		}
		shortFail(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}
	defer file.Close() //nolint:errcheck

	mediaType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if !allowedUploadTypes[strings.ToLower(mediaType)] {
		shortFail(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.Audit.MaxFileSize+1))
	if err != nil {
		shortFail(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}

	s.runAudit(w, r, audit.Input{Data: data, FileName: header.Filename})
}

type auditURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleAuditURL(w http.ResponseWriter, r *http.Request) {
	var req auditURLRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		shortFail(w, http.StatusBadRequest, "missing 'url' in JSON body")
		return
	}

	fetchReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		shortFail(w, http.StatusBadRequest, "could not fetch the URL")
		return
	}
	resp, err := s.client.Do(fetchReq)
	if err != nil {
		zap.L().Warn("audit_url fetch failed", zap.Error(err))
		shortFail(w, http.StatusBadRequest, "could not fetch the URL")
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		shortFail(w, http.StatusBadRequest, "non-200 response from URL")
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.Audit.MaxFileSize+1))
	if err != nil {
		shortFail(w, http.StatusBadRequest, "could not fetch the URL")
		return
	}
	if !strings.HasPrefix(string(data[:min(len(data), 4)]), "%PDF") {
		shortFail(w, http.StatusBadRequest, "URL did not return a PDF")
		return
	}

	s.runAudit(w, r, audit.Input{Data: data, FileName: fileNameFromURL(fetchReq)})
}

func (s *Server) runAudit(w http.ResponseWriter, r *http.Request, in audit.Input) {
	style, err := audit.ParseStyle(r.URL.Query().Get("style"))
	if err != nil {
		shortFail(w, http.StatusBadRequest, "unknown style")
		return
	}

	res := s.auditor.Run(r.Context(), in, style)

	rules, schematic := s.auditor.Versions()
	w.Header().Set(headerRulesVersion, rules)
	w.Header().Set(headerSchematicVersion, schematic)
	w.Header().Set(headerOutputMode, s.outputMode())
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(statusFor(res))
	_, _ = io.WriteString(w, res.Report)
}

func (s *Server) outputMode() string {
	if s.cfg.Audit.PublicMode {
		return "public"
	}
	return "private"
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			shortFail(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps a run to its HTTP status: input failures are the caller's
// fault, everything else is ours.
func statusFor(res *pipeline.Result) int {
	if res.Failure == nil {
		return http.StatusOK
	}
	if res.Failure.Class.Category() == "input" {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func shortFail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, "Audit failed: "+msg)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write json response", zap.Error(err))
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func fileNameFromURL(r *http.Request) string {
	p := r.URL.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
