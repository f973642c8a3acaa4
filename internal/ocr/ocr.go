// Package ocr runs layout analysis over PDF bytes: full text, per-page text,
// key/value rows and table cells.
package ocr

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
)

// ErrNotConfigured is returned when the selected provider lacks credentials.
var ErrNotConfigured = eris.New("ocr: provider not configured")

// Analyzer performs layout analysis on a PDF.
type Analyzer interface {
	Analyze(ctx context.Context, pdf []byte) (*Result, error)
	Name() string
}

// Result is the provider-neutral layout analysis output.
type Result struct {
	Provider string
	Text     string
	Pages    []string
	KV       []audit.KVPair
	Tables   []audit.Table
}

// Source converts the result into the extractor's normalized input.
func (r *Result) Source() audit.Source {
	return audit.NewSource(r.Text, r.Pages, r.KV, r.Tables)
}

// NewAnalyzer creates an Analyzer based on config. Remote providers are
// wrapped with the local text layer when LocalFallback is set.
func NewAnalyzer(cfg config.OCRConfig) (Analyzer, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}

	var primary Analyzer
	switch cfg.Provider {
	case config.ProviderLocal, "":
		return NewLocal(), nil
	case config.ProviderAzure:
		if cfg.Azure.Endpoint == "" || cfg.Azure.Key == "" {
			return nil, eris.Wrap(ErrNotConfigured, "azure endpoint and key are required")
		}
		primary = NewAzure(cfg.Azure, client)
	case config.ProviderMistral:
		if cfg.Mistral.APIKey == "" {
			return nil, eris.Wrap(ErrNotConfigured, "mistral api key is required")
		}
		primary = NewMistral(cfg.Mistral, client)
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}

	if cfg.LocalFallback {
		return NewFallback(primary, NewLocal()), nil
	}
	return primary, nil
}

// Fallback tries each analyzer in order and returns the first success.
type Fallback struct {
	analyzers []Analyzer
}

// NewFallback creates a chain over analyzers.
func NewFallback(analyzers ...Analyzer) *Fallback {
	return &Fallback{analyzers: analyzers}
}

func (f *Fallback) Name() string {
	if len(f.analyzers) == 0 {
		return "none"
	}
	return f.analyzers[0].Name()
}

func (f *Fallback) Analyze(ctx context.Context, pdf []byte) (*Result, error) {
	var lastErr error = eris.New("ocr: no analyzers")
	for _, a := range f.analyzers {
		res, err := a.Analyze(ctx, pdf)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ocr: analysis cancelled")
		}
		zap.L().Warn("layout analysis failed, trying next provider",
			zap.String("provider", a.Name()),
			zap.Error(err),
		)
		lastErr = err
	}
	return nil, lastErr
}
