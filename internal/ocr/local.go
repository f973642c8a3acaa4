package ocr

import (
	"context"

	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/pdf"
)

// Local reads the embedded text layer and AcroForm fields. It reports no
// tables and fails on image-only documents.
type Local struct{}

// NewLocal creates a local text-layer analyzer.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Analyze(ctx context.Context, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	layer, err := pdf.ReadText(data)
	if err != nil {
		return nil, err
	}

	kv, err := pdf.ReadForm(data)
	if err != nil {
		zap.L().Debug("form fields unavailable", zap.Error(err))
		kv = nil
	}

	return &Result{
		Provider: l.Name(),
		Text:     layer.Text(),
		Pages:    layer.Pages,
		KV:       kv,
	}, nil
}
