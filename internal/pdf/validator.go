package pdf

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Magic is the signature every PDF starts with.
var Magic = []byte("%PDF")

// Info is what the validator learned about an accepted document.
type Info struct {
	Size  int64
	Pages int
	// Structured is false when the cross-reference structure could not be
	// parsed. Such documents still go to layout analysis.
	Structured bool
}

// Validator handles PDF input validation
type Validator struct {
	maxFileSize int64
	maxPages    int
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64, maxPages int) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
		maxPages:    maxPages,
	}
}

// Validate checks signature, size, page count and active content, in that
// order. A structure that pdfcpu cannot parse is logged and accepted.
func (v *Validator) Validate(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	if !bytes.HasPrefix(data, Magic) {
		return nil, ErrNotPDF
	}

	size := int64(len(data))
	if size > v.maxFileSize {
		return nil, eris.Wrapf(ErrTooLarge, "%d bytes (max: %d bytes)", size, v.maxFileSize)
	}

	info := &Info{Size: size}

	ctx, err := readContext(data)
	if err != nil {
		zap.L().Warn("pdf structure unreadable, continuing to layout analysis", zap.Error(err))
		return info, nil
	}
	info.Structured = true
	info.Pages = ctx.PageCount

	if info.Pages > v.maxPages {
		return nil, eris.Wrapf(ErrTooManyPages, "%d pages (max: %d)", info.Pages, v.maxPages)
	}

	names, err := namesDict(ctx)
	if err != nil {
		zap.L().Warn("pdf name tree unreadable", zap.Error(err))
		return info, nil
	}
	if names != nil {
		if _, found := names.Find("JavaScript"); found {
			return nil, ErrJavaScript
		}
		if _, found := names.Find("EmbeddedFiles"); found {
			return nil, ErrEmbeddedFiles
		}
	}

	return info, nil
}

// readContext parses data with pdfcpu in relaxed mode and resolves the page
// count. pdfcpu panics on some malformed inputs; those are reported as errors.
func readContext(data []byte) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx, err = nil, eris.Errorf("pdfcpu panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err = api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, eris.Wrap(err, "read pdf context")
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, eris.Wrap(err, "page count")
	}
	return ctx, nil
}
