package pdf

import (
	"github.com/rotisserie/eris"

	"github.com/a3tai/reportshield/internal/audit"
)

// Input guard errors. Each maps to exactly one audit failure class.
var (
	ErrEmpty         = eris.New("input is empty")
	ErrNotPDF        = eris.New("input is not a PDF")
	ErrTooLarge      = eris.New("file too large")
	ErrTooManyPages  = eris.New("too many pages")
	ErrJavaScript    = eris.New("PDF contains JavaScript")
	ErrEmbeddedFiles = eris.New("PDF contains embedded files")
	ErrNoText        = eris.New("no text layer")
)

var failureClasses = []struct {
	err   error
	class audit.FailureClass
}{
	{ErrEmpty, audit.FailureInvalidInput},
	{ErrNotPDF, audit.FailureUnsupportedType},
	{ErrTooLarge, audit.FailureTooLarge},
	{ErrTooManyPages, audit.FailureTooManyPages},
	{ErrJavaScript, audit.FailureJavaScript},
	{ErrEmbeddedFiles, audit.FailureEmbeddedFiles},
	{ErrNoText, audit.FailureExtraction},
}

// FailureClass maps a guard error onto its audit failure class. Errors the
// guard does not own are processing failures.
func FailureClass(err error) audit.FailureClass {
	for _, fc := range failureClasses {
		if eris.Is(err, fc.err) {
			return fc.class
		}
	}
	return audit.FailureProcessing
}
