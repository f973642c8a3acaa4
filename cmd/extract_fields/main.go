package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
	"github.com/a3tai/reportshield/internal/ocr"
	"github.com/a3tai/reportshield/internal/pdf"
)

var (
	outputFormat = flag.String("format", "json", "Output format: json, text")
	provider     = flag.String("provider", config.ProviderLocal, "OCR provider: local, azure, mistral (remote providers read REPORTSHIELD_* credentials)")
	withText     = flag.Bool("with-text", false, "Include the full text and page texts in JSON output")
	help         = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printUsage(os.Stdout)
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF file path required\n\n")
		printUsage(os.Stderr)
		os.Exit(1)
	}

	pdfPath := flag.Arg(0)
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result, err := extractFields(context.Background(), pdfPath, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting fields: %v\n", err)
		os.Exit(1)
	}

	if err := outputResults(os.Stdout, result); err != nil {
		fmt.Fprintf(os.Stderr, "Error outputting results: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Extract Fields - print the fields the audit extracts from an appraisal PDF")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  extract_fields [OPTIONS] <pdf_file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
}

// ExtractionResult is the diagnostic view of one extraction.
type ExtractionResult struct {
	FilePath       string          `json:"file_path"`
	Provider       string          `json:"provider"`
	Pages          int             `json:"pages"`
	ContentType    pdf.ContentType `json:"content_type,omitempty"`
	Document       *audit.Document `json:"document"`
	ExtractionTime string          `json:"extraction_time"`
}

func extractFields(ctx context.Context, path string, data []byte) (*ExtractionResult, error) {
	start := time.Now()

	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	cfg.OCR.Provider = *provider
	cfg.OCR.LocalFallback = false

	info, err := pdf.NewValidator(cfg.Audit.MaxFileSize, cfg.Audit.MaxPages).Validate(data)
	if err != nil {
		return nil, err
	}

	analyzer, err := ocr.NewAnalyzer(cfg.OCR)
	if err != nil {
		return nil, err
	}
	layout, err := analyzer.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}

	doc := audit.NewExtractor(cfg.AuditOptions()).Extract(filepath.Base(path), layout.Source())
	if !*withText {
		doc.Text = ""
		doc.Pages = nil
	}

	result := &ExtractionResult{
		FilePath:       path,
		Provider:       analyzer.Name(),
		Pages:          info.Pages,
		Document:       doc,
		ExtractionTime: time.Since(start).String(),
	}
	if layer, _ := pdf.ReadText(data); layer != nil {
		result.ContentType = layer.Type
	}
	return result, nil
}

func outputResults(w io.Writer, result *ExtractionResult) error {
	switch *outputFormat {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "text":
		return outputText(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", *outputFormat)
	}
}

func outputText(w io.Writer, result *ExtractionResult) error {
	doc := result.Document
	fmt.Fprintf(w, "File: %s (%d pages, %s, via %s)\n\n", result.FilePath, result.Pages, result.ContentType, result.Provider)

	fields := []struct {
		label string
		field audit.Field
	}{
		{"Effective Date", doc.EffectiveDate},
		{"Value Conclusion", doc.ValueConclusion},
		{"Form Type", doc.FormType},
		{"Appraiser", doc.Appraiser},
		{"Client", doc.Client},
		{"Subject Address", doc.SubjectAddress},
		{"State", doc.State},
		{"Loan Type", doc.LoanType},
		{"VA Case Number", doc.VACaseNumber},
	}
	for _, f := range fields {
		value, page := audit.NotFound, ""
		if f.field.Found() {
			value = f.field.Value
		}
		if f.field.Evidence != nil {
			page = fmt.Sprintf(" (p. %d)", f.field.Evidence.Page)
		}
		fmt.Fprintf(w, "%-17s %s%s\n", f.label+":", value, page)
	}

	fmt.Fprintf(w, "\nKey/value rows: %d\nComparables: %d\n", len(doc.KV), len(doc.Comparables))
	fmt.Fprintf(w, "Extraction time: %s\n", result.ExtractionTime)
	return nil
}
