package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
	"github.com/a3tai/reportshield/internal/ocr"
	"github.com/a3tai/reportshield/internal/policy"
)

const vaReport = "UNIFORM RESIDENTIAL APPRAISAL REPORT\n" +
	"Loan Type: VA\n" +
	"VA Case Number: 26-26-6-1234567\n" +
	"Subject: 10 Oak Lane, Fairfax, VA 22030\n" +
	"Appraiser: Jane Q Sample\n" +
	"Effective Date: 03/04/2024\n" +
	"Highest and best use is the present use.\n" +
	"Market Conditions Addendum 1004MC attached.\n" +
	"Final value $450,000"

// unstructuredPDF carries the signature but no parseable cross-reference
// table, so it passes the guard and goes straight to layout analysis.
var unstructuredPDF = []byte("%PDF-1.4\nscanned appraisal\n%%EOF")

type fakeAnalyzer struct {
	res   *ocr.Result
	err   error
	panic bool
	calls int
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(ctx context.Context, _ []byte) (*ocr.Result, error) {
	f.calls++
	if f.panic {
		panic("analyzer exploded")
	}
	return f.res, f.err
}

type fakeLLM struct {
	out          string
	err          error
	instructions string
	text         string
}

func (f *fakeLLM) Render(_ context.Context, instructions, text string) (string, error) {
	f.instructions, f.text = instructions, text
	return f.out, f.err
}

func textResult(text string) *ocr.Result {
	return &ocr.Result{Provider: "fake", Text: text, Pages: []string{text}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	return &config.Config{
		Audit: config.AuditConfig{
			MaxFileSize:        1 << 20,
			MaxPages:           500,
			EvidenceMaxWords:   15,
			PublicMode:         true,
			RedactPII:          true,
			MissingFieldPolicy: "skip",
			Style:              "analyst",
		},
		Policy: config.PolicyConfig{
			RulesPath:        write("rules.txt", "OUTPUT RULES (v2.9)"),
			SchematicPath:    write("schematic.txt", "EXECUTION SCHEMATIC (v6.6)"),
			StateHooksPath:   filepath.Join(dir, "absent.yaml"),
			RulesVersion:     "v2.9",
			SchematicVersion: "v6.6",
		},
		OCR: config.OCRConfig{TimeoutSecs: 5},
		LLM: config.LLMConfig{TimeoutSecs: 5},
	}
}

func newPipeline(t *testing.T, cfg *config.Config, a ocr.Analyzer) *Pipeline {
	t.Helper()
	return New(cfg, policy.NewStore(cfg.Policy, audit.MissingFieldSkip), a, nil)
}

func assertErrorShape(t *testing.T, res *Result, class audit.FailureClass) {
	t.Helper()
	require.NotNil(t, res.Failure)
	assert.Equal(t, class, res.Failure.Class)
	assert.Equal(t, StateErrorRendered, res.State)
	assert.NotEmpty(t, res.RequestID)

	for _, h := range audit.SectionHeaders {
		assert.Contains(t, res.Report, h)
	}
	assert.Contains(t, res.Report, "[CRITICAL] Audit failed: "+class.String())
	assert.Equal(t, strings.Count(res.Report, "[CRITICAL]"), strings.Count(res.Report, "[CRITICAL] Audit failed"))
	require.Len(t, res.Findings, 1)
	assert.Equal(t, audit.Critical, res.Findings[0].Severity)
}

func TestRun_VAReportEndToEnd(t *testing.T) {
	fa := &fakeAnalyzer{res: textResult(vaReport)}
	p := newPipeline(t, testConfig(t), fa)

	res := p.Run(context.Background(), audit.Input{Data: unstructuredPDF, FileName: "va.pdf"}, "")
	require.Nil(t, res.Failure, res.Report)
	assert.Equal(t, StateRendered, res.State)
	assert.Equal(t, RendererDeterministic, res.Renderer)
	assert.Equal(t, 1, fa.calls)

	assert.Contains(t, res.Report, "VA MPR references missing in VA context")
	assert.Contains(t, res.Report, "Mar 04, 2024")
	assert.Contains(t, res.Report, "→ Appraiser Name = "+audit.Redacted)

	var critical []audit.Finding
	for _, f := range res.Findings {
		if f.Severity == audit.Critical {
			critical = append(critical, f)
		}
	}
	require.Len(t, critical, 1)
	assert.Equal(t, "VA-01", critical[0].RuleID)
	assert.Equal(t, audit.LoanVA, res.Document.LoanType.Value)
	assert.Equal(t, "26-26-6-1234567", res.Document.VACaseNumber.Value)
}

func TestRun_Deterministic(t *testing.T) {
	p := newPipeline(t, testConfig(t), &fakeAnalyzer{res: textResult(vaReport)})
	in := audit.Input{Data: unstructuredPDF, FileName: "va.pdf"}

	first := p.Run(context.Background(), in, "")
	second := p.Run(context.Background(), in, "")
	assert.Equal(t, first.Report, second.Report)
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestRun_StyleOverride(t *testing.T) {
	p := newPipeline(t, testConfig(t), &fakeAnalyzer{res: textResult(vaReport)})
	in := audit.Input{Data: unstructuredPDF, FileName: "va.pdf"}

	analyst := p.Run(context.Background(), in, audit.StyleAnalyst)
	legacy := p.Run(context.Background(), in, audit.StyleLegacy)
	assert.NotEqual(t, analyst.Report, legacy.Report)
	assert.Equal(t, audit.StyleAnalyst, p.Options().Style)
}

func TestRun_ErrorShapes(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		class audit.FailureClass
	}{
		{"bad magic", []byte("PK\x03\x04 zip archive"), audit.FailureUnsupportedType},
		{"empty", nil, audit.FailureInvalidInput},
		{"oversized", append([]byte("%PDF-1.4\n"), make([]byte, 2<<20)...), audit.FailureTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{res: textResult(vaReport)}
			res := newPipeline(t, testConfig(t), fa).Run(context.Background(), audit.Input{Data: tt.data, FileName: "x"}, "")
			assertErrorShape(t, res, tt.class)
			assert.Zero(t, fa.calls, "analysis must not run for rejected input")
		})
	}
}

func TestRun_NonPDFShowsSentinels(t *testing.T) {
	res := newPipeline(t, testConfig(t), &fakeAnalyzer{}).
		Run(context.Background(), audit.Input{Data: []byte("hello"), FileName: "notes.txt"}, "")
	assertErrorShape(t, res, audit.FailureUnsupportedType)

	section1 := strings.SplitN(res.Report, audit.SectionHeaders[1], 2)[0]
	for _, line := range strings.Split(section1, "\n")[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		assert.Contains(t, line, audit.NotFound)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policy.RulesPath = filepath.Join(t.TempDir(), "missing.txt")

	fa := &fakeAnalyzer{res: textResult(vaReport)}
	res := newPipeline(t, cfg, fa).Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	assertErrorShape(t, res, audit.FailureConfiguration)
	assert.Zero(t, fa.calls)
}

func TestRun_NoAnalyzerIsConfigurationFailure(t *testing.T) {
	res := newPipeline(t, testConfig(t), nil).Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	assertErrorShape(t, res, audit.FailureConfiguration)
}

func TestRun_OCRFailure(t *testing.T) {
	fa := &fakeAnalyzer{err: assert.AnError}
	res := newPipeline(t, testConfig(t), fa).Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	assertErrorShape(t, res, audit.FailureExtraction)
	assert.NotContains(t, res.Report, assert.AnError.Error(), "internal errors never reach the report")
}

func TestRun_OCRNotConfigured(t *testing.T) {
	fa := &fakeAnalyzer{err: ocr.ErrNotConfigured}
	res := newPipeline(t, testConfig(t), fa).Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	assertErrorShape(t, res, audit.FailureConfiguration)
}

func TestRun_PanicIsProcessingFailure(t *testing.T) {
	res := newPipeline(t, testConfig(t), &fakeAnalyzer{panic: true}).
		Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	assertErrorShape(t, res, audit.FailureProcessing)
	assert.NotContains(t, res.Report, "exploded")
	assert.Error(t, res.Check())
}

func TestRun_LLMRenderer(t *testing.T) {
	cfg := testConfig(t)
	llmOut := strings.Join(audit.SectionHeaders[:], "\n→ Appraiser Jane Q Sample, SSN 123-45-6789\n")
	fl := &fakeLLM{out: llmOut}
	p := New(cfg, policy.NewStore(cfg.Policy, audit.MissingFieldSkip), &fakeAnalyzer{res: textResult(vaReport)}, fl)

	res := p.Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	require.Nil(t, res.Failure)
	assert.Equal(t, RendererLLM, res.Renderer)
	assert.Contains(t, fl.instructions, "v2.9")
	assert.Contains(t, fl.instructions, "v6.6")
	assert.Contains(t, fl.text, "VA Case Number")

	assert.NotContains(t, res.Report, "Jane Q Sample")
	assert.NotContains(t, res.Report, "123-45-6789")
	assert.Contains(t, res.Report, audit.Redacted)

	lines := strings.Split(res.Report, "\n")
	require.Len(t, lines, 2*len(audit.SectionHeaders)-1)
	for i, h := range audit.SectionHeaders {
		assert.Equal(t, h, lines[2*i], "section header on its own line")
	}
	assert.True(t, strings.HasPrefix(lines[1], "→ Appraiser "), lines[1])
}

func TestRun_LLMFailureFallsBack(t *testing.T) {
	cfg := testConfig(t)
	fl := &fakeLLM{err: assert.AnError}
	p := New(cfg, policy.NewStore(cfg.Policy, audit.MissingFieldSkip), &fakeAnalyzer{res: textResult(vaReport)}, fl)

	res := p.Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	require.Nil(t, res.Failure)
	assert.Equal(t, RendererDeterministic, res.Renderer)
	assert.Contains(t, res.Report, "VA MPR references missing in VA context")
}

func TestRun_RecordsDuration(t *testing.T) {
	res := newPipeline(t, testConfig(t), &fakeAnalyzer{res: textResult(vaReport)}).
		Run(context.Background(), audit.Input{Data: unstructuredPDF}, "")
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestReady(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, newPipeline(t, cfg, &fakeAnalyzer{}).Ready())
	assert.ErrorIs(t, newPipeline(t, cfg, nil).Ready(), ocr.ErrNotConfigured)

	rules, schematic := newPipeline(t, cfg, nil).Versions()
	assert.Equal(t, "v2.9", rules)
	assert.Equal(t, "v6.6", schematic)
}
