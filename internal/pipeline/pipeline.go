// Package pipeline sequences one audit: policy load, input guard, layout
// analysis, extraction, rule evaluation and rendering. Every failure ends in
// the same five-section report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
	"github.com/a3tai/reportshield/internal/llm"
	"github.com/a3tai/reportshield/internal/ocr"
	"github.com/a3tai/reportshield/internal/pdf"
	"github.com/a3tai/reportshield/internal/policy"
)

// State is a step of the audit state machine.
type State string

const (
	StateStart          State = "START"
	StateConfigLoaded   State = "CONFIG_LOADED"
	StateInputValidated State = "INPUT_VALIDATED"
	StateExtracted      State = "EXTRACTED"
	StateRulesEvaluated State = "RULES_EVALUATED"
	StateRendered       State = "RENDERED"
	StateErrorRendered  State = "ERROR_RENDERED"
)

// Renderer names recorded on a Result.
const (
	RendererDeterministic = "deterministic"
	RendererLLM           = "llm"
)

// Result is the outcome of one run. Report is always set.
type Result struct {
	RequestID string
	State     State
	Report    string
	Renderer  string
	Document  *audit.Document
	Findings  []audit.Finding
	Failure   *audit.Failure
	Duration  time.Duration
}

// Failed reports whether the run ended on the error path.
func (r *Result) Failed() bool {
	return r.Failure != nil
}

// Pipeline runs audits. It holds only immutable collaborators and is safe for
// concurrent use.
type Pipeline struct {
	opts       audit.Options
	store      *policy.Store
	validator  *pdf.Validator
	analyzer   ocr.Analyzer
	llm        llm.Renderer
	ocrTimeout time.Duration
	llmTimeout time.Duration
	engine     *audit.Engine
}

// New creates a pipeline. A nil analyzer makes every run a configuration
// failure; a nil renderer keeps output deterministic.
func New(cfg *config.Config, store *policy.Store, analyzer ocr.Analyzer, renderer llm.Renderer) *Pipeline {
	opts := cfg.AuditOptions()
	return &Pipeline{
		opts:       opts,
		store:      store,
		validator:  pdf.NewValidator(cfg.Audit.MaxFileSize, cfg.Audit.MaxPages),
		analyzer:   analyzer,
		llm:        renderer,
		ocrTimeout: time.Duration(cfg.OCR.TimeoutSecs) * time.Second,
		llmTimeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		engine:     audit.NewEngine(opts, nil),
	}
}

// Options returns the audit options the pipeline renders with.
func (p *Pipeline) Options() audit.Options {
	return p.opts
}

// Ready reports whether policy documents load and an analyzer is present.
func (p *Pipeline) Ready() error {
	if _, err := p.store.Load(); err != nil {
		return err
	}
	if p.analyzer == nil {
		return ocr.ErrNotConfigured
	}
	return nil
}

// Versions reports the policy versions the pipeline enforces.
func (p *Pipeline) Versions() (rules, schematic string) {
	return p.store.Versions()
}

// run carries the per-request state through the steps.
type run struct {
	p      *Pipeline
	id     string
	state  State
	log    *zap.Logger
	opts   audit.Options
	bundle *policy.Bundle
	doc    *audit.Document
}

func (r *run) advance(s State) {
	r.state = s
	r.log.Debug("audit state", zap.String("state", string(s)))
}

// Run audits in with the given output style. It never returns an error:
// failures are rendered into the report.
func (p *Pipeline) Run(ctx context.Context, in audit.Input, style audit.Style) (res *Result) {
	start := time.Now()
	opts := p.opts
	if style != "" {
		opts.Style = style
	}

	r := &run{
		p:     p,
		id:    uuid.NewString(),
		state: StateStart,
		opts:  opts,
	}
	r.log = zap.L().With(zap.String("request_id", r.id), zap.String("file", in.FileName))

	defer func() {
		if rec := recover(); rec != nil {
			res = r.fail(audit.NewFailure(audit.FailureProcessing, fmt.Errorf("panic: %v", rec)))
		}
		res.Duration = time.Since(start)
		r.log.Info("audit finished",
			zap.String("state", string(res.State)),
			zap.String("renderer", res.Renderer),
			zap.Int("findings", len(res.Findings)),
			zap.Duration("duration", res.Duration),
		)
	}()

	if err := r.execute(ctx, in); err != nil {
		return r.fail(audit.AsFailure(err))
	}
	return r.render(ctx)
}

func (r *run) execute(ctx context.Context, in audit.Input) error {
	bundle, err := r.p.store.Load()
	if err != nil {
		return audit.NewFailure(audit.FailureConfiguration, err)
	}
	r.bundle = bundle
	r.advance(StateConfigLoaded)

	info, err := r.p.validator.Validate(in.Data)
	if err != nil {
		return audit.NewFailure(pdf.FailureClass(err), err)
	}
	r.log.Debug("input accepted", zap.Int64("size", info.Size), zap.Int("pages", info.Pages), zap.Bool("structured", info.Structured))
	r.advance(StateInputValidated)

	if r.p.analyzer == nil {
		return audit.NewFailure(audit.FailureConfiguration, ocr.ErrNotConfigured)
	}
	actx, cancel := withTimeout(ctx, r.p.ocrTimeout)
	defer cancel()
	layout, err := r.p.analyzer.Analyze(actx, in.Data)
	if err != nil {
		return audit.NewFailure(analysisFailureClass(err), err)
	}
	r.log.Debug("layout analysis complete", zap.String("provider", layout.Provider), zap.Int("pages", len(layout.Pages)))

	r.doc = audit.NewExtractor(r.opts).Extract(in.FileName, layout.Source())
	r.advance(StateExtracted)
	return nil
}

func (r *run) render(ctx context.Context) *Result {
	consistency := audit.CheckConsistency(r.doc)
	findings := audit.Rank(r.p.engine.Evaluate(r.doc, r.bundle.Policy))
	r.advance(StateRulesEvaluated)

	report := audit.NewRenderer(r.opts).Render(audit.Report{
		Document:    r.doc,
		Findings:    findings,
		Consistency: consistency,
	})
	renderer := RendererDeterministic

	if out, ok := r.renderLLM(ctx); ok {
		report, renderer = out, RendererLLM
	}
	r.advance(StateRendered)

	all := append(append([]audit.Finding{}, consistency...), findings...)
	return &Result{
		RequestID: r.id,
		State:     r.state,
		Report:    report,
		Renderer:  renderer,
		Document:  r.doc,
		Findings:  all,
	}
}

// renderLLM asks the optional renderer for the report. Any failure falls
// back to the deterministic text.
func (r *run) renderLLM(ctx context.Context) (string, bool) {
	if r.p.llm == nil {
		return "", false
	}
	lctx, cancel := withTimeout(ctx, r.p.llmTimeout)
	defer cancel()

	instructions := r.bundle.Rules + "\n\n" + r.bundle.Schematic
	out, err := r.p.llm.Render(lctx, instructions, r.doc.Text)
	if err != nil {
		r.log.Warn("llm render failed, using deterministic report", zap.Error(err))
		return "", false
	}
	out = audit.NewRedactor(r.opts.RedactPII).RedactLines(out)
	if r.opts.PublicMode {
		for _, f := range []audit.Field{r.doc.Appraiser, r.doc.Client} {
			if f.Found() {
				out = strings.ReplaceAll(out, f.Value, audit.Redacted)
			}
		}
	}
	return out, true
}

func (r *run) fail(f *audit.Failure) *Result {
	r.log.Error("audit failed",
		zap.String("state", string(r.state)),
		zap.String("class", f.Class.String()),
		zap.Error(f.Err),
	)
	r.state = StateErrorRendered
	return &Result{
		RequestID: r.id,
		State:     StateErrorRendered,
		Report:    audit.NewRenderer(r.opts).RenderFailure(f),
		Renderer:  RendererDeterministic,
		Findings:  []audit.Finding{f.Finding()},
		Failure:   f,
	}
}

func analysisFailureClass(err error) audit.FailureClass {
	if errors.Is(err, ocr.ErrNotConfigured) {
		return audit.FailureConfiguration
	}
	return audit.FailureExtraction
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Check is a convenience for callers that want an error when the run failed.
func (r *Result) Check() error {
	if r.Failure == nil {
		return nil
	}
	return eris.Wrapf(r.Failure, "audit %s", r.RequestID)
}
