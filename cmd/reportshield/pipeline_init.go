package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
	"github.com/a3tai/reportshield/internal/llm"
	"github.com/a3tai/reportshield/internal/ocr"
	"github.com/a3tai/reportshield/internal/pipeline"
	"github.com/a3tai/reportshield/internal/policy"
)

// initPipeline wires the policy store, the OCR provider and the optional LLM
// renderer into a pipeline. An unconfigured OCR provider is not fatal: runs
// render a configuration failure and /ready reports not_ready.
func initPipeline(c *config.Config) (*pipeline.Pipeline, error) {
	missing, err := audit.ParseMissingFieldPolicy(c.Audit.MissingFieldPolicy)
	if err != nil {
		return nil, eris.Wrap(err, "missing field policy")
	}
	store := policy.NewStore(c.Policy, missing)

	analyzer, err := ocr.NewAnalyzer(c.OCR)
	if err != nil {
		if !errors.Is(err, ocr.ErrNotConfigured) {
			return nil, eris.Wrap(err, "ocr provider")
		}
		zap.L().Warn("ocr provider not configured", zap.String("provider", c.OCR.Provider), zap.Error(err))
		analyzer = nil
	}

	renderer := llm.NewRenderer(c.LLM)
	if renderer != nil {
		zap.L().Info("llm renderer enabled", zap.String("model", c.LLM.Model))
	}

	return pipeline.New(c, store, analyzer, renderer), nil
}
