// Package batch audits many files at once: a directory sweep with bounded
// concurrency, a findings workbook, and a drop-folder watcher.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/pipeline"
)

// ReportSuffix is appended to the input name for the written report.
const ReportSuffix = ".audit.txt"

// Runner runs one audit.
type Runner interface {
	Run(ctx context.Context, in audit.Input, style audit.Style) *pipeline.Result
}

// Item is the outcome for one file. Err is set only when the file could not
// be read or the report could not be written; audit failures live in Result.
type Item struct {
	Path   string
	Result *pipeline.Result
	Err    error
}

// Batch audits files with at most Concurrency audits in flight.
type Batch struct {
	runner      Runner
	concurrency int
	style       audit.Style
}

// New creates a Batch. A non-positive concurrency runs one audit at a time.
func New(runner Runner, concurrency int, style audit.Style) *Batch {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Batch{runner: runner, concurrency: concurrency, style: style}
}

// ListPDFs returns the .pdf files directly under dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isPDF(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// AuditDir audits every PDF in dir and writes each report next to its input.
// Items come back in file name order.
func (b *Batch) AuditDir(ctx context.Context, dir string) ([]Item, error) {
	paths, err := ListPDFs(dir)
	if err != nil {
		return nil, err
	}
	return b.AuditFiles(ctx, paths)
}

// AuditFiles audits paths concurrently. It stops scheduling new work once ctx
// is cancelled.
func (b *Batch) AuditFiles(ctx context.Context, paths []string) ([]Item, error) {
	items := make([]Item, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = b.AuditFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	if err := ctx.Err(); err != nil {
		return items, err
	}

	zap.L().Info("batch complete", zap.Int("files", len(paths)))
	return items, nil
}

// AuditFile audits one file and writes <path>.audit.txt beside it.
func (b *Batch) AuditFile(ctx context.Context, path string) Item {
	item := Item{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		item.Err = eris.Wrapf(err, "read %s", path)
		zap.L().Warn("batch read failed", zap.String("file", path), zap.Error(err))
		return item
	}

	item.Result = b.runner.Run(ctx, audit.Input{Data: data, FileName: filepath.Base(path)}, b.style)

	if err := os.WriteFile(ReportPath(path), []byte(item.Result.Report), 0o644); err != nil {
		item.Err = eris.Wrapf(err, "write report for %s", path)
	}
	return item
}

// ReportPath returns where the report for path is written.
func ReportPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ReportSuffix
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
