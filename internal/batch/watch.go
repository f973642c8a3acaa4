package batch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDebounce is how long a file must stay quiet before it is audited.
const DefaultDebounce = 500 * time.Millisecond

// Watch audits PDFs created or rewritten in dir until ctx is cancelled. Each
// finished item is passed to done, which may be nil.
func (b *Batch) Watch(ctx context.Context, dir string, debounce time.Duration, done func(Item)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "create watcher")
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(dir); err != nil {
		return eris.Wrapf(err, "watch %s", dir)
	}
	zap.L().Info("watching for PDFs", zap.String("dir", dir))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	tick := time.NewTicker(debounce / 2)
	defer tick.Stop()
	pending := map[string]time.Time{}

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return g.Wait()
			}
			if isPDF(ev.Name) && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return g.Wait()
			}
			zap.L().Warn("watcher error", zap.Error(err))
		case now := <-tick.C:
			flushPending(g, pending, now, debounce, func(path string) {
				it := b.AuditFile(gctx, path)
				if it.Err != nil {
					zap.L().Warn("watch audit failed", zap.String("file", path), zap.Error(it.Err))
				}
				if done != nil {
					done(it)
				}
			})
		}
	}
}

// flushPending runs every path quiet for at least debounce. It
// never blocks: a path the group has no room for stays pending for the next
// tick.
func flushPending(g *errgroup.Group, pending map[string]time.Time, now time.Time, debounce time.Duration, run func(path string)) {
	for path, seen := range pending {
		if now.Sub(seen) < debounce {
			continue
		}
		if !g.TryGo(func() error {
			run(path)
			return nil
		}) {
			continue
		}
		delete(pending, path)
	}
}
