package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Provider holds the current checkpoint and swaps it on reload. Readers
// keep whatever checkpoint they were handed; a reload only affects later
// calls to Current.
type Provider struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current *Checkpoint
	version uint64
}

// NewProvider loads the checkpoint at path.
func NewProvider(path string, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{path: filepath.Clean(path), logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the watched file.
func (p *Provider) Path() string { return p.path }

// Current returns the active checkpoint.
func (p *Provider) Current() *Checkpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Snapshot returns the active checkpoint together with its version. The
// version increments on every successful reload.
func (p *Provider) Snapshot() (*Checkpoint, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.version
}

// Reload re-reads the file. On error the previous checkpoint stays active.
func (p *Provider) Reload() error {
	cp, err := Load(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.current = cp
	p.version++
	version := p.version
	p.mu.Unlock()
	p.logger.Info("checkpoint loaded",
		zap.String("checkpoint", cp.ID),
		zap.Int("dialogues", cp.Dialogues().Len()),
		zap.Int("actions", len(cp.actions)),
		zap.Uint64("version", version))
	return nil
}

// reloadDelay coalesces the burst of events editors produce on save.
const reloadDelay = 150 * time.Millisecond

// Watch reloads the provider whenever its file changes, until ctx is done.
// The parent directory is watched so that atomic renames are seen.
func Watch(ctx context.Context, p *Provider) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("checkpoint watcher", zap.Error(err))
		case <-fire:
			fire = nil
			if err := p.Reload(); err != nil {
				p.logger.Error("checkpoint reload failed, keeping previous", zap.Error(err))
			}
		}
	}
}
