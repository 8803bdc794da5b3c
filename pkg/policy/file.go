package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
)

// FileSourceConfig contains configuration for the file-backed policy source.
type FileSourceConfig struct {
	// Path is the boundary policy YAML file to load and watch.
	Path string `yaml:"path"`

	// DebounceInterval is the quiet period before a detected change
	// triggers a reload. Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// DefaultFileSourceConfig returns the default file source configuration.
func DefaultFileSourceConfig() *FileSourceConfig {
	return &FileSourceConfig{
		DebounceInterval: 100 * time.Millisecond,
	}
}

// FileSource loads a boundary document from a local YAML file and hot-reloads
// it on change. A document that fails to parse never replaces the active one.
type FileSource struct {
	config   *FileSourceConfig
	logger   *slog.Logger
	debounce *Debouncer

	mu      sync.RWMutex
	current *Document
	version VersionInfo
	onLoad  func(boundary.Boundaries)

	watcher *fsnotify.Watcher
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewFileSource creates a file source and performs the initial load.
func NewFileSource(config *FileSourceConfig) (*FileSource, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("file source requires a path")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultFileSourceConfig().DebounceInterval
	}

	s := &FileSource{
		config:   config,
		logger:   slog.Default().With("component", "policy.file"),
		debounce: NewDebouncer(config.DebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// OnLoad registers a callback invoked with the new boundary set after every
// successful (re)load, including the initial one already performed by
// NewFileSource.
func (s *FileSource) OnLoad(callback func(boundary.Boundaries)) {
	s.mu.Lock()
	s.onLoad = callback
	current := s.current
	s.mu.Unlock()

	if callback != nil && current != nil {
		callback(current.Boundaries)
	}
}

// Boundaries returns the active boundary set.
func (s *FileSource) Boundaries() boundary.Boundaries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Boundaries
}

// PolicyID returns the active document's version label.
func (s *FileSource) PolicyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version.ID
}

// Version returns the active version details.
func (s *FileSource) Version() VersionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Watch blocks, reloading the document when the file changes, until the
// context is cancelled or Stop is called.
func (s *FileSource) Watch(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("file source already watching")
	}
	s.running = true
	s.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	// Watch the directory, not the file: editors replace files by rename,
	// which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(s.config.Path)); err != nil {
		return fmt.Errorf("watch policy directory: %w", err)
	}

	s.logger.Info("policy file watcher started",
		"path", s.config.Path,
		"debounce_ms", s.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("policy file watcher stopped (context cancelled)")
			return nil

		case <-s.stopCh:
			s.logger.Info("policy file watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !s.shouldProcessEvent(event) {
				continue
			}

			s.logger.Debug("policy file event", "path", event.Name, "op", event.Op.String())

			s.debounce.Trigger(func() {
				if err := s.load(); err != nil {
					s.logger.Error("policy reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			s.logger.Error("policy file watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for Watch to return.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.debounce.Stop()

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			return fmt.Errorf("close watcher: %w", err)
		}
	}
	return nil
}

// shouldProcessEvent filters watcher noise down to real edits of the policy
// file.
func (s *FileSource) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(s.config.Path) ||
		strings.HasPrefix(filepath.Base(event.Name), filepath.Base(s.config.Path))
}

// load reads, parses, and swaps in the document.
func (s *FileSource) load() error {
	data, err := os.ReadFile(s.config.Path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}

	version := VersionInfo{
		ID:       doc.Version,
		LoadedAt: time.Now().UTC(),
	}
	if version.ID == "" {
		version.ID = fmt.Sprintf("file:%s", filepath.Base(s.config.Path))
	}

	s.mu.Lock()
	s.current = doc
	s.version = version
	callback := s.onLoad
	s.mu.Unlock()

	if callback != nil {
		callback(doc.Boundaries)
	}

	s.logger.Info("boundary policy loaded", "path", s.config.Path, "version", version.ID)
	return nil
}
