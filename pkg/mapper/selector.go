package mapper

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/logger"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Env is what a selector sees of the running pipeline.
type Env struct {
	Settings *settings.Settings
	// Output receives the objects the selector produces.
	Output *tree.File
	Logger *zap.Logger
}

// Selector is a per-row transformation unit. Begin is called once with the
// reader positioned before the first entry, Process once per entry in range
// and Terminate after the last one. Process loads the entry itself.
type Selector interface {
	Begin(env *Env, r *tree.Reader, option string) error
	Process(entry int64) error
	Terminate() error
}

// FileNotifier is implemented by selectors that want to know when the
// reader moves to the next physical file.
type FileNotifier interface {
	FileChanged(file string, treeNumber int) error
}

// Factory creates a fresh selector instance.
type Factory func() Selector

// Registry maps selector names to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty selector registry. It logs to the global
// logger current at each call unless SetLogger is used.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// SetLogger fixes the logger registrations are reported to.
func (r *Registry) SetLogger(l *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// log must be called with r.mu held.
func (r *Registry) log() *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logger.With(zap.String("component", "selector_registry"))
}

// Register adds a selector factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch name {
	case "", "copy", "draw":
		return errors.Newf(errors.ErrorTypeConfig, "invalid selector name %q", name)
	}
	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "selector %s already registered", name)
	}
	r.factories[name] = factory
	r.log().Debug("selector registered", zap.String("name", name))
	return nil
}

// Create instantiates the selector registered under name.
func (r *Registry) Create(name string) (Selector, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "cannot load selector %s", name).WithDetail("selector", name)
	}
	return factory(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a selector to the global registry.
func Register(name string, factory Factory) error {
	return globalRegistry.Register(name, factory)
}

// GetRegistry returns the global selector registry.
func GetRegistry() *Registry {
	return globalRegistry
}

// Run drives sel over the entries [first, last) of c. onFile, when not
// nil, runs at every physical file transition before the selector is told
// and before the first row of the new file is loaded.
func Run(ctx context.Context, sel Selector, env *Env, c *tree.Chain, option string, first, last int64, onFile tree.FileChangeFunc) (int64, error) {
	r := tree.NewReader(c)
	notifier, _ := sel.(FileNotifier)
	r.OnFileChange(func(file string, treeNumber int) error {
		if onFile != nil {
			if err := onFile(file, treeNumber); err != nil {
				return err
			}
		}
		if notifier != nil {
			return notifier.FileChanged(file, treeNumber)
		}
		return nil
	})

	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, "selector run cancelled")
	}
	if err := sel.Begin(env, r, option); err != nil {
		return 0, err
	}
	var n int64
	for entry := first; entry < last; entry++ {
		if err := sel.Process(entry); err != nil {
			return n, err
		}
		n++
	}
	return n, sel.Terminate()
}
