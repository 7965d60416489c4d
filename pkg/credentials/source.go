package credentials

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/grump-ai/gateway/pkg/observability"
)

// Source supplies the raw credential list. Implementations are selected once
// at startup; business logic never branches on the concrete type.
type Source interface {
	// Load returns the current credential list. Order is preserved.
	Load() ([]Credential, error)
}

// EnvSource reads a comma-delimited credential list from an environment
// variable, e.g. GATEWAY_UPSTREAM_KEYS="sk-a,sk-b,sk-c".
type EnvSource struct {
	Var string
}

// Load reads and splits the environment variable. Empty entries are dropped.
func (s EnvSource) Load() ([]Credential, error) {
	raw := os.Getenv(s.Var)
	return splitList(raw), nil
}

// StaticSource is an in-memory source for local development and tests
type StaticSource struct {
	mu   sync.RWMutex
	list []Credential
}

// NewStaticSource creates a source with a fixed credential list
func NewStaticSource(list ...Credential) *StaticSource {
	return &StaticSource{list: append([]Credential(nil), list...)}
}

// Load returns a copy of the configured list
func (s *StaticSource) Load() ([]Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Credential(nil), s.list...), nil
}

// Set replaces the configured list
func (s *StaticSource) Set(list ...Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append([]Credential(nil), list...)
}

// FileSource reads a newline- or comma-delimited credential list from a file,
// typically a secret-store mount. Watch can be used to trigger pool refreshes
// when the mount is rotated.
type FileSource struct {
	Path string
}

// Load reads and parses the credential file. A missing file is a
// configuration condition and yields an empty list, not an error.
func (s FileSource) Load() ([]Credential, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: read %s: %w", s.Path, err)
	}

	normalized := strings.ReplaceAll(string(data), "\n", ",")
	return splitList(normalized), nil
}

// Watch starts an fsnotify watcher on the credential file and invokes
// onChange on every write or create event until the watcher fails or the
// returned stop function is called.
func (s FileSource) Watch(logger *observability.Logger, onChange func()) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("credentials: create watcher: %w", err)
	}
	if err := watcher.Add(s.Path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("credentials: watch %s: %w", s.Path, err)
	}

	go func() {
		defer observability.RecoverPanic(logger, "credential file watcher")
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
					logger.Info("Credential file changed, triggering refresh")
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Credential file watcher error")
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

func splitList(raw string) []Credential {
	parts := strings.Split(raw, ",")
	list := make([]Credential, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			list = append(list, Credential(trimmed))
		}
	}
	return list
}
