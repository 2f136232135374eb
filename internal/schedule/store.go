package schedule

import (
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store owns the active configuration of one module.
//
// Readers call Current and get a pointer to an immutable value; Reload
// builds a complete replacement before swapping the pointer, so a reader
// sees either the old or the new configuration and never a mix. A reload
// that fails validation leaves the active configuration untouched.
type Store struct {
	src     Source
	current atomic.Pointer[ModuleConfiguration]
	reload  sync.Mutex
	logger  Logger
}

// NewStore loads src and returns a store holding the result.
//
// Returns:
//   - *Store: Store with a valid active configuration
//   - error: ErrConfigInvalid if the initial load fails
func NewStore(src Source) (*Store, error) {
	cfg, err := Load(src)
	if err != nil {
		return nil, err
	}
	s := &Store{src: src, logger: noopLogger{}}
	s.current.Store(cfg)
	return s, nil
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Current returns the active configuration. Never nil.
func (s *Store) Current() *ModuleConfiguration {
	return s.current.Load()
}

// SourceName identifies where the configuration is read from.
func (s *Store) SourceName() string {
	return s.src.Name()
}

// Reload re-reads the source and swaps in the new configuration.
//
// Returns:
//   - *ModuleConfiguration: The configuration active after the call
//   - error: ErrConfigInvalid if the source is invalid; the previous
//     configuration stays active and is returned alongside the error
func (s *Store) Reload() (*ModuleConfiguration, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	cfg, err := Load(s.src)
	if err != nil {
		s.logger.Error("module configuration reload failed, keeping previous configuration",
			"source", s.src.Name(), "error", err)
		return s.current.Load(), err
	}

	s.current.Store(cfg)
	s.logger.Info("module configuration reloaded",
		"source", s.src.Name(),
		"actuators", len(cfg.Actuators),
		"ignored_parameters", len(cfg.Ignored),
	)
	return cfg, nil
}
