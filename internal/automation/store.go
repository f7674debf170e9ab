package automation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Logger defines the logging interface used by the automation package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// document is the on-disk shape of the automation list.
type document struct {
	Automations []Automation `json:"automations"`
}

// Patch describes a partial update to an automation. Nil fields are left
// unchanged; slice fields replace the existing list wholesale when
// non-nil (pass an empty slice to clear conditions). The ID is immutable
// and has no patch field.
type Patch struct {
	Name       *string     `json:"name,omitempty"`
	Enabled    *bool       `json:"enabled,omitempty"`
	MaxRuns    *int        `json:"max_runs,omitempty"`
	Triggers   []Trigger   `json:"triggers,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Actions    []Action    `json:"actions,omitempty"`
}

// Store owns the canonical automation list. Every mutation updates the
// in-memory list, rewrites the backing JSON file in full, then invokes
// the registered change listeners. A failed write rolls the in-memory
// change back, so memory and disk never diverge and listeners only see
// applied mutations.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Listeners are invoked
//     outside the store's lock, so they may call back into the store.
type Store struct {
	path   string
	logger Logger

	mu          sync.Mutex
	automations []Automation

	listenerMu   sync.Mutex
	listeners    map[int]func()
	nextListener int
}

// NewStore creates a Store backed by the JSON file at path and loads it.
//
// A missing file yields an empty list which is immediately written out.
// A file that fails to parse or fails schema validation is logged and
// replaced by an empty list; startup never fails on a corrupt file.
func NewStore(path string, logger Logger) (*Store, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Store{
		path:      path,
		logger:    logger,
		listeners: make(map[int]func()),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// load reads the backing file into memory, resetting to an empty list on
// absence or corruption.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("automations file absent, starting empty", "path", s.path)
		s.automations = []Automation{}
		return s.save()
	}
	if err != nil {
		return fmt.Errorf("reading automations file: %w", err)
	}

	if err := validateDocument(data); err != nil {
		s.logger.Warn("automations file invalid, resetting to empty",
			"path", s.path, "error", err)
		s.automations = []Automation{}
		return s.save()
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("automations file unreadable, resetting to empty",
			"path", s.path, "error", err)
		s.automations = []Automation{}
		return s.save()
	}

	if doc.Automations == nil {
		doc.Automations = []Automation{}
	}
	s.automations = doc.Automations
	s.logger.Info("automations loaded", "count", len(s.automations), "path", s.path)
	return nil
}

// save writes the full list to the backing file. Caller must hold s.mu
// (or be in single-threaded construction).
func (s *Store) save() error {
	data, err := json.MarshalIndent(document{Automations: s.automations}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding automations: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating automations directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing automations file: %w", err)
	}
	return nil
}

// All returns a deep copy of every stored automation.
func (s *Store) All() []Automation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Automation, len(s.automations))
	for i, a := range s.automations {
		out[i] = a.DeepCopy()
	}
	return out
}

// Get returns a deep copy of the automation with the given ID.
func (s *Store) Get(id string) (Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.automations {
		if a.ID == id {
			return a.DeepCopy(), nil
		}
	}
	return Automation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create adds a new automation. The ID is caller-assigned and must be
// unique; RunCount starts at zero regardless of the input.
func (s *Store) Create(a Automation) (Automation, error) {
	a.RunCount = 0
	if err := Validate(a); err != nil {
		return Automation{}, err
	}

	s.mu.Lock()
	for _, existing := range s.automations {
		if existing.ID == a.ID {
			s.mu.Unlock()
			return Automation{}, fmt.Errorf("%w: %s", ErrExists, a.ID)
		}
	}

	s.automations = append(s.automations, a.DeepCopy())
	err := s.save()
	if err != nil {
		// Failed writes must not leave memory and disk diverged.
		s.automations = s.automations[:len(s.automations)-1]
		s.mu.Unlock()
		return Automation{}, err
	}
	s.mu.Unlock()

	s.logger.Info("automation created", "id", a.ID, "name", a.Name)
	s.notify()
	return a, nil
}

// Update applies a partial patch to an existing automation. The ID is
// immutable. Returns the updated automation.
func (s *Store) Update(id string, patch Patch) (Automation, error) {
	s.mu.Lock()

	idx := -1
	for i, a := range s.automations {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return Automation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := s.automations[idx].DeepCopy()
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Enabled != nil {
		updated.Enabled = *patch.Enabled
	}
	if patch.MaxRuns != nil {
		v := *patch.MaxRuns
		updated.MaxRuns = &v
	}
	if patch.Triggers != nil {
		updated.Triggers = patch.Triggers
	}
	if patch.Conditions != nil {
		updated.Conditions = patch.Conditions
	}
	if patch.Actions != nil {
		updated.Actions = patch.Actions
	}

	if err := Validate(updated); err != nil {
		s.mu.Unlock()
		return Automation{}, err
	}

	prev := s.automations[idx]
	s.automations[idx] = updated.DeepCopy()
	err := s.save()
	if err != nil {
		s.automations[idx] = prev
		s.mu.Unlock()
		return Automation{}, err
	}
	s.mu.Unlock()

	s.logger.Info("automation updated", "id", id)
	s.notify()
	return updated, nil
}

// Remove deletes the automation with the given ID. Removing an unknown
// ID is an error and changes no state.
func (s *Store) Remove(id string) error {
	s.mu.Lock()

	idx := -1
	for i, a := range s.automations {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// Remove via a fresh slice so the original survives intact if the
	// write fails.
	prev := s.automations
	next := make([]Automation, 0, len(prev)-1)
	next = append(next, prev[:idx]...)
	next = append(next, prev[idx+1:]...)
	s.automations = next
	err := s.save()
	if err != nil {
		s.automations = prev
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info("automation removed", "id", id)
	s.notify()
	return nil
}

// IncrementRunCount adds one to the automation's run count and persists
// the list. Returns the updated automation.
//
// Each call is an independent read-modify-write: overlapping firings of
// the same automation each increment once, in whichever order their
// completions arrive.
func (s *Store) IncrementRunCount(id string) (Automation, error) {
	s.mu.Lock()

	idx := -1
	for i, a := range s.automations {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return Automation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.automations[idx].RunCount++
	updated := s.automations[idx].DeepCopy()
	err := s.save()
	if err != nil {
		s.automations[idx].RunCount--
		s.mu.Unlock()
		return Automation{}, err
	}
	s.mu.Unlock()

	s.notify()
	return updated, nil
}

// Subscribe registers a zero-argument change listener, invoked
// synchronously after every successful mutation and run-count change.
// The returned function unsubscribes it.
func (s *Store) Subscribe(fn func()) func() {
	s.listenerMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// notify invokes every registered listener. Called outside s.mu so
// listeners may read the store.
func (s *Store) notify() {
	s.listenerMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
