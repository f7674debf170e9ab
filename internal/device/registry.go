package device

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Logger defines the logging interface used by the Registry.
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

// deviceFile is the YAML document listing device definitions.
type deviceFile struct {
	Devices []Device `yaml:"devices"`
}

// Registry holds the device definitions and their live state cache.
//
// It also performs entity resolution: mapping a canonical property name
// to a device-specific wire property, which the automation engine uses
// for trigger matching, condition evaluation and command payloads.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Returned devices and state maps are deep copies; mutations do not
//     leak back into the registry.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		devices: make(map[string]Device),
		logger:  logger,
	}
}

// LoadFile replaces the registry's device definitions with those in the
// YAML file at path. Live state for devices that survive the reload is
// preserved.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading devices file: %w", err)
	}

	var doc deviceFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing devices file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]Device, len(doc.Devices))
	for _, d := range doc.Devices {
		if d.ID == "" {
			return fmt.Errorf("devices file: device without id")
		}
		if _, dup := next[d.ID]; dup {
			return fmt.Errorf("devices file: duplicate device id %q", d.ID)
		}
		if existing, ok := r.devices[d.ID]; ok {
			d.State = existing.State
		}
		next[d.ID] = d.DeepCopy()
	}
	r.devices = next

	r.logger.Info("devices loaded", "count", len(next), "path", path)
	return nil
}

// Get returns a deep copy of the device with the given ID.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.DeepCopy(), nil
}

// List returns deep copies of every device.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.DeepCopy())
	}
	return out
}

// Add registers a device. The ID must be unique.
func (r *Registry) Add(d Device) error {
	if d.ID == "" {
		return fmt.Errorf("device: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrExists, d.ID)
	}
	r.devices[d.ID] = d.DeepCopy()
	return nil
}

// ApplyState merges a newly reported wire state into the device's cache
// and returns a copy of the state held before the merge (nil when none
// was known). Unknown devices are recorded on the fly so input-only
// hardware works without a definition entry.
func (r *Registry) ApplyState(id string, state map[string]any) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		r.logger.Debug("state for undeclared device", "device", id)
		d = Device{ID: id}
	}

	previous := deepCopyMap(d.State)
	if d.State == nil {
		d.State = make(map[string]any, len(state))
	}
	for k, v := range state {
		d.State[k] = deepCopyValue(v)
	}
	r.devices[id] = d

	return previous
}

// StateOf returns a copy of the device's live state. The second return
// is false when the device is unknown or has reported nothing yet.
func (r *Registry) StateOf(id string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok || d.State == nil {
		return nil, false
	}
	return deepCopyMap(d.State), true
}

// ResolveWireProperty maps a canonical property name on an entity to
// the device-specific wire property name.
func (r *Registry) ResolveWireProperty(deviceID, entityKey, canonical string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, deviceID)
	}
	e, ok := d.Entities[entityKey]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrUnknownEntity, entityKey, deviceID)
	}
	wire, ok := e.Properties[canonical]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s/%s", ErrUnknownProperty, canonical, deviceID, entityKey)
	}
	return wire, nil
}
