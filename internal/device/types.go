package device

// Device describes one piece of hardware on the bus: its controllable
// entities and the live state it last reported.
type Device struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// Room is a free-form location label for the UI.
	Room string `json:"room,omitempty" yaml:"room,omitempty"`

	// Entities maps an entity key (e.g. "main", "socket_2") to its
	// property mapping. Input-only devices may have none.
	Entities map[string]Entity `json:"entities,omitempty" yaml:"entities,omitempty"`

	// State is the last reported wire-property map. Engine-managed;
	// not part of the device definition file.
	State map[string]any `json:"state,omitempty" yaml:"-"`
}

// Entity is one named controllable unit on a device.
type Entity struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Properties maps canonical property names ("state", "brightness")
	// to the wire property names the transport uses ("onoff", "bri").
	Properties map[string]string `json:"properties" yaml:"properties"`
}

// DeepCopy returns an independent copy of the device.
func (d Device) DeepCopy() Device {
	out := d
	if d.Entities != nil {
		out.Entities = make(map[string]Entity, len(d.Entities))
		for k, e := range d.Entities {
			out.Entities[k] = e.DeepCopy()
		}
	}
	out.State = deepCopyMap(d.State)
	return out
}

// DeepCopy returns an independent copy of the entity.
func (e Entity) DeepCopy() Entity {
	out := e
	if e.Properties != nil {
		out.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

// deepCopyMap recursively copies a state map.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}
