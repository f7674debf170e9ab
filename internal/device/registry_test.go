package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testDevice() Device {
	return Device{
		ID:   "lamp-1",
		Name: "Living Room Lamp",
		Room: "living",
		Entities: map[string]Entity{
			"main": {
				Properties: map[string]string{
					"state":      "onoff",
					"brightness": "bri",
				},
			},
		},
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry(nil)

	if err := r.Add(testDevice()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := r.Get("lamp-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Living Room Lamp" {
		t.Errorf("Name = %q", got.Name)
	}

	if err := r.Add(testDevice()); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Add() error = %v, want ErrExists", err)
	}
	if _, err := r.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_GetReturnsIsolatedCopy(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Add(testDevice()); err != nil {
		t.Fatal(err)
	}

	first, _ := r.Get("lamp-1")
	first.Entities["main"].Properties["state"] = "tampered"

	second, _ := r.Get("lamp-1")
	if second.Entities["main"].Properties["state"] != "onoff" {
		t.Error("mutation through Get() copy leaked into the registry")
	}
}

func TestRegistry_ApplyState(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Add(testDevice()); err != nil {
		t.Fatal(err)
	}

	// First report: no previous state.
	previous := r.ApplyState("lamp-1", map[string]any{"onoff": "OFF", "bri": float64(0)})
	if previous != nil {
		t.Errorf("first ApplyState() previous = %v, want nil", previous)
	}

	// Second report merges and returns the prior snapshot.
	previous = r.ApplyState("lamp-1", map[string]any{"onoff": "ON"})
	if previous["onoff"] != "OFF" {
		t.Errorf("previous[onoff] = %v, want OFF", previous["onoff"])
	}

	state, ok := r.StateOf("lamp-1")
	if !ok {
		t.Fatal("StateOf() reported no state")
	}
	if state["onoff"] != "ON" {
		t.Errorf("state[onoff] = %v, want ON", state["onoff"])
	}
	if state["bri"] != float64(0) {
		t.Errorf("state[bri] = %v, unmentioned keys must survive the merge", state["bri"])
	}
}

func TestRegistry_ApplyStateUndeclaredDevice(t *testing.T) {
	r := NewRegistry(nil)

	// Input-only hardware can report without a definition entry.
	previous := r.ApplyState("button-7", map[string]any{"action": "single"})
	if previous != nil {
		t.Errorf("previous = %v, want nil", previous)
	}

	state, ok := r.StateOf("button-7")
	if !ok || state["action"] != "single" {
		t.Errorf("StateOf() = %v, %v", state, ok)
	}
}

func TestRegistry_StateOfUnknown(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Add(testDevice()); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.StateOf("ghost"); ok {
		t.Error("StateOf(ghost) = true, want false")
	}
	// Known device with no report yet.
	if _, ok := r.StateOf("lamp-1"); ok {
		t.Error("StateOf(unreported) = true, want false")
	}
}

func TestRegistry_ResolveWireProperty(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Add(testDevice()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		device    string
		entity    string
		canonical string
		want      string
		wantErr   error
	}{
		{"resolves", "lamp-1", "main", "state", "onoff", nil},
		{"resolves second property", "lamp-1", "main", "brightness", "bri", nil},
		{"unknown device", "ghost", "main", "state", "", ErrNotFound},
		{"unknown entity", "lamp-1", "aux", "state", "", ErrUnknownEntity},
		{"unknown property", "lamp-1", "main", "hue", "", ErrUnknownProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveWireProperty(tt.device, tt.entity, tt.canonical)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("wire = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	content := `
devices:
  - id: lamp-1
    name: Living Room Lamp
    room: living
    entities:
      main:
        properties:
          state: onoff
          brightness: bri
  - id: button-1
    name: Hall Button
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil)
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if got := len(r.List()); got != 2 {
		t.Fatalf("List() = %d devices, want 2", got)
	}
	wire, err := r.ResolveWireProperty("lamp-1", "main", "state")
	if err != nil || wire != "onoff" {
		t.Errorf("ResolveWireProperty() = %q, %v", wire, err)
	}

	// Entity-less devices load fine.
	if _, err := r.Get("button-1"); err != nil {
		t.Errorf("Get(button-1) error = %v", err)
	}
}

func TestRegistry_LoadFilePreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	content := "devices:\n  - id: lamp-1\n    name: Lamp\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil)
	if err := r.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	r.ApplyState("lamp-1", map[string]any{"onoff": "ON"})

	// Reload keeps the live state for surviving devices.
	if err := r.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	state, ok := r.StateOf("lamp-1")
	if !ok || state["onoff"] != "ON" {
		t.Errorf("state after reload = %v, %v, want preserved", state, ok)
	}
}

func TestRegistry_LoadFileErrors(t *testing.T) {
	r := NewRegistry(nil)

	if err := r.LoadFile("/nonexistent/devices.yaml"); err == nil {
		t.Error("LoadFile(missing) error = nil")
	}

	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte("devices:\n  - name: no id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadFile(path); err == nil {
		t.Error("LoadFile(device without id) error = nil")
	}
}
