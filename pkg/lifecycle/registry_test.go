package lifecycle

import (
	"reflect"
	"testing"
)

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("compute.server", func() (Handler, error) {
		return &fakeHandler{pollsNeeded: 1}, nil
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	h, err := r.Handler("compute.server")
	if err != nil {
		t.Fatalf("handler lookup failed: %v", err)
	}
	if _, ok := h.(*fakeHandler); !ok {
		t.Errorf("got %T, want *fakeHandler", h)
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	ctor := func() (Handler, error) { return &fakeHandler{}, nil }

	if err := r.Register("compute.server", ctor); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register("compute.server", ctor); err == nil {
		t.Error("expected error registering a duplicate type")
	}
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", func() (Handler, error) { return &fakeHandler{}, nil }); err == nil {
		t.Error("expected error for empty type name")
	}
	if err := r.Register("compute.server", nil); err == nil {
		t.Error("expected error for nil constructor")
	}
}

func TestRegistryUnknownType(t *testing.T) {
	if _, err := NewRegistry().Handler("network.router"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestRegistryTypesSorted(t *testing.T) {
	r := NewRegistry()
	ctor := func() (Handler, error) { return &fakeHandler{}, nil }
	for _, name := range []string{"network.router", "compute.server", "storage.volume"} {
		if err := r.Register(name, ctor); err != nil {
			t.Fatalf("register %s failed: %v", name, err)
		}
	}

	want := []string{"compute.server", "network.router", "storage.volume"}
	if got := r.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
