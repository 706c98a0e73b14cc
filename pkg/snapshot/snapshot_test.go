package snapshot

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
)

func testSnapshot() *Snapshot {
	return NewBuilder("a1b2", "web-1").
		ExternalID("srv-42").
		ReferenceID("srv-42").
		LastOperation(lifecycle.ActionCreate, lifecycle.StatusComplete).
		Attribute("first_address", "10.0.0.4").
		Attribute("flavor", "m1.small").
		AttributeError("console_url", "console service unavailable").
		PathAttribute([]string{"networks", "private", "0"}, "192.168.0.12").
		PathAttributeError([]string{"metadata", "owner"}, "metadata service timed out").
		Build()
}

func TestSnapshotAccessors(t *testing.T) {
	s := testSnapshot()

	if s.ID() != "a1b2" || s.Name() != "web-1" {
		t.Errorf("got identity %q/%q, want a1b2/web-1", s.ID(), s.Name())
	}
	if s.ExternalID() != "srv-42" || s.ReferenceID() != "srv-42" {
		t.Errorf("got ids %q/%q, want srv-42/srv-42", s.ExternalID(), s.ReferenceID())
	}
	if s.Action() != lifecycle.ActionCreate || s.Status() != lifecycle.StatusComplete {
		t.Errorf("got (%s, %s), want (CREATE, COMPLETE)", s.Action(), s.Status())
	}

	v, err := s.Attribute("first_address")
	if err != nil || v != "10.0.0.4" {
		t.Errorf("got %v/%v, want 10.0.0.4", v, err)
	}
	v, err = s.PathAttribute("networks", "private", "0")
	if err != nil || v != "192.168.0.12" {
		t.Errorf("got %v/%v, want 192.168.0.12", v, err)
	}

	want := []string{"console_url", "first_address", "flavor"}
	if got := s.AttributeNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("got names %v, want %v", got, want)
	}
}

func TestSnapshotDeferredErrorRaisedOnAccess(t *testing.T) {
	// Building and reading around a failed capture never raises; only
	// touching the failed attribute does.
	s := testSnapshot()

	if _, err := s.Attribute("flavor"); err != nil {
		t.Fatalf("healthy attribute raised: %v", err)
	}

	_, err := s.Attribute("console_url")
	if err == nil {
		t.Fatal("expected the deferred failure")
	}
	var ae *AttributeError
	if !errors.As(err, &ae) || ae.Attribute != "console_url" {
		t.Errorf("got %v, want AttributeError for console_url", err)
	}
	if !strings.Contains(err.Error(), "console service unavailable") {
		t.Errorf("message lost the capture failure: %q", err.Error())
	}

	if _, err := s.PathAttribute("metadata", "owner"); err == nil {
		t.Error("expected the deferred path failure")
	}
}

func TestSnapshotUnknownAttribute(t *testing.T) {
	s := testSnapshot()
	if _, err := s.Attribute("missing"); err == nil {
		t.Error("expected error for unknown attribute")
	}
	if _, err := s.PathAttribute("networks", "public"); err == nil {
		t.Error("expected error for unknown path")
	}
}

func TestBuilderDoesNotAliasBuilt(t *testing.T) {
	b := NewBuilder("a1b2", "web-1").Attribute("flavor", "m1.small")
	first := b.Build()
	b.Attribute("flavor", "m1.large").Attribute("image", "jammy")
	second := b.Build()

	if v, _ := first.Attribute("flavor"); v != "m1.small" {
		t.Errorf("earlier build mutated: flavor=%v", v)
	}
	if _, err := first.Attribute("image"); err == nil {
		t.Error("earlier build grew an attribute")
	}
	if v, _ := second.Attribute("flavor"); v != "m1.large" {
		t.Errorf("later build missed the change: flavor=%v", v)
	}
}

func TestMapRoundTrip(t *testing.T) {
	s := testSnapshot()

	restored, err := FromMap(s.AsMap())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !s.Equal(restored) {
		t.Errorf("round trip changed the snapshot:\n  got  %+v\n  want %+v", restored.AsMap(), s.AsMap())
	}

	// The deferred failure survives the trip.
	if _, err := restored.Attribute("console_url"); err == nil {
		t.Error("deferred failure lost in round trip")
	}
	if _, err := restored.PathAttribute("metadata", "owner"); err == nil {
		t.Error("deferred path failure lost in round trip")
	}
}

func TestMapRoundTripThroughJSON(t *testing.T) {
	s := testSnapshot()

	data, err := json.Marshal(s.AsMap())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	restored, err := FromMap(m)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !s.Equal(restored) {
		t.Error("JSON round trip changed the snapshot")
	}
}

func TestDeferredKeyIsReserved(t *testing.T) {
	// A value shaped exactly like the deferred-failure encoding decodes as
	// a deferred failure, not as a plain value.
	s := NewBuilder("a1b2", "web-1").
		Attribute("weird", map[string]any{"__deferred_error__": "not really"}).
		Build()

	restored, err := FromMap(s.AsMap())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if _, err := restored.Attribute("weird"); err == nil {
		t.Error("reserved-key value decoded as a plain value")
	}
}

func TestFromMapRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		m    map[string]any
	}{
		{"missing id", map[string]any{"name": "web-1"}},
		{"missing name", map[string]any{"id": "a1b2"}},
		{"blank name", map[string]any{"id": "a1b2", "name": "  "}},
		{"bad attrs", map[string]any{"id": "a1b2", "name": "web-1", "attributes": "nope"}},
		{"bad paths", map[string]any{"id": "a1b2", "name": "web-1", "path_attributes": "nope"}},
		{"bad path segment", map[string]any{
			"id": "a1b2", "name": "web-1",
			"path_attributes": []any{map[string]any{"path": []any{42}, "value": "x"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromMap(tt.m); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := testSnapshot()
	b := testSnapshot()
	if !a.Equal(b) {
		t.Error("identical snapshots compare unequal")
	}

	c := NewBuilder("a1b2", "web-1").
		ExternalID("srv-42").
		ReferenceID("srv-42").
		LastOperation(lifecycle.ActionCreate, lifecycle.StatusComplete).
		Attribute("first_address", "10.0.0.9").
		Build()
	if a.Equal(c) {
		t.Error("different snapshots compare equal")
	}
	if a.Equal(nil) {
		t.Error("nil compares equal")
	}
}
