package snapshot

import (
	"reflect"
	"testing"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
)

func member(name, addr string) *Snapshot {
	return NewBuilder("id-"+name, name).
		ExternalID("srv-" + name).
		ReferenceID("srv-" + name).
		LastOperation(lifecycle.ActionCreate, lifecycle.StatusComplete).
		Attribute("first_address", addr).
		Build()
}

func brokenMember(name string) *Snapshot {
	return NewBuilder("id-"+name, name).
		LastOperation(lifecycle.ActionCreate, lifecycle.StatusComplete).
		AttributeError("first_address", "address lookup failed").
		Build()
}

func TestCollectionOrderAndLookup(t *testing.T) {
	c := NewCollection(member("web-1", "10.0.0.1"), member("web-2", "10.0.0.2"))

	if c.Len() != 2 {
		t.Errorf("got %d members, want 2", c.Len())
	}
	if got, want := c.Names(), []string{"web-1", "web-2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got names %v, want %v", got, want)
	}
	if _, ok := c.Member("web-2"); !ok {
		t.Error("web-2 missing")
	}
	if _, ok := c.Member("web-9"); ok {
		t.Error("phantom member found")
	}
}

func TestCollectionReplaceIsImmutable(t *testing.T) {
	c := NewCollection(member("web-1", "10.0.0.1"), member("web-2", "10.0.0.2"))
	updated := c.Replace(member("web-2", "10.0.9.9"))

	if v, _ := c.Attribute("web-2", "first_address"); v != "10.0.0.2" {
		t.Errorf("original collection changed: %v", v)
	}
	if v, _ := updated.Attribute("web-2", "first_address"); v != "10.0.9.9" {
		t.Errorf("replacement not applied: %v", v)
	}
	// Replacing preserves order; appending a new member goes last.
	if got, want := updated.Names(), []string{"web-1", "web-2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got names %v, want %v", got, want)
	}
	grown := updated.Replace(member("web-3", "10.0.0.3"))
	if got, want := grown.Names(), []string{"web-1", "web-2", "web-3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got names %v, want %v", got, want)
	}
}

func TestCollectionAttributeValuesIsolatesFailures(t *testing.T) {
	c := NewCollection(
		member("web-1", "10.0.0.1"),
		brokenMember("web-2"),
		member("web-3", "10.0.0.3"),
	)

	values, failures := c.AttributeValues("first_address")
	wantValues := map[string]any{"web-1": "10.0.0.1", "web-3": "10.0.0.3"}
	if !reflect.DeepEqual(values, wantValues) {
		t.Errorf("got values %v, want %v", values, wantValues)
	}
	if len(failures) != 1 || failures["web-2"] == nil {
		t.Errorf("got failures %v, want one for web-2", failures)
	}
}

func TestCollectionReferenceIDs(t *testing.T) {
	c := NewCollection(member("web-1", "10.0.0.1"), member("web-2", "10.0.0.2"))
	want := map[string]string{"web-1": "srv-web-1", "web-2": "srv-web-2"}
	if got := c.ReferenceIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
