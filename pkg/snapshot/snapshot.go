package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
)

// AttributeError is the deferred failure stored in place of an attribute
// whose capture failed. It is returned only when that specific attribute is
// accessed, never when the snapshot itself is read.
type AttributeError struct {
	// Attribute is the display form of the attribute key.
	Attribute string

	// Message is the capture failure, suitable for direct display.
	Message string
}

// Error implements the error interface.
func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute %s: %s", e.Attribute, e.Message)
}

// attrValue holds either a captured value or a deferred capture failure.
type attrValue struct {
	value any
	err   *AttributeError
}

// pathValue is a path-qualified attribute entry.
type pathValue struct {
	path []string
	attrValue
}

// Snapshot is the immutable capture of one member. Construct with a Builder
// or FromMap; a later completed operation replaces the value wholesale.
type Snapshot struct {
	id          string
	name        string
	externalID  string
	referenceID string
	action      lifecycle.Action
	status      lifecycle.Status
	attrs       map[string]attrValue
	paths       []pathValue
}

// ID returns the member's primary key.
func (s *Snapshot) ID() string { return s.id }

// Name returns the member's declared name.
func (s *Snapshot) Name() string { return s.name }

// ExternalID returns the identity assigned by the external system.
func (s *Snapshot) ExternalID() string { return s.externalID }

// ReferenceID returns the value other resources use to refer to the member.
func (s *Snapshot) ReferenceID() string { return s.referenceID }

// Action returns the last lifecycle action that completed on the member.
func (s *Snapshot) Action() lifecycle.Action { return s.action }

// Status returns the terminal status of the last action.
func (s *Snapshot) Status() lifecycle.Status { return s.status }

// Attribute returns a plain string-keyed attribute. A deferred capture
// failure for the attribute is raised here.
func (s *Snapshot) Attribute(name string) (any, error) {
	av, ok := s.attrs[name]
	if !ok {
		return nil, fmt.Errorf("snapshot of %s has no attribute %s", s.name, name)
	}
	if av.err != nil {
		return nil, av.err
	}
	return av.value, nil
}

// PathAttribute returns a path-qualified attribute, matched on the full
// path. A deferred capture failure for the attribute is raised here.
func (s *Snapshot) PathAttribute(path ...string) (any, error) {
	for _, pv := range s.paths {
		if pathsEqual(pv.path, path) {
			if pv.err != nil {
				return nil, pv.err
			}
			return pv.value, nil
		}
	}
	return nil, fmt.Errorf("snapshot of %s has no attribute %s", s.name, strings.Join(path, "."))
}

// AttributeNames returns the plain attribute names in sorted order.
func (s *Snapshot) AttributeNames() []string {
	names := make([]string, 0, len(s.attrs))
	for name := range s.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pathsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Builder assembles a Snapshot. The built snapshot does not alias the
// builder's state, so a builder may be reused.
type Builder struct {
	s Snapshot
}

// NewBuilder starts a snapshot for the member with the given primary key and
// declared name.
func NewBuilder(id, name string) *Builder {
	return &Builder{s: Snapshot{
		id:     id,
		name:   name,
		action: lifecycle.ActionInit,
		status: lifecycle.StatusComplete,
		attrs:  make(map[string]attrValue),
	}}
}

// ExternalID sets the externally assigned identity.
func (b *Builder) ExternalID(id string) *Builder {
	b.s.externalID = id
	return b
}

// ReferenceID sets the reference identity.
func (b *Builder) ReferenceID(id string) *Builder {
	b.s.referenceID = id
	return b
}

// LastOperation records the action and terminal status the capture follows.
func (b *Builder) LastOperation(action lifecycle.Action, status lifecycle.Status) *Builder {
	b.s.action = action
	b.s.status = status
	return b
}

// Attribute records a captured plain attribute value.
func (b *Builder) Attribute(name string, value any) *Builder {
	b.s.attrs[name] = attrValue{value: value}
	return b
}

// AttributeError records a deferred capture failure for a plain attribute.
func (b *Builder) AttributeError(name, message string) *Builder {
	b.s.attrs[name] = attrValue{err: &AttributeError{Attribute: name, Message: message}}
	return b
}

// PathAttribute records a captured path-qualified attribute value.
func (b *Builder) PathAttribute(path []string, value any) *Builder {
	b.s.paths = append(b.s.paths, pathValue{path: cloneStrings(path), attrValue: attrValue{value: value}})
	return b
}

// PathAttributeError records a deferred capture failure for a path-qualified
// attribute.
func (b *Builder) PathAttributeError(path []string, message string) *Builder {
	b.s.paths = append(b.s.paths, pathValue{
		path:      cloneStrings(path),
		attrValue: attrValue{err: &AttributeError{Attribute: strings.Join(path, "."), Message: message}},
	})
	return b
}

// Build returns the immutable snapshot.
func (b *Builder) Build() *Snapshot {
	out := b.s
	out.attrs = make(map[string]attrValue, len(b.s.attrs))
	for k, v := range b.s.attrs {
		out.attrs[k] = v
	}
	out.paths = make([]pathValue, len(b.s.paths))
	copy(out.paths, b.s.paths)
	return &out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
