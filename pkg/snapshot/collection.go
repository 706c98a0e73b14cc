package snapshot

import "fmt"

// Collection is an immutable set of member snapshots keyed by member name,
// used for collection-level attribute queries. Replacing a member produces a
// new Collection; existing ones never change.
type Collection struct {
	order   []string
	members map[string]*Snapshot
}

// NewCollection builds a collection from the given snapshots, preserving
// their order. A later snapshot for the same member name wins.
func NewCollection(members ...*Snapshot) *Collection {
	c := &Collection{members: make(map[string]*Snapshot, len(members))}
	for _, s := range members {
		if _, exists := c.members[s.Name()]; !exists {
			c.order = append(c.order, s.Name())
		}
		c.members[s.Name()] = s
	}
	return c
}

// Len returns the number of members.
func (c *Collection) Len() int { return len(c.order) }

// Names returns the member names in collection order.
func (c *Collection) Names() []string {
	return cloneStrings(c.order)
}

// Member returns the snapshot for the named member.
func (c *Collection) Member(name string) (*Snapshot, bool) {
	s, ok := c.members[name]
	return s, ok
}

// Replace returns a new collection with the member's snapshot replaced
// wholesale (or appended, for a new member).
func (c *Collection) Replace(s *Snapshot) *Collection {
	members := make([]*Snapshot, 0, len(c.order)+1)
	replaced := false
	for _, name := range c.order {
		if name == s.Name() {
			members = append(members, s)
			replaced = true
		} else {
			members = append(members, c.members[name])
		}
	}
	if !replaced {
		members = append(members, s)
	}
	return NewCollection(members...)
}

// Attribute returns one member's plain attribute. A deferred capture failure
// surfaces here, scoped to that member.
func (c *Collection) Attribute(member, attr string) (any, error) {
	s, ok := c.members[member]
	if !ok {
		return nil, fmt.Errorf("no snapshot for member %s", member)
	}
	return s.Attribute(attr)
}

// AttributeValues collects a plain attribute across every member. Members
// whose capture failed are reported in the second map, isolated from the
// members that succeeded.
func (c *Collection) AttributeValues(attr string) (map[string]any, map[string]error) {
	values := make(map[string]any)
	failures := make(map[string]error)
	for _, name := range c.order {
		v, err := c.members[name].Attribute(attr)
		if err != nil {
			failures[name] = err
			continue
		}
		values[name] = v
	}
	return values, failures
}

// ReferenceIDs returns each member's reference id keyed by member name.
func (c *Collection) ReferenceIDs() map[string]string {
	refs := make(map[string]string, len(c.order))
	for _, name := range c.order {
		refs[name] = c.members[name].ReferenceID()
	}
	return refs
}
