package snapshot

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
)

// Mapping keys of the persisted plain form.
const (
	keyID          = "id"
	keyName        = "name"
	keyExternalID  = "external_id"
	keyReferenceID = "reference_id"
	keyAction      = "action"
	keyStatus      = "status"
	keyAttrs       = "attributes"
	keyPathAttrs   = "path_attributes"
	keyPath        = "path"
	keyValue       = "value"

	// deferredErrorKey marks an attribute stored as a capture failure. The
	// key is reserved: an attribute value that is itself a one-key map under
	// this key decodes as a deferred failure, not as a value.
	deferredErrorKey = "__deferred_error__"
)

// AsMap exports the snapshot to its plain-mapping form, the only state the
// core persists. FromMap is its exact inverse.
func (s *Snapshot) AsMap() map[string]any {
	attrs := make(map[string]any, len(s.attrs))
	for name, av := range s.attrs {
		attrs[name] = encodeValue(av)
	}

	paths := make([]any, 0, len(s.paths))
	for _, pv := range s.paths {
		entry := map[string]any{keyPath: encodePath(pv.path)}
		if pv.err != nil {
			entry[deferredErrorKey] = pv.err.Message
		} else {
			entry[keyValue] = pv.value
		}
		paths = append(paths, entry)
	}

	return map[string]any{
		keyID:          s.id,
		keyName:        s.name,
		keyExternalID:  s.externalID,
		keyReferenceID: s.referenceID,
		keyAction:      string(s.action),
		keyStatus:      string(s.status),
		keyAttrs:       attrs,
		keyPathAttrs:   paths,
	}
}

// FromMap reconstructs a snapshot from its plain-mapping form.
func FromMap(m map[string]any) (*Snapshot, error) {
	id, err := stringField(m, keyID)
	if err != nil {
		return nil, err
	}
	name, err := stringField(m, keyName)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(id, name)
	if v, _ := stringField(m, keyExternalID); v != "" {
		b.ExternalID(v)
	}
	if v, _ := stringField(m, keyReferenceID); v != "" {
		b.ReferenceID(v)
	}

	action, _ := stringField(m, keyAction)
	status, _ := stringField(m, keyStatus)
	b.LastOperation(lifecycle.Action(action), lifecycle.Status(status))

	if raw, ok := m[keyAttrs]; ok {
		attrs, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("snapshot mapping: %s is not a mapping", keyAttrs)
		}
		for attrName, v := range attrs {
			if msg, deferred := decodeDeferred(v); deferred {
				b.AttributeError(attrName, msg)
			} else {
				b.Attribute(attrName, v)
			}
		}
	}

	if raw, ok := m[keyPathAttrs]; ok {
		entries, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("snapshot mapping: %s is not a list", keyPathAttrs)
		}
		for _, rawEntry := range entries {
			entry, ok := rawEntry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("snapshot mapping: path attribute entry is not a mapping")
			}
			path, err := decodePath(entry[keyPath])
			if err != nil {
				return nil, err
			}
			if msg, deferred := entry[deferredErrorKey]; deferred {
				b.PathAttributeError(path, fmt.Sprintf("%v", msg))
			} else {
				b.PathAttribute(path, entry[keyValue])
			}
		}
	}

	return b.Build(), nil
}

// Equal reports whether two snapshots carry identical state, including
// deferred attribute failures.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return reflect.DeepEqual(s.AsMap(), other.AsMap())
}

func encodeValue(av attrValue) any {
	if av.err != nil {
		return map[string]any{deferredErrorKey: av.err.Message}
	}
	return av.value
}

func decodeDeferred(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	msg, ok := m[deferredErrorKey]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%v", msg), true
}

// encodePath stores path segments as []any so the mapping survives a JSON
// round trip unchanged.
func encodePath(path []string) []any {
	out := make([]any, len(path))
	for i, seg := range path {
		out[i] = seg
	}
	return out
}

func decodePath(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return cloneStrings(v), nil
	case []any:
		out := make([]string, len(v))
		for i, seg := range v {
			s, ok := seg.(string)
			if !ok {
				return nil, fmt.Errorf("snapshot mapping: path segment %v is not a string", seg)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("snapshot mapping: invalid path %v", raw)
	}
}

func stringField(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", fmt.Errorf("snapshot mapping: missing %s", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("snapshot mapping: %s is not a string", key)
	}
	if key == keyID || key == keyName {
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("snapshot mapping: %s is empty", key)
		}
	}
	return s, nil
}
