package roles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Optional is a JSON field that remembers whether it was present in the payload
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a present optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// UnmarshalJSON marks the field present. An explicit null is rejected.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("null is not a valid value")
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

// RolePatch is the body of PATCH /api/roles/{id}. Omitted fields keep their value.
type RolePatch struct {
	Name Optional[string] `json:"name"`
}

// Validate checks the fields that are present
func (p RolePatch) Validate() error {
	if p.Name.Set && strings.TrimSpace(p.Name.Value) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalid)
	}
	return nil
}

// Apply merges the present fields into role and reports whether anything changed
func (p RolePatch) Apply(role *Role) bool {
	changed := false
	if p.Name.Set {
		name := strings.TrimSpace(p.Name.Value)
		if name != role.Name {
			role.Name = name
			changed = true
		}
	}
	return changed
}
