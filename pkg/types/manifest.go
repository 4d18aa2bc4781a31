package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/yardgate-backend/pkg/enums"
)

// Manifest is an ordered item list. Each identity appears at most once; a
// write to an existing identity replaces its quantity in place and a
// quantity of zero removes the line.
type Manifest []Item

// NewManifest builds a manifest by applying Set for every item in order.
// All invalid lines are reported together.
func NewManifest(items ...Item) (Manifest, error) {
	m := make(Manifest, 0, len(items))
	var errs error
	for _, item := range items {
		errs = multierr.Append(errs, m.Set(item))
	}
	if errs != nil {
		return nil, errs
	}
	return m, nil
}

// Set writes the item's quantity for its identity.
func (m *Manifest) Set(item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	id := item.Identity()
	idx := m.indexOf(id)
	if idx < 0 {
		if item.Quantity == 0 {
			return nil
		}
		item.Name, item.Detail = id.Name, id.Detail
		*m = append(*m, item)
		return nil
	}
	current := (*m)[idx]
	if current.Kind != item.Kind {
		return fmt.Errorf("item %s: declared as %s, cannot change to %s", id, current.Kind, item.Kind)
	}
	if item.Quantity == 0 {
		m.removeAt(idx)
		return nil
	}
	(*m)[idx].Quantity = item.Quantity
	return nil
}

// Adjust moves the quantity for an identity by delta. Reaching zero or below
// removes the line; a new identity needs a positive delta.
func (m *Manifest) Adjust(id Identity, kind enums.ItemKind, delta int) error {
	id = NewIdentity(id.Name, id.Detail)
	idx := m.indexOf(id)
	if idx < 0 {
		if delta <= 0 {
			return nil
		}
		return m.Set(Item{Name: id.Name, Detail: id.Detail, Kind: kind, Quantity: delta})
	}
	current := (*m)[idx]
	if current.Kind != kind {
		return fmt.Errorf("item %s: declared as %s, cannot change to %s", id, current.Kind, kind)
	}
	next := current.Quantity + delta
	if next <= 0 {
		m.removeAt(idx)
		return nil
	}
	(*m)[idx].Quantity = next
	return nil
}

// Quantity returns the quantity for an identity, zero when absent.
func (m Manifest) Quantity(id Identity) int {
	if idx := m.indexOf(NewIdentity(id.Name, id.Detail)); idx >= 0 {
		return m[idx].Quantity
	}
	return 0
}

// Total sums every line.
func (m Manifest) Total() int {
	total := 0
	for _, item := range m {
		total += item.Quantity
	}
	return total
}

// TotalByKind sums the lines of one kind.
func (m Manifest) TotalByKind(kind enums.ItemKind) int {
	total := 0
	for _, item := range m {
		if item.Kind == kind {
			total += item.Quantity
		}
	}
	return total
}

// Identities lists identities in manifest order.
func (m Manifest) Identities() []Identity {
	ids := make([]Identity, 0, len(m))
	for _, item := range m {
		ids = append(ids, item.Identity())
	}
	return ids
}

// Clone returns a copy that shares no backing array with m.
func (m Manifest) Clone() Manifest {
	if m == nil {
		return Manifest{}
	}
	out := make(Manifest, len(m))
	copy(out, m)
	return out
}

func (m Manifest) indexOf(id Identity) int {
	for i, item := range m {
		if item.Identity() == id {
			return i
		}
	}
	return -1
}

func (m *Manifest) removeAt(idx int) {
	*m = append((*m)[:idx], (*m)[idx+1:]...)
}

// Value stores the manifest as a JSON array.
func (m Manifest) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Item(m))
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal: %w", err)
	}
	return string(b), nil
}

// Scan decodes a JSON array column.
func (m *Manifest) Scan(value interface{}) error {
	if value == nil {
		*m = Manifest{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("manifest: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*m = Manifest{}
		return nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("manifest: unmarshal: %w", err)
	}
	*m = Manifest(items)
	return nil
}
