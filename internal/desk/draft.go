package desk

import (
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

// Draft collects item edits at the desk before a declaration is submitted.
// Nothing reaches a record until Items is attached in one call.
type Draft struct {
	items types.Manifest
}

// NewDraft starts a draft from an optional initial list.
func NewDraft(items ...types.Item) (*Draft, error) {
	manifest, err := buildManifest(items)
	if err != nil {
		return nil, err
	}
	return &Draft{items: manifest}, nil
}

// Set overwrites the quantity of the item's identity; zero removes it.
func (d *Draft) Set(item types.Item) error {
	return d.items.Set(item)
}

// Increment adds one unit, creating the line when absent.
func (d *Draft) Increment(id types.Identity, kind enums.ItemKind) error {
	return d.items.Adjust(id, kind, 1)
}

// Decrement removes one unit; the line disappears at zero.
func (d *Draft) Decrement(id types.Identity) error {
	kind, ok := d.kindOf(id)
	if !ok {
		return nil
	}
	return d.items.Adjust(id, kind, -1)
}

// Items returns a copy of the current list.
func (d *Draft) Items() types.Manifest {
	return d.items.Clone()
}

func (d *Draft) kindOf(id types.Identity) (enums.ItemKind, bool) {
	id = types.NewIdentity(id.Name, id.Detail)
	for _, item := range d.items {
		if item.Identity() == id {
			return item.Kind, true
		}
	}
	return "", false
}
