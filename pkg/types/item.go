package types

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/yardgate-backend/pkg/enums"
)

// Item is one cargo line on a manifest.
type Item struct {
	Name     string         `json:"name"`
	Quantity int            `json:"quantity"`
	Kind     enums.ItemKind `json:"kind"`
	Detail   string         `json:"detail,omitempty"`
}

// Asset builds a durable-equipment line.
func Asset(name string, quantity int, detail string) Item {
	return Item{Name: name, Quantity: quantity, Kind: enums.ItemKindAsset, Detail: detail}
}

// Supply builds a consumable line.
func Supply(name string, quantity int, detail string) Item {
	return Item{Name: name, Quantity: quantity, Kind: enums.ItemKindSupply, Detail: detail}
}

// Identity returns the (name, detail) pair that identifies the item within a
// manifest.
func (i Item) Identity() Identity {
	return NewIdentity(i.Name, i.Detail)
}

// IsAsset reports whether the line is durable equipment.
func (i Item) IsAsset() bool {
	return i.Kind == enums.ItemKindAsset
}

// Validate checks the line in isolation.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("item name is required")
	}
	if i.Quantity < 0 {
		return fmt.Errorf("item %s: quantity must be >= 0 (got %d)", i.Identity(), i.Quantity)
	}
	if !i.Kind.IsValid() {
		return fmt.Errorf("item %s: invalid kind %q", i.Identity(), i.Kind)
	}
	return nil
}

// Identity keys an item within a manifest. Two lines with the same name but
// different detail (e.g. a regulator's pressure range) are different items.
type Identity struct {
	Name   string
	Detail string
}

func NewIdentity(name, detail string) Identity {
	return Identity{Name: strings.TrimSpace(name), Detail: strings.TrimSpace(detail)}
}

func (id Identity) String() string {
	if id.Detail == "" {
		return id.Name
	}
	return fmt.Sprintf("%s (%s)", id.Name, id.Detail)
}

// MarshalText lets identities key JSON objects.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
