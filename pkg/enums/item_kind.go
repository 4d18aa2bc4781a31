package enums

import (
	"fmt"
	"strings"
)

// ItemKind separates durable equipment from consumables on a manifest.
type ItemKind string

const (
	// ItemKindAsset is durable equipment tracked as an in-transit liability.
	ItemKindAsset ItemKind = "ASSET"
	// ItemKindSupply is consumable material that is not tracked outstanding.
	ItemKindSupply ItemKind = "SUPPLY"
)

var validItemKinds = []ItemKind{
	ItemKindAsset,
	ItemKindSupply,
}

// legacy console labels
var itemKindAliases = map[string]ItemKind{
	"ACTIVO":   ItemKindAsset,
	"INSUMO":   ItemKindSupply,
	"ASSETS":   ItemKindAsset,
	"SUPPLIES": ItemKindSupply,
}

// String implements fmt.Stringer.
func (k ItemKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known ItemKind.
func (k ItemKind) IsValid() bool {
	for _, candidate := range validItemKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseItemKind converts raw input into an ItemKind, accepting the console's
// Spanish labels.
func ParseItemKind(value string) (ItemKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validItemKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := itemKindAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid item kind %q", value)
}
