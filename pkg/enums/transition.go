package enums

import "fmt"

// Transition names a lifecycle step a station can request on a record.
type Transition string

const (
	TransitionDeclareExit    Transition = "declare_exit"
	TransitionAuthorizeExit  Transition = "authorize_exit"
	TransitionAuthorizeEntry Transition = "authorize_entry"
	TransitionDeclareEntry   Transition = "declare_entry"
)

// TransitionRule is one row of the lifecycle table.
type TransitionRule struct {
	Transition Transition
	From       []TransactionStatus
	To         TransactionStatus
	Slot       ManifestSlot
}

// TransitionTable is the complete lifecycle. Declare exit has no source
// status: it creates the record.
var TransitionTable = []TransitionRule{
	{
		Transition: TransitionDeclareExit,
		To:         TransactionStatusPendingExit,
		Slot:       ManifestSlotDeskOut,
	},
	{
		Transition: TransitionAuthorizeExit,
		From:       []TransactionStatus{TransactionStatusPendingExit},
		To:         TransactionStatusInRoute,
		Slot:       ManifestSlotGateOut,
	},
	{
		Transition: TransitionAuthorizeEntry,
		From:       []TransactionStatus{TransactionStatusInRoute, TransactionStatusPendingEntry},
		To:         TransactionStatusEntryAuthorized,
		Slot:       ManifestSlotGateIn,
	},
	{
		Transition: TransitionDeclareEntry,
		From:       []TransactionStatus{TransactionStatusEntryAuthorized},
		To:         TransactionStatusCompleted,
		Slot:       ManifestSlotDeskIn,
	},
}

// String implements fmt.Stringer.
func (t Transition) String() string {
	return string(t)
}

// IsValid reports whether the transition has a row in TransitionTable.
func (t Transition) IsValid() bool {
	_, ok := t.Rule()
	return ok
}

// Rule returns the table row for the transition.
func (t Transition) Rule() (TransitionRule, bool) {
	for _, rule := range TransitionTable {
		if rule.Transition == t {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// Allows reports whether the transition may fire from the given status.
func (t Transition) Allows(from TransactionStatus) bool {
	rule, ok := t.Rule()
	if !ok {
		return false
	}
	for _, candidate := range rule.From {
		if candidate == from {
			return true
		}
	}
	return false
}

// Apply returns the status the transition leads to from the given status.
func (t Transition) Apply(from TransactionStatus) (TransactionStatus, error) {
	rule, ok := t.Rule()
	if !ok {
		return "", fmt.Errorf("unknown transition %q", t)
	}
	if !t.Allows(from) {
		return "", fmt.Errorf("transition %s not allowed from %s", t, from)
	}
	return rule.To, nil
}

// ParseTransition converts raw input into a Transition.
func ParseTransition(value string) (Transition, error) {
	for _, rule := range TransitionTable {
		if string(rule.Transition) == value {
			return rule.Transition, nil
		}
	}
	return "", fmt.Errorf("invalid transition %q", value)
}
