package enums

import "fmt"

// TransactionStatus tracks where a vehicle is in its exit/return cycle.
type TransactionStatus string

const (
	TransactionStatusPendingExit TransactionStatus = "PENDING_EXIT"
	// TransactionStatusExitAuthorized is recognised on input but no
	// transition produces or accepts it. Exit authorization moves a record
	// straight to IN_ROUTE.
	TransactionStatusExitAuthorized  TransactionStatus = "EXIT_AUTHORIZED"
	TransactionStatusInRoute         TransactionStatus = "IN_ROUTE"
	TransactionStatusPendingEntry    TransactionStatus = "PENDING_ENTRY"
	TransactionStatusEntryAuthorized TransactionStatus = "ENTRY_AUTHORIZED"
	TransactionStatusCompleted       TransactionStatus = "COMPLETED"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPendingExit,
	TransactionStatusExitAuthorized,
	TransactionStatusInRoute,
	TransactionStatusPendingEntry,
	TransactionStatusEntryAuthorized,
	TransactionStatusCompleted,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether a cycle in this status still blocks its plate.
func (s TransactionStatus) IsOpen() bool {
	return s.IsValid() && s != TransactionStatusCompleted
}

// IsAway reports whether the vehicle has left and not yet been re-admitted.
func (s TransactionStatus) IsAway() bool {
	return s == TransactionStatusInRoute || s == TransactionStatusPendingEntry
}

// Rank orders statuses along the cycle. PENDING_ENTRY shares IN_ROUTE's
// rank because both mean the vehicle is away.
func (s TransactionStatus) Rank() int {
	switch s {
	case TransactionStatusPendingExit:
		return 0
	case TransactionStatusExitAuthorized:
		return 1
	case TransactionStatusInRoute, TransactionStatusPendingEntry:
		return 2
	case TransactionStatusEntryAuthorized:
		return 3
	case TransactionStatusCompleted:
		return 4
	}
	return -1
}

// NextSlot returns the single manifest slot writable in this status.
func (s TransactionStatus) NextSlot() ManifestSlot {
	switch s {
	case TransactionStatusPendingExit:
		return ManifestSlotGateOut
	case TransactionStatusInRoute, TransactionStatusPendingEntry:
		return ManifestSlotGateIn
	case TransactionStatusEntryAuthorized:
		return ManifestSlotDeskIn
	}
	return ManifestSlotNone
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// ManifestSlot names one of the four item lists on a transaction record.
type ManifestSlot string

const (
	ManifestSlotNone    ManifestSlot = ""
	ManifestSlotDeskOut ManifestSlot = "desk_out"
	ManifestSlotGateOut ManifestSlot = "gate_out"
	ManifestSlotGateIn  ManifestSlot = "gate_in"
	ManifestSlotDeskIn  ManifestSlot = "desk_in"
)
