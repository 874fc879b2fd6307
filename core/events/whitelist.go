package events

const (
	// TypeRestrictionsAdded is emitted when a batch of asset categories is
	// barred from listing.
	TypeRestrictionsAdded = "whitelist.restrictions.added"
	// TypeRestrictionsRemoved is emitted when a batch of asset categories is
	// allowed again.
	TypeRestrictionsRemoved = "whitelist.restrictions.removed"
)

// RestrictionsAdded lists the categories restricted by a single batch.
type RestrictionsAdded struct {
	Categories []uint8
}

// EventType implements the Event interface.
func (RestrictionsAdded) EventType() string { return TypeRestrictionsAdded }

// RestrictionsRemoved lists the categories released by a single batch.
type RestrictionsRemoved struct {
	Categories []uint8
}

// EventType implements the Event interface.
func (RestrictionsRemoved) EventType() string { return TypeRestrictionsRemoved }
