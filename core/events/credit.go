package events

const (
	// TypeCreditCeilingUpdated is emitted when the credit ceiling duration is
	// replaced.
	TypeCreditCeilingUpdated = "credit.ceiling.updated"
)

// CreditCeilingUpdated captures a ceiling change expressed in seconds.
type CreditCeilingUpdated struct {
	Old uint64
	New uint64
}

// EventType implements the Event interface.
func (CreditCeilingUpdated) EventType() string { return TypeCreditCeilingUpdated }
