package events

import "github.com/ethereum/go-ethereum/common"

const (
	// TypeRandomnessRequested is emitted when a consumer asks for a random
	// value.
	TypeRandomnessRequested = "randomness.requested"
	// TypeRandomnessFulfilled is emitted when the designated fulfiller
	// delivers the value for a pending request.
	TypeRandomnessFulfilled = "randomness.fulfilled"
	// TypeRandomnessFulfillerUpdated is emitted when the fulfiller identity
	// rotates.
	TypeRandomnessFulfillerUpdated = "randomness.fulfiller.updated"
)

// RandomnessRequested describes a pending request.
type RandomnessRequested struct {
	RequestID common.Hash
	Requester common.Address
	Consumer  string
	Seed      common.Hash
}

// EventType implements the Event interface.
func (RandomnessRequested) EventType() string { return TypeRandomnessRequested }

// RandomnessFulfilled carries the delivered value.
type RandomnessFulfilled struct {
	RequestID common.Hash
	Consumer  string
	Value     common.Hash
}

// EventType implements the Event interface.
func (RandomnessFulfilled) EventType() string { return TypeRandomnessFulfilled }

// RandomnessFulfillerUpdated records a fulfiller rotation.
type RandomnessFulfillerUpdated struct {
	Old common.Address
	New common.Address
}

// EventType implements the Event interface.
func (RandomnessFulfillerUpdated) EventType() string { return TypeRandomnessFulfillerUpdated }
