package claims

import "lockdrop/core/events"

const (
	roleCampaignAdmin = "ROLE_CAMPAIGN_ADMIN"
	moduleName        = "claims"

	// DefaultReservedFloor is the lowest campaign id open to registration.
	// Lower ids belong to collectibles issued before the registry existed.
	DefaultReservedFloor uint8 = 20
	// DefaultMaxViewLength caps the number of ids accepted by batch
	// eligibility queries.
	DefaultMaxViewLength uint32 = 100
)

type claimsState interface {
	HasRole(role string, addr []byte) bool
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	Atomic(fn func() error) error
	Emit(events.Event)
}
