package randomness

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// Request is a persisted randomness request.
type Request struct {
	ID          [32]byte
	Consumer    string
	Seed        [32]byte
	Requester   [20]byte
	Nonce       uint64
	RequestedAt uint64
	Fulfilled   bool
	Value       [32]byte
}

// Consumer receives fulfilled values. The request is already marked fulfilled
// when OnRandomness runs.
type Consumer interface {
	OnRandomness(requestID [32]byte, value [32]byte) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(requestID [32]byte, value [32]byte) error

func (f ConsumerFunc) OnRandomness(requestID [32]byte, value [32]byte) error {
	return f(requestID, value)
}

// RequestID derives the identifier of the nonce-th request.
func RequestID(seed [32]byte, requester [20]byte, nonce uint64) [32]byte {
	buf := make([]byte, 0, len(seed)+len(requester)+8)
	buf = append(buf, seed[:]...)
	buf = append(buf, requester[:]...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return blake3.Sum256(buf)
}

// FulfillDigest is the message a fulfiller signs when delivering value for
// requestID over an untrusted transport.
func FulfillDigest(requestID [32]byte, value [32]byte) []byte {
	return ethcrypto.Keccak256([]byte("lockdrop/randomness/fulfill"), requestID[:], value[:])
}
