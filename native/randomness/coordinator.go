package randomness

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lockdrop/core/events"
	nativecommon "lockdrop/native/common"
)

const (
	roleRandomnessAdmin = "ROLE_RANDOMNESS_ADMIN"
	moduleName          = "randomness"
)

var (
	requestPrefix = []byte("randomness/request/")
	nonceKey      = []byte("randomness/nonce")
	fulfillerKey  = []byte("randomness/fulfiller")
	quotaPrefix   = []byte("randomness/quota/")
)

func requestKey(id [32]byte) []byte {
	key := make([]byte, len(requestPrefix)+len(id))
	copy(key, requestPrefix)
	copy(key[len(requestPrefix):], id[:])
	return key
}

func quotaKey(requester [20]byte) []byte {
	key := make([]byte, len(quotaPrefix)+len(requester))
	copy(key, quotaPrefix)
	copy(key[len(quotaPrefix):], requester[:])
	return key
}

type coordinatorState interface {
	HasRole(role string, addr []byte) bool
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
	Emit(events.Event)
}

// Coordinator issues randomness requests and accepts their fulfilment from a
// single designated fulfiller.
type Coordinator struct {
	st     coordinatorState
	pauses nativecommon.PauseView
	clock  func() time.Time
	quota  nativecommon.Quota

	mu        sync.RWMutex
	consumers map[string]Consumer
}

func NewCoordinator(st coordinatorState) *Coordinator {
	return &Coordinator{st: st, clock: time.Now, consumers: make(map[string]Consumer)}
}

func (c *Coordinator) SetPauses(p nativecommon.PauseView) {
	if c == nil {
		return
	}
	c.pauses = p
}

// SetClock overrides the time source, primarily for deterministic tests.
func (c *Coordinator) SetClock(clock func() time.Time) {
	if c == nil || clock == nil {
		return
	}
	c.clock = clock
}

// SetQuota bounds the number of requests each requester may open per epoch.
func (c *Coordinator) SetQuota(q nativecommon.Quota) {
	if c == nil {
		return
	}
	c.quota = q
}

// RegisterConsumer makes name available as a request target.
func (c *Coordinator) RegisterConsumer(name string, consumer Consumer) {
	name = strings.TrimSpace(name)
	if name == "" || consumer == nil {
		return
	}
	c.mu.Lock()
	c.consumers[name] = consumer
	c.mu.Unlock()
}

func (c *Coordinator) consumer(name string) (Consumer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	consumer, ok := c.consumers[name]
	return consumer, ok
}

// InitGenesis stores the initial fulfiller when none is configured.
func (c *Coordinator) InitGenesis(fulfiller [20]byte) error {
	if fulfiller == ([20]byte{}) {
		return nil
	}
	return c.st.Atomic(func() error {
		var existing [20]byte
		found, err := c.st.KVGet(fulfillerKey, &existing)
		if err != nil || found {
			return err
		}
		return c.st.KVPut(fulfillerKey, fulfiller)
	})
}

// Fulfiller returns the designated fulfiller.
func (c *Coordinator) Fulfiller() ([20]byte, bool, error) {
	var fulfiller [20]byte
	ok, err := c.st.KVGet(fulfillerKey, &fulfiller)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return fulfiller, fulfiller != ([20]byte{}), nil
}

// SetFulfiller rotates the designated fulfiller.
func (c *Coordinator) SetFulfiller(caller [20]byte, fulfiller [20]byte) error {
	if err := nativecommon.Guard(c.pauses, moduleName); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(c.st, roleRandomnessAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	if fulfiller == ([20]byte{}) {
		return ErrInvalidAddress
	}
	return c.st.Atomic(func() error {
		previous, _, err := c.Fulfiller()
		if err != nil {
			return err
		}
		if err := c.st.KVPut(fulfillerKey, fulfiller); err != nil {
			return err
		}
		c.st.Emit(events.RandomnessFulfillerUpdated{Old: common.Address(previous), New: common.Address(fulfiller)})
		return nil
	})
}

// Request records a pending request for consumer and returns its id. The
// call returns immediately; the value is delivered later through Fulfill.
func (c *Coordinator) Request(requester [20]byte, consumer string, seed [32]byte) ([32]byte, error) {
	if err := nativecommon.Guard(c.pauses, moduleName); err != nil {
		return [32]byte{}, err
	}
	if requester == ([20]byte{}) {
		return [32]byte{}, ErrInvalidAddress
	}
	consumer = strings.TrimSpace(consumer)
	if _, ok := c.consumer(consumer); !ok {
		return [32]byte{}, fmt.Errorf("%w: %q", ErrUnknownConsumer, consumer)
	}
	var id [32]byte
	err := c.st.Atomic(func() error {
		var nonce uint64
		if _, err := c.st.KVGet(nonceKey, &nonce); err != nil {
			return err
		}
		if err := c.chargeQuota(requester); err != nil {
			return err
		}
		id = RequestID(seed, requester, nonce)
		req := Request{
			ID:          id,
			Consumer:    consumer,
			Seed:        seed,
			Requester:   requester,
			Nonce:       nonce,
			RequestedAt: uint64(c.clock().Unix()),
		}
		if err := c.st.KVPut(requestKey(id), req); err != nil {
			return err
		}
		if err := c.st.KVPut(nonceKey, nonce+1); err != nil {
			return err
		}
		c.st.Emit(events.RandomnessRequested{
			RequestID: common.Hash(id),
			Requester: common.Address(requester),
			Consumer:  consumer,
			Seed:      common.Hash(seed),
		})
		return nil
	})
	if err != nil {
		return [32]byte{}, err
	}
	return id, nil
}

func (c *Coordinator) chargeQuota(requester [20]byte) error {
	if !c.quota.Enabled() {
		return nil
	}
	var prev nativecommon.QuotaNow
	if _, err := c.st.KVGet(quotaKey(requester), &prev); err != nil {
		return err
	}
	next, err := nativecommon.CheckQuota(c.quota, c.quota.Epoch(uint64(c.clock().Unix())), prev, 1)
	if err != nil {
		return fmt.Errorf("randomness: %w", err)
	}
	return c.st.KVPut(quotaKey(requester), next)
}

// Lookup returns the stored request.
func (c *Coordinator) Lookup(id [32]byte) (*Request, bool, error) {
	req := new(Request)
	ok, err := c.st.KVGet(requestKey(id), req)
	if err != nil || !ok {
		return nil, false, err
	}
	return req, true, nil
}

// Fulfill delivers value for a pending request. Only the designated fulfiller
// may call it and each request is fulfilled at most once. A consumer error
// aborts the fulfilment so it can be delivered again.
func (c *Coordinator) Fulfill(caller [20]byte, id [32]byte, value [32]byte) error {
	if err := nativecommon.Guard(c.pauses, moduleName); err != nil {
		return err
	}
	fulfiller, ok, err := c.Fulfiller()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoFulfiller
	}
	if caller != fulfiller {
		return ErrUnauthorized
	}
	return c.st.Atomic(func() error {
		req, ok, err := c.Lookup(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %x", ErrUnknownRequest, id)
		}
		if req.Fulfilled {
			return fmt.Errorf("%w: %x", ErrAlreadyFulfilled, id)
		}
		req.Fulfilled = true
		req.Value = value
		if err := c.st.KVPut(requestKey(id), req); err != nil {
			return err
		}
		c.st.Emit(events.RandomnessFulfilled{RequestID: common.Hash(id), Consumer: req.Consumer, Value: common.Hash(value)})
		consumer, ok := c.consumer(req.Consumer)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownConsumer, req.Consumer)
		}
		if err := consumer.OnRandomness(id, value); err != nil {
			return fmt.Errorf("randomness: consumer %s: %w", req.Consumer, err)
		}
		return nil
	})
}
