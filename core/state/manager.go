package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"lockdrop/core/events"
	"lockdrop/storage"
)

var (
	rolePrefix  = []byte("role:")
	paramPrefix = []byte("param:")
	kvPrefix    = []byte("kv:")
)

// Manager provides keyed, RLP-encoded state access on top of a storage
// backend. Mutations made inside Atomic are staged in a layer stack and only
// reach the database once the outermost layer commits, so every operation is
// all-or-nothing. Reads always observe the innermost pending layer, which
// means a reentrant call made from inside an operation sees the writes that
// operation has already staged.
//
// Manager is not safe for concurrent use; callers serialise operations.
type Manager struct {
	db      storage.Database
	layers  []*layer
	emitter events.Emitter
}

type layer struct {
	writes map[string][]byte
	// deleted keys are tracked separately so nil values remain storable.
	deleted map[string]struct{}
	events  []events.Event
}

func newLayer() *layer {
	return &layer{writes: make(map[string][]byte), deleted: make(map[string]struct{})}
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, emitter: events.NoopEmitter{}}
}

// SetEmitter configures where committed events are delivered. Passing nil
// resets the emitter to a no-op implementation.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// InTransaction reports whether an Atomic call is in progress.
func (m *Manager) InTransaction() bool {
	return len(m.layers) > 0
}

// Atomic runs fn inside a new write layer. When fn returns an error (or
// panics) every write and event staged by fn is discarded. On success the
// layer merges into its parent, or is flushed to the database and its events
// emitted when it is the outermost layer.
func (m *Manager) Atomic(fn func() error) (err error) {
	m.layers = append(m.layers, newLayer())
	depth := len(m.layers)
	committed := false
	defer func() {
		if !committed && len(m.layers) >= depth {
			m.layers = m.layers[:depth-1]
		}
	}()
	if err = fn(); err != nil {
		return err
	}
	top := m.layers[depth-1]
	m.layers = m.layers[:depth-1]
	committed = true
	if depth > 1 {
		m.layers[depth-2].absorb(top)
		return nil
	}
	if err := storage.Apply(m.db, top.flatten()); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	for _, ev := range top.events {
		m.emitter.Emit(ev)
	}
	return nil
}

func (l *layer) absorb(child *layer) {
	for k := range child.deleted {
		delete(l.writes, k)
		l.deleted[k] = struct{}{}
	}
	for k, v := range child.writes {
		delete(l.deleted, k)
		l.writes[k] = v
	}
	l.events = append(l.events, child.events...)
}

func (l *layer) flatten() []storage.Write {
	keys := make([]string, 0, len(l.writes)+len(l.deleted))
	for k := range l.writes {
		keys = append(keys, k)
	}
	for k := range l.deleted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writes := make([]storage.Write, 0, len(keys))
	for _, k := range keys {
		if v, ok := l.writes[k]; ok {
			writes = append(writes, storage.Write{Key: []byte(k), Value: v})
			continue
		}
		writes = append(writes, storage.Write{Key: []byte(k), Delete: true})
	}
	return writes
}

// Emit queues the event on the current layer so that it is only delivered
// once the enclosing operation commits. Outside Atomic the event is delivered
// immediately.
func (m *Manager) Emit(e events.Event) {
	if e == nil {
		return
	}
	if n := len(m.layers); n > 0 {
		m.layers[n-1].events = append(m.layers[n-1].events, e)
		return
	}
	m.emitter.Emit(e)
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	k := string(key)
	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]
		if v, ok := l.writes[k]; ok {
			return v, true, nil
		}
		if _, ok := l.deleted[k]; ok {
			return nil, false, nil
		}
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) put(key, value []byte) error {
	if n := len(m.layers); n > 0 {
		l := m.layers[n-1]
		delete(l.deleted, string(key))
		l.writes[string(key)] = append([]byte(nil), value...)
		return nil
	}
	return m.db.Put(key, value)
}

func (m *Manager) del(key []byte) error {
	if n := len(m.layers); n > 0 {
		l := m.layers[n-1]
		delete(l.writes, string(key))
		l.deleted[string(key)] = struct{}{}
		return nil
	}
	err := m.db.Delete(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func hashedKey(prefix []byte, key []byte) []byte {
	buf := make([]byte, len(prefix)+len(key))
	copy(buf, prefix)
	copy(buf[len(prefix):], key)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return hashedKey(kvPrefix, key)
}

func roleKey(role string) []byte {
	return hashedKey(rolePrefix, []byte(strings.TrimSpace(role)))
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the backend.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.get(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.del(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	var list [][]byte
	data, ok, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if ok && len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice to avoid nil
// surprises for callers.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if !ok || len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// RoleMembers returns the addresses holding role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	data, ok, err := m.get(roleKey(role))
	if err != nil || !ok {
		return nil, err
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetRole grants role to addr. Granting an existing member is a no-op.
func (m *Manager) SetRole(role string, addr []byte) error {
	if strings.TrimSpace(role) == "" || len(addr) == 0 {
		return fmt.Errorf("role: role and address required")
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return err
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.put(roleKey(role), encoded)
}

// RevokeRole removes addr from role if present.
func (m *Manager) RevokeRole(role string, addr []byte) error {
	members, err := m.RoleMembers(role)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, member := range members {
		if !bytes.Equal(member, addr) {
			filtered = append(filtered, member)
		}
	}
	encoded, err := rlp.EncodeToBytes(filtered)
	if err != nil {
		return err
	}
	return m.put(roleKey(role), encoded)
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return, matching the best-effort semantics required by the callers.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// ParamStoreSet stores a raw parameter payload.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("params: name required")
	}
	return m.put(hashedKey(paramPrefix, []byte(name)), value)
}

// ParamStoreGet loads a raw parameter payload.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("params: name required")
	}
	return m.get(hashedKey(paramPrefix, []byte(name)))
}
