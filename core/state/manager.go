package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stokvel/native/rosca"
	"stokvel/storage"
)

// Manager provides typed, RLP-encoded access to the underlying key-value
// database. Keys are hashed with keccak256 so the logical key layout stays
// independent of the backend.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errors.New("state: database not configured")
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the
// key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errors.New("state: database not configured")
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.db.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if !ok || len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// PoolCounter returns the highest assigned pool identifier, zero when no pool
// exists yet.
func (m *Manager) PoolCounter() (uint64, error) {
	var counter uint64
	ok, err := m.KVGet(poolCounterKey, &counter)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return counter, nil
}

// SetPoolCounter persists the pool identifier counter.
func (m *Manager) SetPoolCounter(counter uint64) error {
	return m.KVPut(poolCounterKey, counter)
}

// PoolPut persists a pool record keyed by its identifier.
func (m *Manager) PoolPut(pool *rosca.Pool) error {
	if pool == nil {
		return errors.New("state: nil pool")
	}
	if pool.ID == 0 {
		return errors.New("state: pool id required")
	}
	return m.KVPut(poolKey(pool.ID), pool)
}

// PoolGet loads a pool record by identifier.
func (m *Manager) PoolGet(id uint64) (*rosca.Pool, bool, error) {
	stored := new(rosca.Pool)
	ok, err := m.KVGet(poolKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored, true, nil
}

// LedgerPut persists a cycle ledger keyed by pool and cycle index.
func (m *Manager) LedgerPut(ledger *rosca.CycleLedger) error {
	if ledger == nil {
		return errors.New("state: nil cycle ledger")
	}
	return m.KVPut(ledgerKey(ledger.PoolID, ledger.CycleIndex), ledger)
}

// LedgerGet loads the cycle ledger for the given pool and cycle index.
func (m *Manager) LedgerGet(poolID, cycleIndex uint64) (*rosca.CycleLedger, bool, error) {
	stored := new(rosca.CycleLedger)
	ok, err := m.KVGet(ledgerKey(poolID, cycleIndex), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored, true, nil
}
