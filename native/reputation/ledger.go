package reputation

import (
	"errors"
	"fmt"

	"stokvel/core/events"
	"stokvel/core/types"
)

// BlacklistThreshold is the lifetime miss count at which a member is latched
// onto the cross-pool blacklist. The latch is never cleared by the ledger.
const BlacklistThreshold = 3

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var profilePrefix = []byte("reputation/profile/")

func profileKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", profilePrefix, addr))
}

var (
	// ErrLedgerNotInitialised marks calls against an unconfigured ledger.
	ErrLedgerNotInitialised = errors.New("reputation: ledger not initialised")
)

// Ledger persists per-member reputation: joined pools, lifetime miss counts
// and the blacklist latch. It is the single serialization point for
// reputation data shared across pools.
type Ledger struct {
	store   storage
	emitter events.Emitter
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used to broadcast miss and
// blacklist transitions. Passing nil resets the emitter to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(event *types.Event) {
	if l == nil || l.emitter == nil || event == nil {
		return
	}
	l.emitter.Emit(reputationEvent{evt: event})
}

// GetProfile fetches the reputation profile for addr. The boolean reports
// whether the member has any recorded history.
func (l *Ledger) GetProfile(addr [20]byte) (*Profile, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, ErrLedgerNotInitialised
	}
	var stored Profile
	ok, err := l.store.KVGet(profileKey(addr), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stored.Clone(), true, nil
}

// IsBlacklisted reports whether addr carries the blacklist latch. Unknown
// members are not blacklisted.
func (l *Ledger) IsBlacklisted(addr [20]byte) (bool, error) {
	profile, ok, err := l.GetProfile(addr)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return profile.Blacklisted, nil
}

// MarkJoined records pool membership in the member's profile. Recording the
// same pool twice is a no-op.
func (l *Ledger) MarkJoined(addr [20]byte, poolID uint64) error {
	if l == nil || l.store == nil {
		return ErrLedgerNotInitialised
	}
	profile, ok, err := l.GetProfile(addr)
	if err != nil {
		return err
	}
	if !ok {
		profile = &Profile{Address: addr}
	}
	if profile.MemberOf(poolID) {
		return nil
	}
	profile.JoinedPools = append(profile.JoinedPools, poolID)
	return l.store.KVPut(profileKey(addr), profile)
}

// RecordMiss increments the member's lifetime miss counter attributed to the
// given pool. The returned boolean reports whether this miss newly latched
// the blacklist; members already blacklisted stay blacklisted without
// re-reporting.
func (l *Ledger) RecordMiss(addr [20]byte, poolID uint64) (uint64, bool, error) {
	if l == nil || l.store == nil {
		return 0, false, ErrLedgerNotInitialised
	}
	profile, ok, err := l.GetProfile(addr)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		profile = &Profile{Address: addr}
	}
	profile.MissedContributions++
	newlyBlacklisted := false
	if !profile.Blacklisted && profile.MissedContributions >= BlacklistThreshold {
		profile.Blacklisted = true
		newlyBlacklisted = true
	}
	if err := l.store.KVPut(profileKey(addr), profile); err != nil {
		return 0, false, err
	}
	l.emit(missRecordedEvent(addr, poolID, profile.MissedContributions))
	if newlyBlacklisted {
		l.emit(memberBlacklistedEvent(addr, profile.MissedContributions))
	}
	return profile.MissedContributions, newlyBlacklisted, nil
}
