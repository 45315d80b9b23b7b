package reputation

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type mapStore struct {
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (m *mapStore) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *mapStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestRecordMissAccumulatesAcrossPools(t *testing.T) {
	ledger := NewLedger(newMapStore())
	addr := testAddr(0x11)

	count, blacklisted, err := ledger.RecordMiss(addr, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 || blacklisted {
		t.Fatalf("first miss: count=%d blacklisted=%v", count, blacklisted)
	}

	// Second miss in a different pool still counts against the same member.
	count, blacklisted, err = ledger.RecordMiss(addr, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 || blacklisted {
		t.Fatalf("second miss: count=%d blacklisted=%v", count, blacklisted)
	}

	count, blacklisted, err = ledger.RecordMiss(addr, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 || !blacklisted {
		t.Fatalf("third miss should latch the blacklist: count=%d", count)
	}

	flagged, err := ledger.IsBlacklisted(addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flagged {
		t.Fatalf("member should remain blacklisted")
	}
}

func TestRecordMissDoesNotReReportBlacklist(t *testing.T) {
	ledger := NewLedger(newMapStore())
	addr := testAddr(0x22)
	for i := 0; i < 3; i++ {
		if _, _, err := ledger.RecordMiss(addr, 1); err != nil {
			t.Fatalf("miss %d: %v", i, err)
		}
	}
	count, newly, err := ledger.RecordMiss(addr, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 {
		t.Fatalf("counter keeps accumulating, got %d", count)
	}
	if newly {
		t.Fatalf("an already blacklisted member must not be reported again")
	}
}

func TestIsBlacklistedUnknownMember(t *testing.T) {
	ledger := NewLedger(newMapStore())
	flagged, err := ledger.IsBlacklisted(testAddr(0x33))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flagged {
		t.Fatalf("unknown members are not blacklisted")
	}
}

func TestMarkJoinedIdempotent(t *testing.T) {
	ledger := NewLedger(newMapStore())
	addr := testAddr(0x44)

	if err := ledger.MarkJoined(addr, 7); err != nil {
		t.Fatalf("mark joined: %v", err)
	}
	if err := ledger.MarkJoined(addr, 7); err != nil {
		t.Fatalf("repeat mark joined: %v", err)
	}
	if err := ledger.MarkJoined(addr, 9); err != nil {
		t.Fatalf("mark joined second pool: %v", err)
	}

	profile, ok, err := ledger.GetProfile(addr)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !ok {
		t.Fatalf("profile should exist after joining")
	}
	if len(profile.JoinedPools) != 2 || profile.JoinedPools[0] != 7 || profile.JoinedPools[1] != 9 {
		t.Fatalf("unexpected joined pools: %v", profile.JoinedPools)
	}
}

func TestLedgerNotInitialised(t *testing.T) {
	var ledger *Ledger
	if _, _, err := ledger.RecordMiss(testAddr(0x55), 1); !errors.Is(err, ErrLedgerNotInitialised) {
		t.Fatalf("expected ErrLedgerNotInitialised, got %v", err)
	}
	engine := NewEngine(nil)
	if _, err := engine.IsBlacklisted(testAddr(0x55)); !errors.Is(err, ErrLedgerNotInitialised) {
		t.Fatalf("expected ErrLedgerNotInitialised, got %v", err)
	}
}
