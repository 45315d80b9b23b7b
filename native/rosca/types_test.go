package rosca

import (
	"errors"
	"math/big"
	"testing"
)

func TestCycleLedgerRecordRejectsDuplicates(t *testing.T) {
	ledger := &CycleLedger{PoolID: 1, CycleIndex: 0}
	addr := newTestAddress(0x01)

	if err := ledger.Record(addr, big.NewInt(10)); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := ledger.Record(addr, big.NewInt(10)); !errors.Is(err, ErrAlreadyContributed) {
		t.Fatalf("expected ErrAlreadyContributed, got %v", err)
	}
	if ledger.Total().Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("duplicate must not be additive, total %s", ledger.Total())
	}
}

func TestCycleLedgerCloneIsDeep(t *testing.T) {
	ledger := &CycleLedger{PoolID: 1, CycleIndex: 0}
	addr := newTestAddress(0x01)
	if err := ledger.Record(addr, big.NewInt(10)); err != nil {
		t.Fatalf("record: %v", err)
	}

	clone := ledger.Clone()
	clone.Amounts[0].SetInt64(999)
	clone.Contributors[0] = newTestAddress(0x02)

	if amount, _ := ledger.Contribution(addr); amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("mutating the clone must not affect the original")
	}
}

func TestPoolCloneIsDeep(t *testing.T) {
	pool := &Pool{
		ID:                 1,
		ContributionAmount: big.NewInt(100),
		VaultBalance:       big.NewInt(50),
		TotalCollected:     big.NewInt(50),
		TotalPaidOut:       big.NewInt(0),
		Members:            [][20]byte{newTestAddress(0x01)},
		PayoutOrder:        [][20]byte{newTestAddress(0x01)},
		PayoutHistory: []PayoutRecord{
			{CycleIndex: 0, Recipient: newTestAddress(0x01), Amount: big.NewInt(50)},
		},
	}
	clone := pool.Clone()
	clone.VaultBalance.SetInt64(999)
	clone.Members[0] = newTestAddress(0x0F)
	clone.PayoutHistory[0].Amount.SetInt64(999)

	if pool.VaultBalance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("vault balance aliased between clone and original")
	}
	if pool.Members[0] != newTestAddress(0x01) {
		t.Fatalf("member list aliased between clone and original")
	}
	if pool.PayoutHistory[0].Amount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("payout history aliased between clone and original")
	}
}

func TestHasMember(t *testing.T) {
	pool := &Pool{Members: [][20]byte{newTestAddress(0x01)}}
	if !pool.HasMember(newTestAddress(0x01)) {
		t.Fatalf("expected membership")
	}
	if pool.HasMember(newTestAddress(0x02)) {
		t.Fatalf("unexpected membership")
	}
	var nilPool *Pool
	if nilPool.HasMember(newTestAddress(0x01)) {
		t.Fatalf("nil pool has no members")
	}
}
