package core

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"stokvel/core/types"
	nativecommon "stokvel/native/common"
	"stokvel/native/rosca"
	"stokvel/storage"
)

type testEvent struct {
	evt *types.Event
}

func (e testEvent) EventType() string   { return e.evt.Type }
func (e testEvent) Event() *types.Event { return e.evt }

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestNode(t *testing.T, pauses nativecommon.PauseView) *Node {
	t.Helper()
	node := NewNode(storage.NewMemDB(), nil, pauses)
	now := int64(1_700_000_000)
	node.Rosca().SetNowFunc(func() int64 { return now })
	return node
}

func TestNodeLifecycleEmitsEvents(t *testing.T) {
	node := newTestNode(t, nil)
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	pool, err := node.CreatePool(alice, rosca.PoolSpec{
		ContributionAmount: big.NewInt(100),
		CycleDuration:      3600,
		MaxMembers:         2,
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if err := node.JoinPool(pool.ID, alice); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if err := node.JoinPool(pool.ID, bob); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if _, err := node.Contribute(pool.ID, alice, big.NewInt(100)); err != nil {
		t.Fatalf("contribute alice: %v", err)
	}
	receipt, err := node.Contribute(pool.ID, bob, big.NewInt(100))
	if err != nil {
		t.Fatalf("contribute bob: %v", err)
	}
	if receipt.Outcome != rosca.ContributionSettledCycle {
		t.Fatalf("second contribution should settle the cycle, got %q", receipt.Outcome)
	}

	seen := make(map[string]bool)
	for _, evt := range node.Events() {
		seen[evt.Type] = true
	}
	for _, want := range []string{
		rosca.TypePoolCreated,
		rosca.TypePoolJoined,
		rosca.TypeContributionRecorded,
		rosca.TypeCycleSettled,
	} {
		if !seen[want] {
			t.Fatalf("missing event %q, saw %v", want, seen)
		}
	}
}

func TestNodeEventWindowIsCapped(t *testing.T) {
	node := newTestNode(t, nil)
	for i := 0; i < maxRecentEvents+50; i++ {
		node.Emit(testEvent{evt: &types.Event{
			Type:       "test.tick",
			Attributes: map[string]string{"seq": fmt.Sprintf("%d", i)},
		}})
	}
	events := node.Events()
	if len(events) != maxRecentEvents {
		t.Fatalf("window should hold %d events, got %d", maxRecentEvents, len(events))
	}
	if events[len(events)-1].Attributes["seq"] != fmt.Sprintf("%d", maxRecentEvents+49) {
		t.Fatalf("window should keep the newest events")
	}
}

func TestNodeHonoursPauseView(t *testing.T) {
	node := newTestNode(t, nativecommon.StaticPauses{"rosca": true})
	_, err := node.CreatePool(testAddr(0x01), rosca.PoolSpec{
		ContributionAmount: big.NewInt(100),
		CycleDuration:      3600,
		MaxMembers:         2,
	})
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}

func TestNodeBlacklistAndProfileReads(t *testing.T) {
	node := newTestNode(t, nil)
	member := testAddr(0x09)

	flagged, err := node.IsBlacklisted(member)
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if flagged {
		t.Fatalf("unknown member should not be blacklisted")
	}
	if _, ok, err := node.MemberProfile(member); err != nil || ok {
		t.Fatalf("unknown member should have no profile, ok=%v err=%v", ok, err)
	}
}
