package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"sync"

	"stokvel/core/events"
	"stokvel/core/state"
	"stokvel/core/types"
	nativecommon "stokvel/native/common"
	"stokvel/native/reputation"
	"stokvel/native/rosca"
	"stokvel/native/yield"
	"stokvel/storage"
)

// maxRecentEvents caps the in-memory event window exposed over RPC.
const maxRecentEvents = 512

// Node owns the state manager and the native engines and serializes every
// mutating operation behind a single mutex. The ledger's consistency model is
// a totally ordered transition log: no two mutations interleave, and a failed
// validation leaves state untouched.
type Node struct {
	stateMu sync.Mutex

	db         storage.Database
	state      *state.Manager
	rosca      *rosca.Engine
	reputation *reputation.Engine
	logger     *slog.Logger

	eventMu sync.RWMutex
	recent  []types.Event
}

// Option customizes node construction.
type Option func(*Node)

// WithLogger attaches a structured logger to the node.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNode wires the state manager and engines over the given database.
func NewNode(db storage.Database, router yield.Router, pauses nativecommon.PauseView, opts ...Option) *Node {
	manager := state.NewManager(db)
	node := &Node{
		db:     db,
		state:  manager,
		logger: slog.Default(),
	}

	repEngine := reputation.NewEngine(manager)
	repEngine.Ledger().SetEmitter(node)

	engine := rosca.NewEngine()
	engine.SetState(manager)
	engine.SetReputation(repEngine.Ledger())
	engine.SetEmitter(node)
	engine.SetPauses(pauses)
	if router == nil {
		router = yield.NoopRouter{}
	}
	engine.SetYieldRouter(router)

	node.rosca = engine
	node.reputation = repEngine
	for _, opt := range opts {
		opt(node)
	}
	return node
}

// Rosca exposes the pool engine, primarily for tests that need to adjust the
// clock.
func (n *Node) Rosca() *rosca.Engine { return n.rosca }

// Emit implements the events.Emitter interface: emitted engine events are
// logged and retained in a capped window for RPC consumers.
func (n *Node) Emit(evt events.Event) {
	if n == nil || evt == nil {
		return
	}
	wire, ok := evt.(interface{ Event() *types.Event })
	if !ok || wire.Event() == nil {
		return
	}
	record := *wire.Event()
	n.eventMu.Lock()
	n.recent = append(n.recent, record)
	if len(n.recent) > maxRecentEvents {
		n.recent = n.recent[len(n.recent)-maxRecentEvents:]
	}
	n.eventMu.Unlock()
	if n.logger != nil {
		attrs := make([]any, 0, len(record.Attributes)*2)
		for k, v := range record.Attributes {
			attrs = append(attrs, slog.String(k, v))
		}
		n.logger.Info(record.Type, attrs...)
	}
}

// Events returns the retained event window, newest last.
func (n *Node) Events() []types.Event {
	n.eventMu.RLock()
	defer n.eventMu.RUnlock()
	out := make([]types.Event, len(n.recent))
	copy(out, n.recent)
	return out
}

// CreatePool registers a new pool for the given creator.
func (n *Node) CreatePool(creator [20]byte, spec rosca.PoolSpec) (*rosca.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.CreatePool(creator, spec)
}

// JoinPool adds the member to the pool roster.
func (n *Node) JoinPool(poolID uint64, member [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.JoinPool(poolID, member)
}

// Contribute records a contribution for the active cycle.
func (n *Node) Contribute(poolID uint64, member [20]byte, amount *big.Int) (*rosca.ContributionReceipt, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.Contribute(poolID, member, amount)
}

// StartNewCycle force-advances a pool whose cycle duration has elapsed.
func (n *Node) StartNewCycle(poolID uint64) (*rosca.CycleResult, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.StartNewCycle(poolID)
}

// ClaimYield forwards an eligible claim to the reward subsystem.
func (n *Node) ClaimYield(ctx context.Context, poolID uint64, member [20]byte) (json.RawMessage, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.ClaimYield(ctx, poolID, member)
}

// GetPool returns a snapshot of the pool.
func (n *Node) GetPool(poolID uint64) (*rosca.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.GetPool(poolID)
}

// ListPools returns snapshots of every pool in creation order.
func (n *Node) ListPools() ([]*rosca.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.ListPools()
}

// PoolMembers returns the roster in join order.
func (n *Node) PoolMembers(poolID uint64) ([][20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.PoolMembers(poolID)
}

// PayoutHistory returns one record per settled cycle.
func (n *Node) PayoutHistory(poolID uint64) ([]rosca.PayoutRecord, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.PayoutHistory(poolID)
}

// CurrentLedger returns the active cycle ledger for the pool.
func (n *Node) CurrentLedger(poolID uint64) (*rosca.CycleLedger, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.rosca.CurrentLedger(poolID)
}

// IsBlacklisted reports whether the member carries the cross-pool blacklist
// latch.
func (n *Node) IsBlacklisted(member [20]byte) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.reputation.IsBlacklisted(member)
}

// MemberProfile returns the reputation record for the member.
func (n *Node) MemberProfile(member [20]byte) (*reputation.Profile, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.reputation.Profile(member)
}
