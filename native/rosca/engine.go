package rosca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"stokvel/core/events"
	"stokvel/core/types"
	nativecommon "stokvel/native/common"
)

const moduleName = "rosca"

var (
	errNilState      = errors.New("rosca engine: state not configured")
	errNilReputation = errors.New("rosca engine: reputation ledger not configured")
	errLedgerMissing = errors.New("rosca engine: cycle ledger missing")
)

type engineState interface {
	PoolPut(*Pool) error
	PoolGet(id uint64) (*Pool, bool, error)
	PoolCounter() (uint64, error)
	SetPoolCounter(uint64) error
	LedgerPut(*CycleLedger) error
	LedgerGet(poolID, cycleIndex uint64) (*CycleLedger, bool, error)
}

// reputationLedger is the slice of the member registry the engine needs:
// join-time blacklist checks, membership indexing and miss accounting.
type reputationLedger interface {
	IsBlacklisted(addr [20]byte) (bool, error)
	MarkJoined(addr [20]byte, poolID uint64) error
	RecordMiss(addr [20]byte, poolID uint64) (uint64, bool, error)
}

// yieldRouter forwards claim requests to the external reward subsystem.
type yieldRouter interface {
	Claim(ctx context.Context, poolID uint64, member [20]byte) (json.RawMessage, error)
}

// Engine drives the pool lifecycle state machine: creation, membership,
// per-cycle contribution accounting, payout rotation and the yield claim
// boundary. Callers are expected to serialize mutating calls; the engine
// itself holds no locks.
type Engine struct {
	state      engineState
	reputation reputationLedger
	yield      yieldRouter
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	nowFn      func() int64
}

// NewEngine creates a rosca engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetReputation configures the member registry consulted for blacklist checks
// and miss accounting.
func (e *Engine) SetReputation(ledger reputationLedger) { e.reputation = ledger }

// SetYieldRouter configures the downstream reward forwarder. Passing nil
// disables yield claims.
func (e *Engine) SetYieldRouter(router yieldRouter) { e.yield = router }

// SetPauses configures the module pause switch consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(roscaEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// CreatePool validates the supplied parameters, assigns the next sequential
// pool identifier and opens cycle ledger zero.
func (e *Engine) CreatePool(creator [20]byte, spec PoolSpec) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if creator == ([20]byte{}) {
		return nil, fmt.Errorf("%w: creator required", ErrInvalidParams)
	}
	if spec.ContributionAmount == nil || spec.ContributionAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: contribution amount must be positive", ErrInvalidParams)
	}
	if spec.CycleDuration == 0 {
		return nil, fmt.Errorf("%w: cycle duration must be positive", ErrInvalidParams)
	}
	if spec.MaxMembers == 0 {
		return nil, fmt.Errorf("%w: max members must be positive", ErrInvalidParams)
	}
	if uint32(len(spec.PayoutOrder)) > spec.MaxMembers {
		return nil, fmt.Errorf("%w: payout order exceeds max members", ErrInvalidParams)
	}
	seen := make(map[[20]byte]struct{}, len(spec.PayoutOrder))
	for _, addr := range spec.PayoutOrder {
		if addr == ([20]byte{}) {
			return nil, fmt.Errorf("%w: empty address in payout order", ErrInvalidParams)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("%w: duplicate address in payout order", ErrInvalidParams)
		}
		seen[addr] = struct{}{}
	}

	counter, err := e.state.PoolCounter()
	if err != nil {
		return nil, err
	}
	id := counter + 1
	now := e.now()

	mode := OrderModeJoin
	if len(spec.PayoutOrder) > 0 {
		mode = OrderModeFixed
	}
	pool := &Pool{
		ID:                 id,
		Creator:            creator,
		ContributionAmount: cloneBigInt(spec.ContributionAmount),
		CycleDuration:      spec.CycleDuration,
		MaxMembers:         spec.MaxMembers,
		OrderMode:          mode,
		PayoutOrder:        cloneAddressList(spec.PayoutOrder),
		CurrentCycle:       0,
		LastPayoutTime:     uint64(now),
		Active:             true,
		CreatedAt:          uint64(now),
		VaultBalance:       big.NewInt(0),
		TotalCollected:     big.NewInt(0),
		TotalPaidOut:       big.NewInt(0),
		Metadata:           spec.Metadata,
	}
	if err := e.state.SetPoolCounter(id); err != nil {
		return nil, err
	}
	if err := e.state.LedgerPut(&CycleLedger{PoolID: id, CycleIndex: 0, OpenedAt: uint64(now)}); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(poolCreatedEvent(pool))
	return pool.Clone(), nil
}

// JoinPool adds a member to the pool roster. Joining is only permitted while
// the pool is active and the rotation has not yet started; join-order pools
// additionally append the member to the payout rotation.
func (e *Engine) JoinPool(poolID uint64, member [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.reputation == nil {
		return errNilReputation
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if member == ([20]byte{}) {
		return fmt.Errorf("%w: member address required", ErrInvalidParams)
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if !pool.Active || pool.Completed {
		return ErrPoolNotJoinable
	}
	if pool.CurrentCycle > 0 {
		// Rotation underway; the roster and payout order are frozen.
		return ErrPoolNotJoinable
	}
	if uint32(len(pool.Members)) >= pool.MaxMembers {
		return ErrPoolFull
	}
	blacklisted, err := e.reputation.IsBlacklisted(member)
	if err != nil {
		return err
	}
	if blacklisted {
		return ErrBlacklisted
	}
	if pool.HasMember(member) {
		return ErrAlreadyMember
	}
	pool.Members = append(pool.Members, member)
	if pool.OrderMode == OrderModeJoin {
		pool.PayoutOrder = append(pool.PayoutOrder, member)
	}
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	if err := e.reputation.MarkJoined(member, pool.ID); err != nil {
		return err
	}
	e.emit(poolJoinedEvent(pool, member))
	return nil
}

// Contribute records an exact-amount contribution for the active cycle. When
// the contribution is the last one outstanding the cycle settles within the
// same call and the receipt reports the resulting payout.
func (e *Engine) Contribute(poolID uint64, member [20]byte, amount *big.Int) (*ContributionReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if !pool.Active || pool.Completed {
		return nil, ErrPoolInactive
	}
	if !pool.HasMember(member) {
		return nil, ErrNotMember
	}
	if amount == nil || amount.Cmp(pool.ContributionAmount) != 0 {
		return nil, fmt.Errorf("%w: expected %s", ErrAmountMismatch, pool.ContributionAmount.String())
	}
	ledger, ok, err := e.state.LedgerGet(pool.ID, pool.CurrentCycle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLedgerMissing
	}
	if _, dup := ledger.Contribution(member); dup {
		return nil, ErrAlreadyContributed
	}
	if err := ledger.Record(member, amount); err != nil {
		return nil, err
	}
	pool.VaultBalance = new(big.Int).Add(pool.VaultBalance, amount)
	pool.TotalCollected = new(big.Int).Add(pool.TotalCollected, amount)

	receipt := &ContributionReceipt{
		PoolID:     pool.ID,
		CycleIndex: ledger.CycleIndex,
		Member:     member,
		Amount:     cloneBigInt(amount),
		Outcome:    ContributionRecorded,
	}
	if err := e.state.LedgerPut(ledger); err != nil {
		return nil, err
	}
	e.emit(contributionEvent(pool, member, ledger.CycleIndex))

	if len(ledger.Contributors) == len(pool.Members) {
		payout, completed, err := e.settle(pool)
		if err != nil {
			return nil, err
		}
		receipt.Payout = payout
		receipt.Outcome = ContributionSettledCycle
		if completed {
			receipt.Outcome = ContributionCompletedPool
		}
		return receipt, nil
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	return receipt, nil
}

// StartNewCycle force-advances a pool whose cycle duration has elapsed. Every
// member absent from the active ledger is charged a miss; three lifetime
// misses across any pools latch the blacklist. The cycle then settles with
// whatever was collected.
func (e *Engine) StartNewCycle(poolID uint64) (*CycleResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.reputation == nil {
		return nil, errNilReputation
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if !pool.Active || pool.Completed {
		return nil, ErrPoolInactive
	}
	now := e.now()
	if now >= 0 && uint64(now) < pool.LastPayoutTime+pool.CycleDuration {
		return nil, ErrCycleNotDue
	}
	ledger, ok, err := e.state.LedgerGet(pool.ID, pool.CurrentCycle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLedgerMissing
	}

	result := &CycleResult{PoolID: pool.ID, CycleIndex: pool.CurrentCycle}
	if len(pool.Members) == 0 {
		// Nothing to rotate: restart the cycle clock in place.
		ledger.OpenedAt = uint64(now)
		pool.LastPayoutTime = uint64(now)
		if err := e.state.LedgerPut(ledger); err != nil {
			return nil, err
		}
		if err := e.state.PoolPut(pool); err != nil {
			return nil, err
		}
		result.ClockReset = true
		return result, nil
	}

	for _, member := range pool.Members {
		if _, paid := ledger.Contribution(member); paid {
			continue
		}
		_, blacklisted, err := e.reputation.RecordMiss(member, pool.ID)
		if err != nil {
			return nil, err
		}
		result.Missed = append(result.Missed, member)
		if blacklisted {
			result.Blacklisted = append(result.Blacklisted, member)
		}
	}

	payout, completed, err := e.settle(pool)
	if err != nil {
		return nil, err
	}
	result.Payout = payout
	result.Completed = completed
	return result, nil
}

// settle closes the active cycle: it pays the scheduled recipient whatever
// the vault collected, advances the rotation pointer and opens the next
// ledger, or retires the pool once the rotation is exhausted. The shortfall
// from defaulting members is not topped up, and the pot is paid to the
// scheduled recipient even when that recipient defaulted this cycle.
func (e *Engine) settle(pool *Pool) (*PayoutRecord, bool, error) {
	now := e.now()
	idx := pool.CurrentCycle
	if idx >= uint64(len(pool.PayoutOrder)) {
		pool.Active = false
		pool.Completed = true
		if err := e.state.PoolPut(pool); err != nil {
			return nil, false, err
		}
		e.emit(poolCompletedEvent(pool))
		return nil, true, nil
	}

	recipient := pool.PayoutOrder[idx]
	pot := cloneBigInt(pool.VaultBalance)
	record := PayoutRecord{
		CycleIndex: idx,
		Recipient:  recipient,
		Amount:     pot,
		PaidAt:     uint64(now),
	}
	pool.PayoutHistory = append(pool.PayoutHistory, record)
	pool.TotalPaidOut = new(big.Int).Add(pool.TotalPaidOut, pot)
	pool.VaultBalance = big.NewInt(0)
	pool.LastPayoutTime = uint64(now)
	pool.CurrentCycle = idx + 1

	completed := pool.CurrentCycle >= uint64(len(pool.PayoutOrder))
	if completed {
		pool.Active = false
		pool.Completed = true
	} else {
		next := &CycleLedger{PoolID: pool.ID, CycleIndex: pool.CurrentCycle, OpenedAt: uint64(now)}
		if err := e.state.LedgerPut(next); err != nil {
			return nil, false, err
		}
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, false, err
	}
	e.emit(cycleSettledEvent(pool.ID, &record))
	if completed {
		e.emit(poolCompletedEvent(pool))
	}
	out := record
	out.Amount = cloneBigInt(record.Amount)
	return &out, completed, nil
}

// ClaimYield validates claim eligibility and forwards the request to the
// external reward subsystem, returning its response unchanged. The ledger
// holds no reward balances of its own.
func (e *Engine) ClaimYield(ctx context.Context, poolID uint64, member [20]byte) (json.RawMessage, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if !pool.HasMember(member) {
		return nil, ErrNotMember
	}
	if !pool.Active && !pool.Completed {
		return nil, ErrPoolInactive
	}
	if e.yield == nil {
		return nil, ErrYieldUnavailable
	}
	res, err := e.yield.Claim(ctx, pool.ID, member)
	if err != nil {
		return nil, err
	}
	e.emit(yieldClaimedEvent(pool.ID, member))
	return res, nil
}

// GetPool returns a snapshot of the pool.
func (e *Engine) GetPool(poolID uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPool(poolID)
}

// ListPools returns snapshots of every pool in creation order.
func (e *Engine) ListPools() ([]*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	counter, err := e.state.PoolCounter()
	if err != nil {
		return nil, err
	}
	pools := make([]*Pool, 0, counter)
	for id := uint64(1); id <= counter; id++ {
		pool, ok, err := e.state.PoolGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		pools = append(pools, pool.Clone())
	}
	return pools, nil
}

// PoolMembers returns the roster in join order.
func (e *Engine) PoolMembers(poolID uint64) ([][20]byte, error) {
	pool, err := e.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.Members, nil
}

// PayoutHistory returns one record per settled cycle in rotation order.
func (e *Engine) PayoutHistory(poolID uint64) ([]PayoutRecord, error) {
	pool, err := e.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.PayoutHistory, nil
}

// CurrentLedger returns the active cycle ledger for the pool, or the last one
// when the pool has completed.
func (e *Engine) CurrentLedger(poolID uint64) (*CycleLedger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	idx := pool.CurrentCycle
	if pool.Completed && idx > 0 {
		idx--
	}
	ledger, ok, err := e.state.LedgerGet(pool.ID, idx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLedgerMissing
	}
	return ledger.Clone(), nil
}

func (e *Engine) loadPool(poolID uint64) (*Pool, error) {
	pool, ok, err := e.state.PoolGet(poolID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool.Clone(), nil
}
