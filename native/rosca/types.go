package rosca

import (
	"errors"
	"math/big"
)

// OrderMode selects how a pool's payout rotation is determined.
type OrderMode uint8

const (
	// OrderModeJoin derives the rotation from join order. The order is
	// append-only while the pool is joinable and frozen once the first
	// cycle settles.
	OrderModeJoin OrderMode = iota
	// OrderModeFixed uses the rotation supplied at creation verbatim.
	OrderModeFixed
)

// PoolMetadata carries optional descriptive fields supplied at creation.
type PoolMetadata struct {
	Name        string
	Description string
}

// PoolSpec captures the caller-supplied parameters for a new pool.
type PoolSpec struct {
	ContributionAmount *big.Int
	CycleDuration      uint64
	MaxMembers         uint32
	PayoutOrder        [][20]byte
	Metadata           PoolMetadata
}

// PayoutRecord describes a single settled cycle: who received the pot and how
// much was actually collected.
type PayoutRecord struct {
	CycleIndex uint64
	Recipient  [20]byte
	Amount     *big.Int
	PaidAt     uint64
}

// Pool is a single rotating-savings circle. All monetary fields are exact
// integer amounts in the ledger's base unit.
type Pool struct {
	ID                 uint64
	Creator            [20]byte
	ContributionAmount *big.Int
	CycleDuration      uint64
	MaxMembers         uint32
	OrderMode          OrderMode
	PayoutOrder        [][20]byte
	Members            [][20]byte
	CurrentCycle       uint64
	LastPayoutTime     uint64
	Active             bool
	Completed          bool
	CreatedAt          uint64
	VaultBalance       *big.Int
	TotalCollected     *big.Int
	TotalPaidOut       *big.Int
	PayoutHistory      []PayoutRecord
	Metadata           PoolMetadata
}

// HasMember reports whether addr has joined the pool.
func (p *Pool) HasMember(addr [20]byte) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Members {
		if m == addr {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate persisted state.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ContributionAmount = cloneBigInt(p.ContributionAmount)
	clone.VaultBalance = cloneBigInt(p.VaultBalance)
	clone.TotalCollected = cloneBigInt(p.TotalCollected)
	clone.TotalPaidOut = cloneBigInt(p.TotalPaidOut)
	clone.PayoutOrder = cloneAddressList(p.PayoutOrder)
	clone.Members = cloneAddressList(p.Members)
	clone.PayoutHistory = make([]PayoutRecord, len(p.PayoutHistory))
	for i := range p.PayoutHistory {
		rec := p.PayoutHistory[i]
		rec.Amount = cloneBigInt(rec.Amount)
		clone.PayoutHistory[i] = rec
	}
	return &clone
}

// CycleLedger records which members have contributed within one cycle of one
// pool. Contributors and Amounts are parallel slices kept in insertion order
// so persisted state stays deterministic.
type CycleLedger struct {
	PoolID       uint64
	CycleIndex   uint64
	OpenedAt     uint64
	Contributors [][20]byte
	Amounts      []*big.Int
}

// Contribution returns the amount recorded for addr this cycle, if any.
func (l *CycleLedger) Contribution(addr [20]byte) (*big.Int, bool) {
	if l == nil {
		return nil, false
	}
	for i, c := range l.Contributors {
		if c == addr {
			return cloneBigInt(l.Amounts[i]), true
		}
	}
	return nil, false
}

// Record appends a contribution entry. A second entry for the same member is
// rejected rather than accumulated.
func (l *CycleLedger) Record(addr [20]byte, amount *big.Int) error {
	if l == nil {
		return errors.New("rosca: nil cycle ledger")
	}
	if _, ok := l.Contribution(addr); ok {
		return ErrAlreadyContributed
	}
	l.Contributors = append(l.Contributors, addr)
	l.Amounts = append(l.Amounts, cloneBigInt(amount))
	return nil
}

// Total sums every contribution recorded this cycle.
func (l *CycleLedger) Total() *big.Int {
	total := big.NewInt(0)
	if l == nil {
		return total
	}
	for _, amt := range l.Amounts {
		if amt != nil {
			total.Add(total, amt)
		}
	}
	return total
}

// Clone returns a deep copy of the ledger.
func (l *CycleLedger) Clone() *CycleLedger {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Contributors = cloneAddressList(l.Contributors)
	clone.Amounts = make([]*big.Int, len(l.Amounts))
	for i, amt := range l.Amounts {
		clone.Amounts[i] = cloneBigInt(amt)
	}
	return &clone
}

// ContributionOutcome tags what a successful contribution triggered.
type ContributionOutcome string

const (
	// ContributionRecorded means the contribution was stored and the cycle
	// remains open.
	ContributionRecorded ContributionOutcome = "recorded"
	// ContributionSettledCycle means this contribution was the final one and
	// the cycle settled within the same call.
	ContributionSettledCycle ContributionOutcome = "cycle_settled"
	// ContributionCompletedPool means the settlement it triggered exhausted
	// the rotation.
	ContributionCompletedPool ContributionOutcome = "pool_completed"
)

// ContributionReceipt reports the state transition caused by a contribution so
// callers can observe cycle settlement without polling internal counters.
type ContributionReceipt struct {
	PoolID     uint64
	CycleIndex uint64
	Member     [20]byte
	Amount     *big.Int
	Outcome    ContributionOutcome
	Payout     *PayoutRecord
}

// CycleResult reports the effects of a forced cycle advance.
type CycleResult struct {
	PoolID      uint64
	CycleIndex  uint64
	Missed      [][20]byte
	Blacklisted [][20]byte
	Payout      *PayoutRecord
	Completed   bool
	// ClockReset is set when a zero-member pool was advanced: the cycle clock
	// restarts but no payout, history entry or miss is recorded.
	ClockReset bool
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func cloneAddressList(in [][20]byte) [][20]byte {
	if in == nil {
		return nil
	}
	out := make([][20]byte, len(in))
	copy(out, in)
	return out
}
