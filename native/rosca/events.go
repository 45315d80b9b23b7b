package rosca

import (
	"encoding/hex"
	"strconv"

	"stokvel/core/types"
)

const (
	// TypePoolCreated is emitted when a new pool is registered.
	TypePoolCreated = "rosca.pool.created"
	// TypePoolJoined is emitted when a member joins a pool.
	TypePoolJoined = "rosca.pool.joined"
	// TypeContributionRecorded is emitted for every accepted contribution.
	TypeContributionRecorded = "rosca.pool.contribution"
	// TypeCycleSettled is emitted when a cycle closes and its pot is paid out.
	TypeCycleSettled = "rosca.cycle.settled"
	// TypePoolCompleted is emitted once the rotation is exhausted.
	TypePoolCompleted = "rosca.pool.completed"
	// TypeYieldClaimed is emitted when a yield claim is forwarded downstream.
	TypeYieldClaimed = "rosca.yield.claimed"
)

type roscaEvent struct {
	evt *types.Event
}

func (e roscaEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e roscaEvent) Event() *types.Event { return e.evt }

func attrAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func attrUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func poolCreatedEvent(p *Pool) *types.Event {
	return &types.Event{
		Type: TypePoolCreated,
		Attributes: map[string]string{
			"poolId":             attrUint(p.ID),
			"creator":            attrAddress(p.Creator),
			"contributionAmount": p.ContributionAmount.String(),
			"cycleDuration":      attrUint(p.CycleDuration),
			"maxMembers":         attrUint(uint64(p.MaxMembers)),
		},
	}
}

func poolJoinedEvent(p *Pool, member [20]byte) *types.Event {
	return &types.Event{
		Type: TypePoolJoined,
		Attributes: map[string]string{
			"poolId":  attrUint(p.ID),
			"member":  attrAddress(member),
			"members": attrUint(uint64(len(p.Members))),
		},
	}
}

func contributionEvent(p *Pool, member [20]byte, cycleIndex uint64) *types.Event {
	return &types.Event{
		Type: TypeContributionRecorded,
		Attributes: map[string]string{
			"poolId": attrUint(p.ID),
			"member": attrAddress(member),
			"cycle":  attrUint(cycleIndex),
			"amount": p.ContributionAmount.String(),
		},
	}
}

func cycleSettledEvent(poolID uint64, rec *PayoutRecord) *types.Event {
	return &types.Event{
		Type: TypeCycleSettled,
		Attributes: map[string]string{
			"poolId":    attrUint(poolID),
			"cycle":     attrUint(rec.CycleIndex),
			"recipient": attrAddress(rec.Recipient),
			"amount":    rec.Amount.String(),
		},
	}
}

func poolCompletedEvent(p *Pool) *types.Event {
	return &types.Event{
		Type: TypePoolCompleted,
		Attributes: map[string]string{
			"poolId": attrUint(p.ID),
			"cycles": attrUint(uint64(len(p.PayoutHistory))),
		},
	}
}

func yieldClaimedEvent(poolID uint64, member [20]byte) *types.Event {
	return &types.Event{
		Type: TypeYieldClaimed,
		Attributes: map[string]string{
			"poolId": attrUint(poolID),
			"member": attrAddress(member),
		},
	}
}
