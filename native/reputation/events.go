package reputation

import (
	"encoding/hex"
	"strconv"

	"stokvel/core/types"
)

const (
	// TypeMissRecorded is emitted every time a cycle closes without a
	// member's contribution.
	TypeMissRecorded = "reputation.member.miss"
	// TypeMemberBlacklisted is emitted once, when the lifetime miss count
	// reaches the blacklist threshold.
	TypeMemberBlacklisted = "reputation.member.blacklisted"
)

type reputationEvent struct {
	evt *types.Event
}

func (e reputationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e reputationEvent) Event() *types.Event { return e.evt }

func missRecordedEvent(addr [20]byte, poolID, count uint64) *types.Event {
	return &types.Event{
		Type: TypeMissRecorded,
		Attributes: map[string]string{
			"member": "0x" + hex.EncodeToString(addr[:]),
			"poolId": strconv.FormatUint(poolID, 10),
			"misses": strconv.FormatUint(count, 10),
		},
	}
}

func memberBlacklistedEvent(addr [20]byte, count uint64) *types.Event {
	return &types.Event{
		Type: TypeMemberBlacklisted,
		Attributes: map[string]string{
			"member": "0x" + hex.EncodeToString(addr[:]),
			"misses": strconv.FormatUint(count, 10),
		},
	}
}
