package reputation

// Profile is the cross-pool reputation record for a member. Miss counts
// accumulate over the member's lifetime regardless of which pool the miss
// happened in; the blacklist flag is a one-way latch.
type Profile struct {
	Address             [20]byte
	JoinedPools         []uint64
	MissedContributions uint64
	Blacklisted         bool
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.JoinedPools = append([]uint64(nil), p.JoinedPools...)
	return &clone
}

// MemberOf reports whether the profile records membership of the given pool.
func (p *Profile) MemberOf(poolID uint64) bool {
	if p == nil {
		return false
	}
	for _, id := range p.JoinedPools {
		if id == poolID {
			return true
		}
	}
	return false
}
