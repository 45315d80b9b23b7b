package rosca

import "errors"

var (
	ErrInvalidParams      = errors.New("rosca: invalid parameters")
	ErrPoolNotFound       = errors.New("rosca: pool not found")
	ErrPoolFull           = errors.New("rosca: pool full")
	ErrBlacklisted        = errors.New("rosca: member blacklisted")
	ErrAlreadyMember      = errors.New("rosca: already a member")
	ErrPoolNotJoinable    = errors.New("rosca: pool not joinable")
	ErrNotMember          = errors.New("rosca: not a member")
	ErrPoolInactive       = errors.New("rosca: pool inactive")
	ErrAmountMismatch     = errors.New("rosca: contribution amount mismatch")
	ErrAlreadyContributed = errors.New("rosca: already contributed this cycle")
	ErrCycleNotDue        = errors.New("rosca: cycle not due")
	ErrYieldUnavailable   = errors.New("rosca: yield router not configured")
)
