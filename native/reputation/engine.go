package reputation

// Engine wraps the reputation ledger to give callers a single entry point for
// reputation queries and miss accounting without exposing storage concerns.
type Engine struct {
	ledger *Ledger
}

// NewEngine constructs an engine backed by the provided storage backend.
func NewEngine(store storage) *Engine {
	if store == nil {
		return &Engine{ledger: nil}
	}
	return &Engine{ledger: NewLedger(store)}
}

// Ledger exposes the underlying ledger for modules that consume it directly.
func (e *Engine) Ledger() *Ledger {
	if e == nil {
		return nil
	}
	return e.ledger
}

// Profile fetches the reputation record for addr.
func (e *Engine) Profile(addr [20]byte) (*Profile, bool, error) {
	if e == nil || e.ledger == nil {
		return nil, false, ErrLedgerNotInitialised
	}
	return e.ledger.GetProfile(addr)
}

// IsBlacklisted reports whether addr carries the blacklist latch.
func (e *Engine) IsBlacklisted(addr [20]byte) (bool, error) {
	if e == nil || e.ledger == nil {
		return false, ErrLedgerNotInitialised
	}
	return e.ledger.IsBlacklisted(addr)
}
