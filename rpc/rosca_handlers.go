package rpc

import (
	"errors"
	"math/big"
	"net/http"
	"strings"

	"stokvel/crypto"
	nativecommon "stokvel/native/common"
	"stokvel/native/rosca"
	"stokvel/observability"
)

type createPoolParams struct {
	Creator            string   `json:"creator"`
	ContributionAmount string   `json:"contributionAmount"`
	CycleDuration      uint64   `json:"cycleDuration"`
	MaxMembers         uint32   `json:"maxMembers"`
	PayoutOrder        []string `json:"payoutOrder,omitempty"`
	Name               string   `json:"name,omitempty"`
	Description        string   `json:"description,omitempty"`
}

type poolMemberParams struct {
	PoolID uint64 `json:"poolId"`
	Member string `json:"member"`
}

type contributeParams struct {
	PoolID uint64 `json:"poolId"`
	Member string `json:"member"`
	Amount string `json:"amount"`
}

type poolIDParams struct {
	PoolID uint64 `json:"poolId"`
}

type payoutRecordJSON struct {
	CycleIndex uint64 `json:"cycleIndex"`
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	PaidAt     uint64 `json:"paidAt"`
}

type poolJSON struct {
	ID                 uint64             `json:"id"`
	Creator            string             `json:"creator"`
	ContributionAmount string             `json:"contributionAmount"`
	CycleDuration      uint64             `json:"cycleDuration"`
	MaxMembers         uint32             `json:"maxMembers"`
	OrderMode          string             `json:"orderMode"`
	PayoutOrder        []string           `json:"payoutOrder"`
	Members            []string           `json:"members"`
	CurrentCycle       uint64             `json:"currentCycle"`
	LastPayoutTime     uint64             `json:"lastPayoutTime"`
	Active             bool               `json:"active"`
	Completed          bool               `json:"completed"`
	CreatedAt          uint64             `json:"createdAt"`
	VaultBalance       string             `json:"vaultBalance"`
	TotalCollected     string             `json:"totalCollected"`
	TotalPaidOut       string             `json:"totalPaidOut"`
	PayoutHistory      []payoutRecordJSON `json:"payoutHistory"`
	Name               string             `json:"name,omitempty"`
	Description        string             `json:"description,omitempty"`
}

type contributionReceiptJSON struct {
	PoolID     uint64            `json:"poolId"`
	CycleIndex uint64            `json:"cycleIndex"`
	Member     string            `json:"member"`
	Amount     string            `json:"amount"`
	Outcome    string            `json:"outcome"`
	Payout     *payoutRecordJSON `json:"payout,omitempty"`
}

type cycleResultJSON struct {
	PoolID      uint64            `json:"poolId"`
	CycleIndex  uint64            `json:"cycleIndex"`
	Missed      []string          `json:"missed"`
	Blacklisted []string          `json:"blacklisted"`
	Payout      *payoutRecordJSON `json:"payout,omitempty"`
	Completed   bool              `json:"completed"`
	ClockReset  bool              `json:"clockReset"`
}

func parseMemberAddress(raw string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Array(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(addr).String()
}

func formatAddressList(in [][20]byte) []string {
	out := make([]string, len(in))
	for i, addr := range in {
		out[i] = formatAddress(addr)
	}
	return out
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer")
	}
	return amount, nil
}

func formatPayoutRecord(rec *rosca.PayoutRecord) *payoutRecordJSON {
	if rec == nil {
		return nil
	}
	return &payoutRecordJSON{
		CycleIndex: rec.CycleIndex,
		Recipient:  formatAddress(rec.Recipient),
		Amount:     rec.Amount.String(),
		PaidAt:     rec.PaidAt,
	}
}

func formatPool(pool *rosca.Pool) poolJSON {
	history := make([]payoutRecordJSON, len(pool.PayoutHistory))
	for i := range pool.PayoutHistory {
		history[i] = *formatPayoutRecord(&pool.PayoutHistory[i])
	}
	mode := "join_order"
	if pool.OrderMode == rosca.OrderModeFixed {
		mode = "fixed"
	}
	return poolJSON{
		ID:                 pool.ID,
		Creator:            formatAddress(pool.Creator),
		ContributionAmount: pool.ContributionAmount.String(),
		CycleDuration:      pool.CycleDuration,
		MaxMembers:         pool.MaxMembers,
		OrderMode:          mode,
		PayoutOrder:        formatAddressList(pool.PayoutOrder),
		Members:            formatAddressList(pool.Members),
		CurrentCycle:       pool.CurrentCycle,
		LastPayoutTime:     pool.LastPayoutTime,
		Active:             pool.Active,
		Completed:          pool.Completed,
		CreatedAt:          pool.CreatedAt,
		VaultBalance:       pool.VaultBalance.String(),
		TotalCollected:     pool.TotalCollected.String(),
		TotalPaidOut:       pool.TotalPaidOut.String(),
		PayoutHistory:      history,
		Name:               pool.Metadata.Name,
		Description:        pool.Metadata.Description,
	}
}

// writeRoscaError maps engine sentinels onto JSON-RPC codes.
func writeRoscaError(w http.ResponseWriter, method string, id interface{}, err error) {
	status := http.StatusInternalServerError
	code := codeServerError
	message := "internal_error"
	switch {
	case errors.Is(err, rosca.ErrPoolNotFound):
		status, code, message = http.StatusNotFound, codeNotFound, "not_found"
	case errors.Is(err, rosca.ErrInvalidParams), errors.Is(err, rosca.ErrAmountMismatch):
		status, code, message = http.StatusBadRequest, codeInvalidParams, "invalid_params"
	case errors.Is(err, rosca.ErrPoolFull),
		errors.Is(err, rosca.ErrAlreadyMember),
		errors.Is(err, rosca.ErrAlreadyContributed),
		errors.Is(err, rosca.ErrCycleNotDue):
		status, code, message = http.StatusConflict, codeConflict, "conflict"
	case errors.Is(err, rosca.ErrBlacklisted),
		errors.Is(err, rosca.ErrPoolNotJoinable),
		errors.Is(err, rosca.ErrNotMember),
		errors.Is(err, rosca.ErrPoolInactive):
		status, code, message = http.StatusForbidden, codeForbidden, "forbidden"
	case errors.Is(err, nativecommon.ErrModulePaused):
		status, code, message = http.StatusServiceUnavailable, codeServerError, "module_paused"
	case errors.Is(err, rosca.ErrYieldUnavailable):
		status, code, message = http.StatusServiceUnavailable, codeServerError, "yield_unavailable"
	}
	observability.ModuleMetrics().IncError(method, message)
	writeError(w, status, id, code, message, err.Error())
}

func (s *Server) handleCreatePool(w http.ResponseWriter, req *RPCRequest) {
	var params createPoolParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	creator, err := parseMemberAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.ContributionAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	order := make([][20]byte, 0, len(params.PayoutOrder))
	for _, raw := range params.PayoutOrder {
		addr, err := parseMemberAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		order = append(order, addr)
	}
	pool, err := s.node.CreatePool(creator, rosca.PoolSpec{
		ContributionAmount: amount,
		CycleDuration:      params.CycleDuration,
		MaxMembers:         params.MaxMembers,
		PayoutOrder:        order,
		Metadata: rosca.PoolMetadata{
			Name:        strings.TrimSpace(params.Name),
			Description: strings.TrimSpace(params.Description),
		},
	})
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatPool(pool))
}

func (s *Server) handleJoinPool(w http.ResponseWriter, req *RPCRequest) {
	var params poolMemberParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	member, err := parseMemberAddress(params.Member)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.JoinPool(params.PoolID, member); err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"joined": true})
}

func (s *Server) handleContribute(w http.ResponseWriter, req *RPCRequest) {
	var params contributeParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	member, err := parseMemberAddress(params.Member)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	receipt, err := s.node.Contribute(params.PoolID, member, amount)
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, contributionReceiptJSON{
		PoolID:     receipt.PoolID,
		CycleIndex: receipt.CycleIndex,
		Member:     formatAddress(receipt.Member),
		Amount:     receipt.Amount.String(),
		Outcome:    string(receipt.Outcome),
		Payout:     formatPayoutRecord(receipt.Payout),
	})
}

func (s *Server) handleStartNewCycle(w http.ResponseWriter, req *RPCRequest) {
	var params poolIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	result, err := s.node.StartNewCycle(params.PoolID)
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, cycleResultJSON{
		PoolID:      result.PoolID,
		CycleIndex:  result.CycleIndex,
		Missed:      formatAddressList(result.Missed),
		Blacklisted: formatAddressList(result.Blacklisted),
		Payout:      formatPayoutRecord(result.Payout),
		Completed:   result.Completed,
		ClockReset:  result.ClockReset,
	})
}

func (s *Server) handleClaimYield(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params poolMemberParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	member, err := parseMemberAddress(params.Member)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	result, err := s.node.ClaimYield(r.Context(), params.PoolID, member)
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetPool(w http.ResponseWriter, req *RPCRequest) {
	var params poolIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	pool, err := s.node.GetPool(params.PoolID)
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatPool(pool))
}

func (s *Server) handleListPools(w http.ResponseWriter, req *RPCRequest) {
	pools, err := s.node.ListPools()
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	out := make([]poolJSON, len(pools))
	for i, pool := range pools {
		out[i] = formatPool(pool)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetPoolMembers(w http.ResponseWriter, req *RPCRequest) {
	var params poolIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	members, err := s.node.PoolMembers(params.PoolID)
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAddressList(members))
}

func (s *Server) handlePayoutHistory(w http.ResponseWriter, req *RPCRequest) {
	var params poolIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	history, err := s.node.PayoutHistory(params.PoolID)
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	out := make([]payoutRecordJSON, len(history))
	for i := range history {
		out[i] = *formatPayoutRecord(&history[i])
	}
	writeResult(w, req.ID, out)
}

type cycleLedgerJSON struct {
	PoolID        uint64            `json:"poolId"`
	CycleIndex    uint64            `json:"cycleIndex"`
	OpenedAt      uint64            `json:"openedAt"`
	Contributions []ledgerEntryJSON `json:"contributions"`
	Total         string            `json:"total"`
}

type ledgerEntryJSON struct {
	Member string `json:"member"`
	Amount string `json:"amount"`
}

func (s *Server) handleCurrentLedger(w http.ResponseWriter, req *RPCRequest) {
	var params poolIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	ledger, err := s.node.CurrentLedger(params.PoolID)
	if err != nil {
		writeRoscaError(w, req.Method, req.ID, err)
		return
	}
	entries := make([]ledgerEntryJSON, len(ledger.Contributors))
	for i, member := range ledger.Contributors {
		entries[i] = ledgerEntryJSON{
			Member: formatAddress(member),
			Amount: ledger.Amounts[i].String(),
		}
	}
	writeResult(w, req.ID, cycleLedgerJSON{
		PoolID:        ledger.PoolID,
		CycleIndex:    ledger.CycleIndex,
		OpenedAt:      ledger.OpenedAt,
		Contributions: entries,
		Total:         ledger.Total().String(),
	})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, s.node.Events())
}
