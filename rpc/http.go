package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"stokvel/core"
	"stokvel/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// AuthTokenEnv names the environment variable carrying the bearer token
	// required for mutating methods.
	AuthTokenEnv = "STOKVEL_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeNotFound       = -32004
	codeConflict       = -32009
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the node over JSON-RPC 2.0.
type Server struct {
	node      *core.Node
	authToken string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewServer builds a server for the given node. The auth token is read from
// the environment; mutating methods are rejected when it is unset.
func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv(AuthTokenEnv))
	return &Server{
		node:      node,
		authToken: token,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetRateLimit configures the per-source limit applied to mutating methods.
// A non-positive per-minute value disables limiting.
func (s *Server) SetRateLimit(perMinute float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if perMinute <= 0 {
		s.limit = 0
		return
	}
	s.limit = rate.Limit(perMinute / 60.0)
	if burst <= 0 {
		burst = 1
	}
	s.burst = burst
	s.limiters = make(map[string]*rate.Limiter)
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health and
// metrics routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "bearer token required"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func (s *Server) allowSource(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[host] = limiter
	}
	return limiter.Allow()
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	started := time.Now()
	outcome := s.dispatch(w, r, req)
	observability.ModuleMetrics().ObserveRequest(req.Method, outcome, started)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	mutating := false
	switch req.Method {
	case "stokvel_createPool", "stokvel_joinPool", "stokvel_contribute",
		"stokvel_startNewCycle", "stokvel_claimYield":
		mutating = true
	}
	if mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return "unauthorized"
		}
		if !s.allowSource(r) {
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limited", nil)
			return "rate_limited"
		}
	}

	switch req.Method {
	case "stokvel_createPool":
		s.handleCreatePool(w, req)
	case "stokvel_joinPool":
		s.handleJoinPool(w, req)
	case "stokvel_contribute":
		s.handleContribute(w, req)
	case "stokvel_startNewCycle":
		s.handleStartNewCycle(w, req)
	case "stokvel_claimYield":
		s.handleClaimYield(w, r, req)
	case "stokvel_getPool":
		s.handleGetPool(w, req)
	case "stokvel_listPools":
		s.handleListPools(w, req)
	case "stokvel_getPoolMembers":
		s.handleGetPoolMembers(w, req)
	case "stokvel_payoutHistory":
		s.handlePayoutHistory(w, req)
	case "stokvel_currentLedger":
		s.handleCurrentLedger(w, req)
	case "stokvel_isBlacklisted":
		s.handleIsBlacklisted(w, req)
	case "stokvel_getMemberProfile":
		s.handleGetMemberProfile(w, req)
	case "stokvel_recentEvents":
		s.handleRecentEvents(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return "method_not_found"
	}
	return "handled"
}

func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}
