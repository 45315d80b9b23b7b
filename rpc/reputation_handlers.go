package rpc

import (
	"net/http"
)

type memberParams struct {
	Member string `json:"member"`
}

type memberProfileJSON struct {
	Member              string   `json:"member"`
	JoinedPools         []uint64 `json:"joinedPools"`
	MissedContributions uint64   `json:"missedContributions"`
	Blacklisted         bool     `json:"blacklisted"`
}

func (s *Server) handleIsBlacklisted(w http.ResponseWriter, req *RPCRequest) {
	var params memberParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	member, err := parseMemberAddress(params.Member)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	blacklisted, err := s.node.IsBlacklisted(member)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"blacklisted": blacklisted})
}

func (s *Server) handleGetMemberProfile(w http.ResponseWriter, req *RPCRequest) {
	var params memberParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	member, err := parseMemberAddress(params.Member)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	profile, ok, err := s.node.MemberProfile(member)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	out := memberProfileJSON{Member: params.Member, JoinedPools: []uint64{}}
	if ok {
		out.Member = formatAddress(profile.Address)
		out.JoinedPools = profile.JoinedPools
		out.MissedContributions = profile.MissedContributions
		out.Blacklisted = profile.Blacklisted
	}
	writeResult(w, req.ID, out)
}
