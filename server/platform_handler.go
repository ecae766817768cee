package server

import (
	"net/http"

	"metajuke/core/jukebox"
	"metajuke/model"
)

// InitializeRequest 平台初始化，调用方成为管理员
type InitializeRequest struct {
	Asset          string `json:"asset"`
	PlatformFeeBps uint32 `json:"platformFeeBps"`
}

// InitializeHandler 初始化平台
func (h *APIHandler) InitializeHandler(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.Initialize(r.Context(), CallerFromContext(r.Context()), req.Asset, req.PlatformFeeBps); err != nil {
		writeError(w, err)
		return
	}
	cfg, err := h.engine.GetPlatformConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// UpdateFeeHandler 修改平台费率
func (h *APIHandler) UpdateFeeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlatformFeeBps uint32 `json:"platformFeeBps"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.UpdatePlatformFee(r.Context(), CallerFromContext(r.Context()), req.PlatformFeeBps); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"platformFeeBps": req.PlatformFeeBps})
}

// MintRequest 管理员发行资产
type MintRequest struct {
	Asset   string       `json:"asset"`
	Account string       `json:"account"`
	Amount  model.Amount `json:"amount"`
}

// MintHandler 管理员充值或发放 profile token
func (h *APIHandler) MintHandler(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.Mint(r.Context(), CallerFromContext(r.Context()), req.Asset, req.Account, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":   req.Asset,
		"account": req.Account,
		"amount":  req.Amount.String(),
	})
}

// GetConfigHandler 平台配置
func (h *APIHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.engine.GetPlatformConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cfg == nil {
		writeError(w, jukebox.ErrNotInitialized)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetStatsHandler 平台计数
func (h *APIHandler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GetPlatformStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetCustodyHandler 托管账户对账
func (h *APIHandler) GetCustodyHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.GetCustodyReport(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":     report.Account,
		"balance":     report.Balance,
		"obligations": report.Obligations,
		"solvent":     report.Solvent(),
	})
}
