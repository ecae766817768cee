package server

import (
	"net/http"

	"metajuke/core/jukebox"
	"metajuke/model"

	"github.com/gorilla/mux"
)

// TableRequest 创建或修改桌台
type TableRequest struct {
	Name            string `json:"name"`
	SkipThreshold   uint32 `json:"skipThreshold"`
	PriceMultiplier uint32 `json:"priceMultiplier"`
}

func (req TableRequest) settings() jukebox.TableSettings {
	return jukebox.TableSettings{
		Name:            req.Name,
		SkipThreshold:   req.SkipThreshold,
		PriceMultiplier: req.PriceMultiplier,
	}
}

// CreateTableHandler 创建桌台
func (h *APIHandler) CreateTableHandler(w http.ResponseWriter, r *http.Request) {
	var req TableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	table, err := h.engine.CreateTable(r.Context(), CallerFromContext(r.Context()), req.settings())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, table)
}

// UpdateTableHandler 房主修改桌台设置
func (h *APIHandler) UpdateTableHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req TableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	table, err := h.engine.UpdateTable(r.Context(), CallerFromContext(r.Context()), id, req.settings())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// GetTableHandler 查询桌台
func (h *APIHandler) GetTableHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	table, err := h.engine.GetTable(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if table == nil {
		notFound(w, "table")
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// GetQueueHandler 桌台队列
func (h *APIHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	queue, err := h.engine.GetQueue(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"queue": queue})
}

// ListMembersHandler 成员列表
func (h *APIHandler) ListMembersHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.engine.ListTableMembers(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := h.engine.GetTableMemberCount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []*model.TableMembership{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members, "memberCount": count})
}

// GetMemberStatusHandler 某个地址在桌台的成员、管理员和投票状态
func (h *APIHandler) GetMemberStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	address := mux.Vars(r)["address"]
	member, err := h.engine.IsTableMember(ctx, id, address)
	if err != nil {
		writeError(w, err)
		return
	}
	admin, err := h.engine.IsTableAdmin(ctx, id, address)
	if err != nil {
		writeError(w, err)
		return
	}
	voted, err := h.engine.HasVotedToSkip(ctx, address, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":   address,
		"member":    member,
		"admin":     admin,
		"votedSkip": voted,
	})
}

// JoinTableHandler 加入桌台
func (h *APIHandler) JoinTableHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.JoinTable(r.Context(), CallerFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveTableHandler 离开桌台
func (h *APIHandler) LeaveTableHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.LeaveTable(r.Context(), CallerFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddAdminHandler 房主添加管理员
func (h *APIHandler) AddAdminHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.AddTableAdmin(r.Context(), CallerFromContext(r.Context()), id, req.Address); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveAdminHandler 房主移除管理员
func (h *APIHandler) RemoveAdminHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.RemoveTableAdmin(r.Context(), CallerFromContext(r.Context()), id, mux.Vars(r)["address"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoteSkipHandler 投票切歌
func (h *APIHandler) VoteSkipHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	advanced, err := h.engine.VoteToSkip(r.Context(), CallerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"advanced": advanced})
}

// AdvanceQueueHandler 房主或管理员切到下一首
func (h *APIHandler) AdvanceQueueHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	next, playing, err := h.engine.AdvanceQueuePublic(r.Context(), CallerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]interface{}{"playing": playing}
	if playing {
		resp["currentTrack"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetStatusHandler 开启或关闭桌台
func (h *APIHandler) SetStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.SetTableStatus(r.Context(), CallerFromContext(r.Context()), id, req.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}
