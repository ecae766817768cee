package server

import (
	"net/http"

	"metajuke/model"
)

// RequestTrackHandler 付费点歌，成功后返回收据
func (h *APIHandler) RequestTrackHandler(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		TrackID string `json:"trackId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	trackID, err := model.ParseID(req.TrackID)
	if err != nil {
		badRequest(w, "invalid trackId")
		return
	}

	ctx := r.Context()
	requestID, err := h.engine.RequestTrack(ctx, CallerFromContext(ctx), trackID, tableID)
	if err != nil {
		writeError(w, err)
		return
	}
	receipt, err := h.engine.GetRequest(ctx, requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// ListTableRequestsHandler 桌台最近的点歌收据
func (h *APIHandler) ListTableRequestsHandler(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	requests, err := h.engine.ListTableRequests(r.Context(), tableID, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	if requests == nil {
		requests = []*model.TrackRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// GetRequestHandler 查询单条收据
func (h *APIHandler) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	receipt, err := h.engine.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if receipt == nil {
		notFound(w, "request")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
