package server

import (
	"net/http"

	"metajuke/core/jukebox"
	"metajuke/model"
)

// MintTrackRequest 发行曲目
type MintTrackRequest struct {
	Title         string             `json:"title"`
	BasePrice     model.Amount       `json:"basePrice"`
	Licenses      uint32             `json:"licenses"`
	MetadataURI   string             `json:"metadataUri"`
	Collaborators []string           `json:"collaborators"`
	RoyaltySplit  model.RoyaltySplit `json:"royaltySplit"`
}

// MintTrackHandler 艺人发行曲目
func (h *APIHandler) MintTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req MintTrackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	track, err := h.engine.MintTrack(r.Context(), CallerFromContext(r.Context()), jukebox.MintTrackInput{
		Title:         req.Title,
		BasePrice:     req.BasePrice,
		Licenses:      req.Licenses,
		MetadataURI:   req.MetadataURI,
		Collaborators: req.Collaborators,
		RoyaltySplit:  req.RoyaltySplit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

// UpdateTrackHandler 修改价格、授权数和元数据
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		BasePrice   model.Amount `json:"basePrice"`
		Licenses    uint32       `json:"licenses"`
		MetadataURI string       `json:"metadataUri"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	track, err := h.engine.UpdateTrack(r.Context(), CallerFromContext(r.Context()), id, jukebox.UpdateTrackInput{
		BasePrice:   req.BasePrice,
		Licenses:    req.Licenses,
		MetadataURI: req.MetadataURI,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// GetTrackHandler 查询曲目
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	track, err := h.engine.GetTrack(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if track == nil {
		notFound(w, "track")
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// GetTrackCountHandler 已发行曲目数
func (h *APIHandler) GetTrackCountHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.GetTotalTracks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"total": n})
}
