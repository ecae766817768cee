package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterUserRequest 注册用户，调用方必须持有 profile token
type RegisterUserRequest struct {
	ProfileNFT string `json:"profileNft"`
	AvatarURI  string `json:"avatarUri"`
}

// RegisterUserHandler 注册用户
func (h *APIHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.engine.RegisterUser(r.Context(), CallerFromContext(r.Context()), req.ProfileNFT, req.AvatarURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// UpdateProfileHandler 修改头像
func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AvatarURI string `json:"avatarUri"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.engine.UpdateUserProfile(r.Context(), CallerFromContext(r.Context()), req.AvatarURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUserHandler 查询用户
func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.GetUser(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		notFound(w, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// RegisterArtistHandler 注册艺人
func (h *APIHandler) RegisterArtistHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ArtistName string `json:"artistName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	artist, err := h.engine.RegisterArtist(r.Context(), CallerFromContext(r.Context()), req.ArtistName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, artist)
}

// GetArtistHandler 查询艺人
func (h *APIHandler) GetArtistHandler(w http.ResponseWriter, r *http.Request) {
	artist, err := h.engine.GetArtist(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, err)
		return
	}
	if artist == nil {
		notFound(w, "artist")
		return
	}
	writeJSON(w, http.StatusOK, artist)
}

// WithdrawHandler 艺人提取版税
func (h *APIHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	amount, err := h.engine.WithdrawRevenue(r.Context(), CallerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawn": amount})
}
