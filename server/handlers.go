package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"metajuke/core/jukebox"
	"metajuke/logger"
	"metajuke/model"

	"github.com/gorilla/mux"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	engine *jukebox.Engine
	secret string
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(engine *jukebox.Engine, jwtSecret string) *APIHandler {
	return &APIHandler{engine: engine, secret: jwtSecret}
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

// statusFor 错误类别到 HTTP 状态码
func statusFor(kind jukebox.Kind) int {
	switch kind {
	case jukebox.KindAlreadyExists:
		return http.StatusConflict
	case jukebox.KindNotFound:
		return http.StatusNotFound
	case jukebox.KindUnauthorized:
		return http.StatusForbidden
	case jukebox.KindInvalidArgument:
		return http.StatusBadRequest
	case jukebox.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case jukebox.KindPaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := jukebox.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// 内部错误不返回细节
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: jukebox.CodeOf(err), Kind: string(kind)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request", Kind: string(jukebox.KindInvalidArgument)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

// pathID 解析路由中的 32 字节标识
func pathID(w http.ResponseWriter, r *http.Request, name string) (model.ID, bool) {
	id, err := model.ParseID(mux.Vars(r)[name])
	if err != nil {
		badRequest(w, "invalid "+name)
		return model.ID{}, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// notFound 只读查询的未知标识
func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: what + " not found", Code: "not_found", Kind: string(jukebox.KindNotFound)})
}

// HealthHandler 存活探针
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.GetPlatformStats(r.Context()); err != nil {
		logger.Error("健康检查失败", logger.ErrorField(err))
		writeError(w, errors.New("store unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "time": time.Now().Unix()})
}
