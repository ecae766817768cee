package server

import (
	"context"
	"net/http"
	"strings"

	"metajuke/core/auth"
	"metajuke/logger"
)

type contextKey string

const callerKey contextKey = "caller"

// bearerToken 从 Authorization 头取 token
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware 校验 JWT，并把调用方地址放进请求上下文
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required", Code: "unauthenticated"})
			return
		}

		claims, err := auth.ParseToken(h.secret, token)
		if err != nil {
			logger.Debug("token 校验失败", logger.ErrorField(err))
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid token", Code: "unauthenticated"})
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, claims.Address)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// CallerFromContext 当前调用方地址，未鉴权时为空
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey).(string)
	return caller
}
