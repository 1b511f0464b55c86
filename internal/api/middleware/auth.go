package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"intraday/pkg/crypto"
)

// Auth - middleware авторизации операторских команд.
//
// Команды pause/resume/flatten меняют состояние работающей стратегии,
// поэтому защищены Bearer токеном. В конфигурации хранится только
// bcrypt хеш токена (API_TOKEN_HASH), сам токен нигде не сохраняется.
//
// Если хеш не задан, операторские команды отключены полностью:
// отсутствие конфигурации не должно молча открывать управление.
func Auth(tokenHash string, logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				writeAuthError(w, http.StatusForbidden, "control endpoints disabled: API_TOKEN_HASH is not set")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="strategy control"`)
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			if !crypto.CheckTokenMatch(token, tokenHash) {
				logger.Warn("rejected control request with invalid token",
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
				)
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
