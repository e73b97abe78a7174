package api

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

func requestFields(r *http.Request) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	}
}

// errorHandler turns a panic in any handler into a 500 on a closing
// connection. http.ErrAbortHandler is passed through to net/http.
func (s *GoSocialApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			panicErr, ok := rec.(error)
			if !ok {
				panicErr = fmt.Errorf("%v", rec)
			}

			s.log.Error("panic serving request",
				append(requestFields(r), zap.Error(panicErr), zap.Stack("stack"))...,
			)

			errResp := NewInternalServerError(panicErr)
			w.Header().Set("Connection", "close")
			s.writeJson(w, errResp.StatusCode, errResp)
		}()

		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the session cookie to a user id on the request
// context. A cookie that no longer verifies is cleared.
func (s *GoSocialApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenCookie, err := r.Cookie(tokenCookieKey)
		if err != nil {
			s.log.Debug("no session cookie", requestFields(r)...)
			s.writeError(w, NewUnauthorizedError())
			return
		}

		userId, err := s.extractUserIdFromToken(tokenCookie.Value)
		if err != nil {
			s.log.Info("rejected session token", append(requestFields(r), zap.Error(err))...)
			http.SetCookie(w, expiredJwtCookie())
			s.writeError(w, NewUnauthorizedError())
			return
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(WithUserId(r.Context(), userId)))
	}
}
