package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedApp() (*GoSocialApp, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &GoSocialApp{log: zap.New(core), signingKey: testSigningKey}, logs
}

func Test_errorHandler(t *testing.T) {
	t.Run("recovers from panics", func(t *testing.T) {
		app, logs := newObservedApp()

		panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(errors.New("test panic"))
		})

		rr := httptest.NewRecorder()
		app.errorHandler(panicHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/posts", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "close", rr.Header().Get("Connection"))

		entries := logs.FilterMessage("panic serving request").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, http.MethodPost, fields["method"])
		assert.Equal(t, "/api/posts", fields["path"])
		assert.Equal(t, "test panic", fields["error"])
		assert.NotEmpty(t, fields["stack"])
	})

	t.Run("recovers from non-error panics", func(t *testing.T) {
		app, logs := newObservedApp()

		rr := httptest.NewRecorder()
		app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		require.Equal(t, 1, logs.FilterMessage("panic serving request").Len())
		assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
	})

	t.Run("passes abort through", func(t *testing.T) {
		app, _ := newObservedApp()

		h := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})

	t.Run("passes through", func(t *testing.T) {
		app, logs := newObservedApp()

		called := false
		okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})

		rr := httptest.NewRecorder()
		app.errorHandler(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", rr.Body.String())
		assert.True(t, called, "expected handler to be called")
		assert.Zero(t, logs.Len())
	})
}

func Test_authMiddleware(t *testing.T) {
	app, _ := newObservedApp()

	valid, err := app.createJwtForSession("u1", time.Minute)
	require.NoError(t, err)
	expired, err := app.createJwtForSession("u1", -time.Minute)
	require.NoError(t, err)

	tcases := []struct {
		name          string
		cookie        *http.Cookie
		expectedCode  int
		expectedLog   string
		clearsCookie  bool
		expectedLevel zapcore.Level
	}{
		{
			name:         "valid token",
			cookie:       createJwtCookie(valid, time.Minute),
			expectedCode: http.StatusOK,
		},
		{
			name:          "missing cookie",
			expectedCode:  http.StatusUnauthorized,
			expectedLog:   "no session cookie",
			expectedLevel: zapcore.DebugLevel,
		},
		{
			name:          "expired token",
			cookie:        createJwtCookie(expired, time.Minute),
			expectedCode:  http.StatusUnauthorized,
			expectedLog:   "rejected session token",
			clearsCookie:  true,
			expectedLevel: zapcore.InfoLevel,
		},
		{
			name:          "garbage token",
			cookie:        createJwtCookie("not-a-token", time.Minute),
			expectedCode:  http.StatusUnauthorized,
			expectedLog:   "rejected session token",
			clearsCookie:  true,
			expectedLevel: zapcore.InfoLevel,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app, logs := newObservedApp()

			var gotUserId string
			h := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				gotUserId, _ = UserId(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			req.RemoteAddr = "203.0.113.7:5555"
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rr := httptest.NewRecorder()
			h(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedCode == http.StatusOK {
				assert.Equal(t, "u1", gotUserId)
				assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
				assert.Nil(t, findCookie(rr, tokenCookieKey), "expected a valid cookie to be left alone")
				return
			}

			assert.Empty(t, gotUserId, "expected the handler not to run")

			cookie := findCookie(rr, tokenCookieKey)
			if tc.clearsCookie {
				require.NotNil(t, cookie, "expected the stale cookie to be cleared")
				assert.True(t, cookie.MaxAge < 0)
			} else {
				assert.Nil(t, cookie)
			}

			entries := logs.FilterMessage(tc.expectedLog).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tc.expectedLevel, entries[0].Level)
			fields := entries[0].ContextMap()
			assert.Equal(t, "/api/profile", fields["path"])
			assert.Equal(t, http.MethodGet, fields["method"])
			assert.Equal(t, "203.0.113.7:5555", fields["remote_addr"])
		})
	}
}
