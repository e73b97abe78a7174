package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/gosocial/internal/config"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/testutil"
	"github.com/npezzotti/gosocial/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Conversation(ctx context.Context, conversationId string) (types.Conversation, error) {
	args := m.Called(conversationId)
	return args.Get(0).(types.Conversation), args.Error(1)
}
func (m *MockChatService) Send(ctx context.Context, conversationId string, sender types.User, text string) (types.Message, error) {
	args := m.Called(conversationId, sender, text)
	return args.Get(0).(types.Message), args.Error(1)
}
func (m *MockChatService) StartConversation(ctx context.Context, userA, userB string) (types.Conversation, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(types.Conversation), args.Error(1)
}
func (m *MockChatService) RecentHistory(ctx context.Context, conversationId string, limit int) ([]types.Message, error) {
	args := m.Called(conversationId, limit)
	return args.Get(0).([]types.Message), args.Error(1)
}

type MockPushRegistrar struct {
	mock.Mock
}

func (m *MockPushRegistrar) Register(ctx context.Context, userId, endpoint string, keys types.PushKeys) (types.PushSubscription, error) {
	args := m.Called(userId, endpoint, keys)
	return args.Get(0).(types.PushSubscription), args.Error(1)
}

type MockPresigner struct {
	mock.Mock
}

func (m *MockPresigner) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (types.Upload, error) {
	args := m.Called(key, contentType, ttl)
	return args.Get(0).(types.Upload), args.Error(1)
}

func newTestApp(t *testing.T, db database.GoSocialRepository, svc Services) *GoSocialApp {
	return NewGoSocialApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, svc, &config.Config{
		ServerAddr:     "localhost:8080",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
		HistoryLimit:   50,
	})
}

// newRequest builds a request carrying a valid session cookie for userId.
// An empty userId sends no cookie.
func newRequest(t *testing.T, app *GoSocialApp, method, target, userId string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userId != "" {
		token, err := app.createJwtForSession(userId, time.Minute)
		require.NoError(t, err)
		req.AddCookie(createJwtCookie(token, time.Minute))
	}

	return req
}

func serve(app *GoSocialApp, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "expected a JSON body")
	return v
}

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func testUser(id string) database.User {
	now := time.Now().UTC()
	return database.User{
		Id:           id,
		Name:         "User " + id,
		EmailAddress: id + "@example.com",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestNewGoSocialApp(t *testing.T) {
	db := &database.MockGoSocialRepository{}
	chatSvc := &MockChatService{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
		HistoryLimit:   25,
	}
	logger := testutil.TestLogger(t)

	app := NewGoSocialApp(http.NewServeMux(), logger, nil, db, Services{Chat: chatSvc, VAPIDPublicKey: "pub"}, cfg)

	assert.NotNil(t, app.srv, "expected http server to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, chatSvc, app.chat, "expected chat service to be set")
	assert.Nil(t, app.uploads, "expected uploads to be disabled")
	assert.Equal(t, cfg.SigningKey, app.signingKey, "expected signing key to be set")
	assert.Equal(t, cfg.ServerAddr, app.srv.Addr, "expected server address to match config")
	assert.Equal(t, 25, app.historyLimit)
	assert.Equal(t, "pub", app.vapidPublicKey)
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockGoSocialRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, mockRepo, Services{})
			rr := serve(app, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func Test_signup(t *testing.T) {
	created := testUser("u1")
	created.Name = "Ann"
	created.EmailAddress = "ann@example.com"

	tcases := []struct {
		name         string
		body         any
		mockErr      error
		callsDb      bool
		expectedCode int
	}{
		{
			name:         "creates account",
			body:         SignupRequest{Name: " Ann ", Email: " Ann@Example.com ", Password: "password"},
			callsDb:      true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "email already registered",
			body:         SignupRequest{Name: "Ann", Email: "ann@example.com", Password: "password"},
			mockErr:      database.ErrConflict,
			callsDb:      true,
			expectedCode: http.StatusConflict,
		},
		{
			name:         "storage failure",
			body:         SignupRequest{Name: "Ann", Email: "ann@example.com", Password: "password"},
			mockErr:      errors.New("db down"),
			callsDb:      true,
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "invalid json",
			body:         "invalid json",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "missing password",
			body:         SignupRequest{Name: "Ann", Email: "ann@example.com"},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "blank name",
			body:         SignupRequest{Name: "   ", Email: "ann@example.com", Password: "password"},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockGoSocialRepository{}
			defer db.AssertExpectations(t)

			if tc.callsDb {
				db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.Name == "Ann" && p.EmailAddress == "ann@example.com" && verifyPassword(p.PasswordHash, "password")
				})).Return(created, tc.mockErr).Once()
			}

			app := newTestApp(t, db, Services{})
			rr := serve(app, newRequest(t, app, http.MethodPost, "/api/auth/signup", "", tc.body))

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedCode != http.StatusCreated {
				assert.Nil(t, findCookie(rr, tokenCookieKey), "expected no session cookie on failure")
				return
			}

			cookie := findCookie(rr, tokenCookieKey)
			require.NotNil(t, cookie, "expected session cookie")
			assert.True(t, cookie.HttpOnly)
			userId, err := app.extractUserIdFromToken(cookie.Value)
			require.NoError(t, err)
			assert.Equal(t, "u1", userId)

			user := decodeBody[types.User](t, rr)
			assert.Equal(t, "Ann", user.Name)
			assert.Equal(t, "ann@example.com", user.EmailAddress)
		})
	}
}

func Test_signin(t *testing.T) {
	hash, err := hashPassword("password")
	require.NoError(t, err)
	user := testUser("u1")
	user.EmailAddress = "ann@example.com"
	user.PasswordHash = hash

	tcases := []struct {
		name         string
		body         any
		mockUser     database.User
		mockErr      error
		callsDb      bool
		expectedCode int
	}{
		{
			name:         "valid credentials",
			body:         SigninRequest{Email: "ANN@example.com", Password: "password"},
			mockUser:     user,
			callsDb:      true,
			expectedCode: http.StatusOK,
		},
		{
			name:         "wrong password",
			body:         SigninRequest{Email: "ann@example.com", Password: "nope"},
			mockUser:     user,
			callsDb:      true,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown email",
			body:         SigninRequest{Email: "ann@example.com", Password: "password"},
			mockErr:      database.ErrNotFound,
			callsDb:      true,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "missing fields",
			body:         SigninRequest{Email: "ann@example.com"},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockGoSocialRepository{}
			defer db.AssertExpectations(t)
			if tc.callsDb {
				db.On("GetAccountByEmail", "ann@example.com").Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, db, Services{})
			rr := serve(app, newRequest(t, app, http.MethodPost, "/api/auth/signin", "", tc.body))

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedCode == http.StatusOK {
				assert.NotNil(t, findCookie(rr, tokenCookieKey), "expected session cookie")
				assert.NotContains(t, rr.Body.String(), hash, "expected the password hash never to leave the server")
			} else if tc.expectedCode == http.StatusUnauthorized {
				apiErr := decodeBody[ApiError](t, rr)
				assert.Equal(t, "invalid credentials", apiErr.Message)
			}
		})
	}
}

func Test_logout(t *testing.T) {
	app := newTestApp(t, &database.MockGoSocialRepository{}, Services{})

	rr := serve(app, newRequest(t, app, http.MethodPost, "/api/auth/logout", "", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr, tokenCookieKey)
	require.NotNil(t, cookie, "expected cookie to be overwritten")
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0, "expected cookie to be expired")
}

func Test_session(t *testing.T) {
	t.Run("returns the current user", func(t *testing.T) {
		db := &database.MockGoSocialRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", "u1").Return(testUser("u1"), nil).Once()

		app := newTestApp(t, db, Services{})
		rr := serve(app, newRequest(t, app, http.MethodGet, "/api/auth/session", "u1", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
		user := decodeBody[types.User](t, rr)
		assert.Equal(t, "u1", user.Id)
	})

	t.Run("deleted account", func(t *testing.T) {
		db := &database.MockGoSocialRepository{}
		db.On("GetAccountById", "u1").Return(database.User{}, database.ErrNotFound).Once()

		app := newTestApp(t, db, Services{})
		rr := serve(app, newRequest(t, app, http.MethodGet, "/api/auth/session", "u1", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("no cookie", func(t *testing.T) {
		app := newTestApp(t, &database.MockGoSocialRepository{}, Services{})
		rr := serve(app, newRequest(t, app, http.MethodGet, "/api/auth/session", "", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func Test_getProfile(t *testing.T) {
	db := &database.MockGoSocialRepository{}
	defer db.AssertExpectations(t)

	user := testUser("u1")
	user.LastActiveAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	db.On("GetAccountById", "u1").Return(user, nil).Once()
	db.On("ListRelationships", "u1").Return([]database.Relationship{
		{UserId: "u1", TargetId: "u2", Kind: database.RelationshipLike},
		{UserId: "u1", TargetId: "u3", Kind: database.RelationshipDislike},
		{UserId: "u1", TargetId: "u4", Kind: database.RelationshipBlock},
		{UserId: "u1", TargetId: "u5", Kind: database.RelationshipLike},
	}, nil).Once()

	app := newTestApp(t, db, Services{})
	rr := serve(app, newRequest(t, app, http.MethodGet, "/api/profile", "u1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	profile := decodeBody[types.Profile](t, rr)
	assert.Equal(t, "u1", profile.Id)
	assert.NotNil(t, profile.LastActiveAt)
	assert.Equal(t, []string{"u2", "u5"}, profile.LikedUserIds)
	assert.Equal(t, []string{"u3"}, profile.DislikedUserIds)
	assert.Equal(t, []string{"u4"}, profile.BlockedUserIds)
}

func Test_updateProfile(t *testing.T) {
	db := &database.MockGoSocialRepository{}
	defer db.AssertExpectations(t)

	updated := testUser("u1")
	updated.AvatarUrl = "https://cdn.example.com/a.png"
	db.On("GetAccountById", "u1").Return(testUser("u1"), nil).Once()
	db.On("UpdateProfile", database.UpdateProfileParams{
		UserId:    "u1",
		AvatarUrl: "https://cdn.example.com/a.png",
	}).Return(updated, nil).Once()

	app := newTestApp(t, db, Services{})
	rr := serve(app, newRequest(t, app, http.MethodPut, "/api/profile", "u1", UpdateProfileRequest{
		Name:      "  ",
		AvatarUrl: "https://cdn.example.com/a.png",
	}))

	require.Equal(t, http.StatusOK, rr.Code)
	user := decodeBody[types.User](t, rr)
	assert.Equal(t, "https://cdn.example.com/a.png", user.AvatarUrl)
}

func Test_listUsers(t *testing.T) {
	db := &database.MockGoSocialRepository{}
	defer db.AssertExpectations(t)
	db.On("ListAccounts").Return([]database.User{testUser("u2"), testUser("u1")}, nil).Once()

	app := newTestApp(t, db, Services{})
	rr := serve(app, newRequest(t, app, http.MethodGet, "/api/users", "u1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	users := decodeBody[[]types.User](t, rr)
	require.Len(t, users, 2)
	assert.Equal(t, "u2", users[0].Id, "expected repository order to be kept")
	for _, u := range users {
		assert.Empty(t, u.EmailAddress, "expected emails to be hidden")
	}
}

func Test_presencePing(t *testing.T) {
	tcases := []struct {
		name         string
		mockErr      error
		expectedCode int
	}{
		{"touches last active", nil, http.StatusNoContent},
		{"unknown account", database.ErrNotFound, http.StatusUnauthorized},
		{"storage failure", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockGoSocialRepository{}
			defer db.AssertExpectations(t)
			db.On("TouchLastActive", "u1").Return(tc.mockErr).Once()

			app := newTestApp(t, db, Services{})
			rr := serve(app, newRequest(t, app, http.MethodPost, "/api/presence/ping", "u1", nil))

			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}
