package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
	"go.uber.org/zap"
)

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	AvatarUrl string `json:"avatar_url"`
}

func (s *GoSocialApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("json encode", zap.Error(err))
	}
}

func (s *GoSocialApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(errResp))
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func decodeJson(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func toUser(u database.User) types.User {
	user := types.User{
		Id:           u.Id,
		Name:         u.Name,
		EmailAddress: u.EmailAddress,
		AvatarUrl:    u.AvatarUrl,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.LastActiveAt.Valid {
		t := u.LastActiveAt.Time
		user.LastActiveAt = &t
	}

	return user
}

// currentUser loads the account behind the session. A token for an account
// that no longer exists is treated as unauthenticated.
func (s *GoSocialApp) currentUser(w http.ResponseWriter, r *http.Request) (database.User, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return database.User{}, false
	}

	user, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError())
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return database.User{}, false
	}

	return user, true
}

func (s *GoSocialApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoSocialApp) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		s.writeError(w, NewInvalidRequestError("name, email and password are required"))
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	newUser, err := s.db.CreateAccount(r.Context(), database.CreateAccountParams{
		Name:         req.Name,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			s.writeError(w, NewConflictError("email already registered"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if !s.setSessionCookie(w, newUser.Id) {
		return
	}

	s.writeJson(w, http.StatusCreated, toUser(newUser))
}

func (s *GoSocialApp) signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		s.writeError(w, NewInvalidRequestError("email and password are required"))
		return
	}

	dbUser, err := s.db.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, &ApiError{StatusCode: http.StatusUnauthorized, Message: "invalid credentials"})
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if !verifyPassword(dbUser.PasswordHash, req.Password) {
		s.writeError(w, &ApiError{StatusCode: http.StatusUnauthorized, Message: "invalid credentials"})
		return
	}

	if !s.setSessionCookie(w, dbUser.Id) {
		return
	}

	s.writeJson(w, http.StatusOK, toUser(dbUser))
}

func (s *GoSocialApp) setSessionCookie(w http.ResponseWriter, userId string) bool {
	token, err := s.createJwtForSession(userId, defaultExp)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return false
	}

	http.SetCookie(w, createJwtCookie(token, defaultExp))
	return true
}

func (s *GoSocialApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired one
	http.SetCookie(w, expiredJwtCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (s *GoSocialApp) session(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *GoSocialApp) getProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	rels, err := s.db.ListRelationships(r.Context(), user.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	profile := types.Profile{
		User:            toUser(user),
		LikedUserIds:    []string{},
		DislikedUserIds: []string{},
		BlockedUserIds:  []string{},
	}
	for _, rel := range rels {
		switch rel.Kind {
		case database.RelationshipLike:
			profile.LikedUserIds = append(profile.LikedUserIds, rel.TargetId)
		case database.RelationshipDislike:
			profile.DislikedUserIds = append(profile.DislikedUserIds, rel.TargetId)
		case database.RelationshipBlock:
			profile.BlockedUserIds = append(profile.BlockedUserIds, rel.TargetId)
		}
	}

	s.writeJson(w, http.StatusOK, profile)
}

func (s *GoSocialApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	updated, err := s.db.UpdateProfile(r.Context(), database.UpdateProfileParams{
		UserId:    user.Id,
		Name:      strings.TrimSpace(req.Name),
		AvatarUrl: strings.TrimSpace(req.AvatarUrl),
	})
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUser(updated))
}

// listUsers never exposes other users' email addresses.
func (s *GoSocialApp) listUsers(w http.ResponseWriter, r *http.Request) {
	dbUsers, err := s.db.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		user := toUser(u)
		user.EmailAddress = ""
		users = append(users, user)
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *GoSocialApp) presencePing(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if err := s.db.TouchLastActive(r.Context(), userId); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
