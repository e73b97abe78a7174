package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
)

type RelationshipRequest struct {
	TargetId string `json:"target_id"`
	Undo     bool   `json:"undo"`
}

type FriendRequestRequest struct {
	TargetId string `json:"target_id"`
	Action   string `json:"action"`
}

type FriendRespondRequest struct {
	RequesterId string `json:"requester_id"`
	Action      string `json:"action"`
}

func parseRelationshipKind(s string) (database.RelationshipKind, bool) {
	switch kind := database.RelationshipKind(s); kind {
	case database.RelationshipLike, database.RelationshipDislike, database.RelationshipBlock:
		return kind, true
	default:
		return "", false
	}
}

// targetUser validates that targetId names another existing account.
func (s *GoSocialApp) targetUser(w http.ResponseWriter, r *http.Request, userId, targetId string) (database.User, bool) {
	if targetId == "" {
		s.writeError(w, NewInvalidRequestError("target_id is required"))
		return database.User{}, false
	}
	if targetId == userId {
		s.writeError(w, NewInvalidRequestError("target_id must not be yourself"))
		return database.User{}, false
	}

	target, err := s.db.GetAccountById(r.Context(), targetId)
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return database.User{}, false
	}

	return target, true
}

func (s *GoSocialApp) updateRelationship(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	kind, ok := parseRelationshipKind(r.PathValue("kind"))
	if !ok {
		s.writeError(w, NewNotFoundError())
		return
	}

	var req RelationshipRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	target, ok := s.targetUser(w, r, userId, strings.TrimSpace(req.TargetId))
	if !ok {
		return
	}

	var err error
	if req.Undo {
		err = s.db.RemoveRelationship(r.Context(), userId, target.Id, kind)
	} else {
		err = s.db.AddRelationship(r.Context(), userId, target.Id, kind)
	}
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoSocialApp) friendRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req FriendRequestRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	target, ok := s.targetUser(w, r, userId, strings.TrimSpace(req.TargetId))
	if !ok {
		return
	}

	switch req.Action {
	case "cancel":
		if err := s.db.DeletePendingFriendRequest(r.Context(), userId, target.Id); err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	case "", "request":
		if err := s.requestFriendship(r, userId, target.Id); err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	default:
		s.writeError(w, NewInvalidRequestError("action must be request or cancel"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requestFriendship creates a pending request from userId to targetId. A
// declined request in either direction is re-opened from userId; any other
// existing request is left as it is.
func (s *GoSocialApp) requestFriendship(r *http.Request, userId, targetId string) error {
	existing, err := s.db.GetFriendRequestBetween(r.Context(), userId, targetId)
	switch {
	case err == nil:
		if existing.Status == string(types.FriendRequestDeclined) {
			return s.db.ReopenFriendRequest(r.Context(), existing.Id, userId, targetId)
		}
		return nil
	case !errors.Is(err, database.ErrNotFound):
		return err
	}

	_, err = s.db.CreateFriendRequest(r.Context(), userId, targetId)
	if errors.Is(err, database.ErrConflict) {
		// a concurrent request for the same pair won
		return nil
	}

	return err
}

func (s *GoSocialApp) friendRespond(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req FriendRespondRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	requesterId := strings.TrimSpace(req.RequesterId)
	if requesterId == "" || requesterId == userId {
		s.writeError(w, NewInvalidRequestError("requester_id must name another user"))
		return
	}

	var status types.FriendRequestStatus
	switch req.Action {
	case "", "accept":
		status = types.FriendRequestAccepted
	case "decline":
		status = types.FriendRequestDeclined
	default:
		s.writeError(w, NewInvalidRequestError("action must be accept or decline"))
		return
	}

	pending, err := s.db.GetPendingFriendRequest(r.Context(), requesterId, userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if err := s.db.UpdateFriendRequestStatus(r.Context(), pending.Id, string(status)); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoSocialApp) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	dbRequests, err := s.db.ListFriendRequests(r.Context(), userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	requests := make([]types.FriendRequest, 0, len(dbRequests))
	for _, fr := range dbRequests {
		requests = append(requests, types.FriendRequest{
			Id:          fr.Id,
			RequesterId: fr.RequesterId,
			RecipientId: fr.RecipientId,
			Status:      types.FriendRequestStatus(fr.Status),
			CreatedAt:   fr.CreatedAt,
			UpdatedAt:   fr.UpdatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, requests)
}
