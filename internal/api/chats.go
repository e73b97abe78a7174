package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/gosocial/internal/server"
	"github.com/npezzotti/gosocial/internal/types"
	"go.uber.org/zap"
)

type StartChatRequest struct {
	TargetId string `json:"target_id"`
}

type StartChatResponse struct {
	ConversationId string `json:"conversation_id"`
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

type MessagesResponse struct {
	Messages []types.Message `json:"messages"`
}

func (s *GoSocialApp) startChat(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req StartChatRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	target, ok := s.targetUser(w, r, userId, strings.TrimSpace(req.TargetId))
	if !ok {
		return
	}

	blocked, err := s.db.IsBlockedBetween(r.Context(), userId, target.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if blocked {
		s.writeError(w, NewForbiddenError())
		return
	}

	conv, err := s.chat.StartConversation(r.Context(), userId, target.Id)
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return
	}

	s.writeJson(w, http.StatusOK, StartChatResponse{ConversationId: conv.Id})
}

// getMessages is the polling read path: the recent window, oldest first.
func (s *GoSocialApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	limit := s.historyLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			s.writeError(w, NewInvalidRequestError("limit must be an integer"))
			return
		}
		limit = n
	}

	conv, err := s.chat.Conversation(r.Context(), r.PathValue("chatId"))
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return
	}
	if !conv.HasParticipant(userId) {
		s.writeError(w, NewForbiddenError())
		return
	}

	messages, err := s.chat.RecentHistory(r.Context(), conv.Id, limit)
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return
	}

	s.writeJson(w, http.StatusOK, MessagesResponse{Messages: messages})
}

func (s *GoSocialApp) postMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	msg, err := s.chat.Send(r.Context(), r.PathValue("chatId"), toUser(user), req.Text)
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *GoSocialApp) serveWs(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("error upgrading connection", zap.Error(err))
		return
	}

	client := server.NewClient(toUser(user), conn, s.cs, s.chat, s.log.Named("session"))

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
