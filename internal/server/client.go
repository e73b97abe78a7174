package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/types"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	requestTimeout = 10 * time.Second
	sendBufferSize = 256
)

// ChatService is what a session needs from the chat core.
type ChatService interface {
	Conversation(ctx context.Context, conversationId string) (types.Conversation, error)
	Send(ctx context.Context, conversationId string, sender types.User, text string) (types.Message, error)
}

// Client is one websocket session of an authenticated user.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	chat       ChatService
	log        *zap.Logger
	user       types.User
	send       chan *ServerMessage
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, chat ChatService, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		chat:       chat,
		log:        logger.With(zap.String("session_id", id), zap.String("user_id", user.Id)),
		user:       user,
		send:       make(chan *ServerMessage, sendBufferSize),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

// Queue never blocks; a full send buffer drops msg.
func (c *Client) Queue(msg *ServerMessage) bool {
	return c.queueMessage(msg)
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Error("failed to serialize message", zap.Error(err))
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn("ws read", zap.Error(err))
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug("error parsing message", zap.Error(err))
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}
		msg.Timestamp = Now()

		c.handle(&msg)
	}
}

func (c *Client) handle(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch {
	case msg.Join != nil:
		c.joinConversation(ctx, msg)
	case msg.Leave != nil:
		c.leaveConversation(msg)
	case msg.Publish != nil:
		c.publish(ctx, msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) joinConversation(ctx context.Context, msg *ClientMessage) {
	conversationId := msg.Join.ConversationId

	conv, err := c.chat.Conversation(ctx, conversationId)
	if err != nil {
		c.queueMessage(c.errorFrame(msg.Id, err))
		return
	}
	if !conv.HasParticipant(c.user.Id) {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	if err := c.chatServer.Join(ctx, c, conv.Id, msg.Id); err != nil {
		c.log.Error("join failed", zap.String("conversation_id", conv.Id), zap.Error(err))
		c.queueMessage(ErrInternalError(msg.Id))
	}
}

func (c *Client) leaveConversation(msg *ClientMessage) {
	c.chatServer.Leave(c, msg.Leave.ConversationId)
	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"conversation_id": msg.Leave.ConversationId,
	}))
}

func (c *Client) publish(ctx context.Context, msg *ClientMessage) {
	conversationId := msg.Publish.ConversationId
	if !c.chatServer.IsMember(c, conversationId) {
		c.queueMessage(ErrConversationNotFound(msg.Id))
		return
	}

	m, err := c.chat.Send(ctx, conversationId, c.user, msg.Publish.Text)
	if err != nil {
		c.queueMessage(c.errorFrame(msg.Id, err))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id, map[string]any{
		"message_id": m.Id,
	}))
}

func (c *Client) errorFrame(id int, err error) *ServerMessage {
	var (
		validationErr *chat.ValidationError
		notFoundErr   *chat.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		return ErrBadRequest(id, validationErr.Error())
	case errors.As(err, &notFoundErr):
		return ErrConversationNotFound(id)
	case errors.Is(err, chat.ErrNotParticipant):
		return ErrForbidden(id)
	default:
		c.log.Error("request failed", zap.Int("request_id", id), zap.Error(err))
		return ErrInternalError(id)
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Debug("write message", zap.Error(err))
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.chatServer.deregisterClient(c)
	c.chatServer.Disconnect(c)
	c.stopClient()
}
