package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/gosocial/internal/config"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/server"
	"github.com/npezzotti/gosocial/internal/types"
	"go.uber.org/zap"
)

// ChatService is the chat core as used by the HTTP handlers and the
// websocket sessions they start.
type ChatService interface {
	server.ChatService
	StartConversation(ctx context.Context, userA, userB string) (types.Conversation, error)
	RecentHistory(ctx context.Context, conversationId string, limit int) ([]types.Message, error)
}

type PushRegistrar interface {
	Register(ctx context.Context, userId, endpoint string, keys types.PushKeys) (types.PushSubscription, error)
}

type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (types.Upload, error)
}

// Services groups the optional collaborators of the app. A nil Push or
// Uploads disables the routes that need them.
type Services struct {
	Chat           ChatService
	Push           PushRegistrar
	Uploads        Presigner
	VAPIDPublicKey string
}

type GoSocialApp struct {
	log            *zap.Logger
	db             database.GoSocialRepository
	srv            *http.Server
	cs             *server.ChatServer
	chat           ChatService
	push           PushRegistrar
	uploads        Presigner
	vapidPublicKey string
	signingKey     []byte
	allowedOrigins []string
	historyLimit   int
	now            func() time.Time
}

func NewGoSocialApp(mux *http.ServeMux, logger *zap.Logger, cs *server.ChatServer, db database.GoSocialRepository, svc Services, cfg *config.Config) *GoSocialApp {
	s := &GoSocialApp{
		log:            logger,
		db:             db,
		cs:             cs,
		chat:           svc.Chat,
		push:           svc.Push,
		uploads:        svc.Uploads,
		vapidPublicKey: svc.VAPIDPublicKey,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		historyLimit:   cfg.HistoryLimit,
		now:            time.Now,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/signup", s.signup)
	mux.HandleFunc("POST /api/auth/signin", s.signin)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/profile", s.authMiddleware(s.getProfile))
	mux.HandleFunc("PUT /api/profile", s.authMiddleware(s.updateProfile))
	mux.HandleFunc("GET /api/users", s.authMiddleware(s.listUsers))
	mux.HandleFunc("POST /api/relationships/{kind}", s.authMiddleware(s.updateRelationship))
	mux.HandleFunc("POST /api/friends/request", s.authMiddleware(s.friendRequest))
	mux.HandleFunc("POST /api/friends/respond", s.authMiddleware(s.friendRespond))
	mux.HandleFunc("GET /api/friends", s.authMiddleware(s.listFriendRequests))
	mux.HandleFunc("POST /api/chats/start", s.authMiddleware(s.startChat))
	mux.HandleFunc("GET /api/chats/{chatId}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/chats/{chatId}/messages", s.authMiddleware(s.postMessage))
	mux.HandleFunc("POST /api/push/subscribe", s.authMiddleware(s.pushSubscribe))
	mux.HandleFunc("GET /api/push/key", s.pushKey)
	mux.HandleFunc("POST /api/uploads/avatar", s.authMiddleware(s.uploadAvatar))
	mux.HandleFunc("POST /api/uploads/post", s.authMiddleware(s.uploadPost))
	mux.HandleFunc("GET /api/posts", s.authMiddleware(s.listPosts))
	mux.HandleFunc("POST /api/posts", s.authMiddleware(s.createPost))
	mux.HandleFunc("POST /api/presence/ping", s.authMiddleware(s.presencePing))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(zap.NewStdLog(logger.Named("access")).Writer(), h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *GoSocialApp) Start() error {
	s.log.Info("starting server", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

func (s *GoSocialApp) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
