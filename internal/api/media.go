package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/storage"
	"github.com/npezzotti/gosocial/internal/types"
)

type PushSubscribeRequest struct {
	Endpoint string         `json:"endpoint"`
	Keys     types.PushKeys `json:"keys"`
}

type PushKeyResponse struct {
	PublicKey string `json:"public_key"`
}

type UploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type CreatePostRequest struct {
	ImageUrl string `json:"image_url"`
	Caption  string `json:"caption"`
}

func (s *GoSocialApp) pushSubscribe(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if s.push == nil {
		s.writeError(w, &ApiError{StatusCode: http.StatusServiceUnavailable, Message: "push notifications not configured"})
		return
	}

	var req PushSubscribeRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	sub, err := s.push.Register(r.Context(), userId, req.Endpoint, req.Keys)
	if err != nil {
		s.writeError(w, apiErrorFrom(err))
		return
	}

	s.writeJson(w, http.StatusCreated, sub)
}

func (s *GoSocialApp) pushKey(w http.ResponseWriter, r *http.Request) {
	if s.vapidPublicKey == "" {
		s.writeError(w, NewNotFoundError())
		return
	}

	s.writeJson(w, http.StatusOK, PushKeyResponse{PublicKey: s.vapidPublicKey})
}

func (s *GoSocialApp) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	s.presignUpload(w, r, storage.AvatarPrefix)
}

func (s *GoSocialApp) uploadPost(w http.ResponseWriter, r *http.Request) {
	s.presignUpload(w, r, storage.PostPrefix)
}

func (s *GoSocialApp) presignUpload(w http.ResponseWriter, r *http.Request, prefix string) {
	userId, _ := UserId(r.Context())

	if s.uploads == nil {
		s.writeError(w, &ApiError{StatusCode: http.StatusInternalServerError, Message: "storage not configured"})
		return
	}

	var req UploadRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)
	if req.FileName == "" || req.ContentType == "" {
		s.writeError(w, NewInvalidRequestError("file_name and content_type are required"))
		return
	}

	key := storage.ObjectKey(prefix, userId, req.FileName, s.now())
	upload, err := s.uploads.PresignUpload(r.Context(), key, req.ContentType, storage.DefaultUploadTTL)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, upload)
}

func (s *GoSocialApp) listPosts(w http.ResponseWriter, r *http.Request) {
	dbPosts, err := s.db.ListPosts(r.Context())
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	posts := make([]types.Post, 0, len(dbPosts))
	for _, p := range dbPosts {
		posts = append(posts, toPost(p))
	}

	s.writeJson(w, http.StatusOK, posts)
}

func (s *GoSocialApp) createPost(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreatePostRequest
	if err := decodeJson(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.ImageUrl = strings.TrimSpace(req.ImageUrl)
	if req.ImageUrl == "" {
		s.writeError(w, NewInvalidRequestError("image_url is required"))
		return
	}

	post, err := s.db.CreatePost(r.Context(), database.CreatePostParams{
		UserId:   userId,
		ImageUrl: req.ImageUrl,
		Caption:  strings.TrimSpace(req.Caption),
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, toPost(post))
}

func toPost(p database.Post) types.Post {
	return types.Post{
		Id:        p.Id,
		UserId:    p.UserId,
		ImageUrl:  p.ImageUrl,
		Caption:   p.Caption,
		CreatedAt: p.CreatedAt,
	}
}
