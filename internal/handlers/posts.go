package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/murmurnet/murmur/internal/models"
)

const postsPerPage = 8

// ListPostsHandler returns one page of posts, newest first.
func (h *Handler) ListPostsHandler(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	posts, err := h.store.ListPosts(r.Context(), page, postsPerPage)
	if err != nil {
		h.internalError(w, err, "list posts")
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"posts": posts, "page": page})
}

// SearchPostsHandler matches a query against titles and bodies, optionally
// filtered by tags.
func (h *Handler) SearchPostsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	posts, err := h.store.SearchPosts(r.Context(), query, tags)
	if err != nil {
		h.internalError(w, err, "search posts")
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GetPostHandler returns one post with its likes and comments.
func (h *Handler) GetPostHandler(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}
	post, err := h.store.GetPostByID(r.Context(), postID)
	if err != nil {
		h.internalError(w, err, "get post")
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "Post not found.")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// CreatePostHandler creates a post owned by the caller.
func (h *Handler) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string   `json:"title"`
		Body  string   `json:"body"`
		Tags  []string `json:"tags"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	post := &models.Post{
		CreatorID: userID,
		Title:     req.Title,
		Body:      req.Body,
		Tags:      req.Tags,
	}
	if err := models.ValidatePost(post); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	if err := h.store.CreatePost(r.Context(), post); err != nil {
		h.internalError(w, err, "create post")
		return
	}
	post.Likes = []uuid.UUID{}
	post.Comments = []*models.Comment{}
	respondJSON(w, http.StatusCreated, post)
}

// UpdatePostHandler edits a post; only the creator may.
func (h *Handler) UpdatePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), postID)
	if err != nil {
		h.internalError(w, err, "get post")
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "Post not found.")
		return
	}
	if post.CreatorID != userID {
		respondError(w, http.StatusForbidden, "Only the creator can edit this post.")
		return
	}

	var req struct {
		Title string   `json:"title"`
		Body  string   `json:"body"`
		Tags  []string `json:"tags"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	post.Title = req.Title
	post.Body = req.Body
	post.Tags = req.Tags
	if err := models.ValidatePost(post); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	if err := h.store.UpdatePost(r.Context(), post); err != nil {
		h.internalError(w, err, "update post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// DeletePostHandler removes a post; only the creator may.
func (h *Handler) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), postID)
	if err != nil {
		h.internalError(w, err, "get post")
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "Post not found.")
		return
	}
	if post.CreatorID != userID {
		respondError(w, http.StatusForbidden, "Only the creator can delete this post.")
		return
	}

	if err := h.store.DeletePost(r.Context(), postID); err != nil {
		h.internalError(w, err, "delete post")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Post deleted."})
}

// LikePostHandler toggles the caller's membership in the post's like set.
// Liking someone else's post notifies the creator.
func (h *Handler) LikePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), postID)
	if err != nil {
		h.internalError(w, err, "get post")
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "Post not found.")
		return
	}

	liked, err := h.store.TogglePostLike(r.Context(), postID, userID)
	if err != nil {
		h.internalError(w, err, "toggle like")
		return
	}

	if liked {
		actor, err := h.store.GetUserByID(r.Context(), userID)
		if err == nil && actor != nil {
			if _, err := h.dispatcher.DispatchSocial(r.Context(), &models.Notification{
				RecipientID: post.CreatorID,
				SenderID:    userID,
				SenderName:  actor.Name,
				PostID:      &postID,
				Type:        models.NotificationLike,
				Message:     fmt.Sprintf("%s liked your post", actor.Name),
			}); err != nil {
				h.log.Error().Err(err).Msg("dispatch like notification")
			}
		}
	}

	post, err = h.store.GetPostByID(r.Context(), postID)
	if err != nil || post == nil {
		h.internalError(w, err, "reload post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// CommentPostHandler appends a comment, snapshotting the caller's name at
// comment time, and notifies the post creator.
func (h *Handler) CommentPostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), postID)
	if err != nil {
		h.internalError(w, err, "get post")
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "Post not found.")
		return
	}

	actor, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		h.internalError(w, err, "load commenter")
		return
	}
	if actor == nil {
		respondError(w, http.StatusUnauthorized, "Account no longer exists.")
		return
	}

	comment := &models.Comment{
		PostID:     postID,
		AuthorID:   userID,
		AuthorName: actor.Name,
		Text:       req.Text,
	}
	if err := models.ValidateComment(comment); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.AddComment(r.Context(), comment); err != nil {
		h.internalError(w, err, "add comment")
		return
	}

	if _, err := h.dispatcher.DispatchSocial(r.Context(), &models.Notification{
		RecipientID: post.CreatorID,
		SenderID:    userID,
		SenderName:  actor.Name,
		PostID:      &postID,
		Type:        models.NotificationComment,
		Message:     fmt.Sprintf("%s commented on your post", actor.Name),
	}); err != nil {
		h.log.Error().Err(err).Msg("dispatch comment notification")
	}

	post, err = h.store.GetPostByID(r.Context(), postID)
	if err != nil || post == nil {
		h.internalError(w, err, "reload post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// LikeCommentHandler toggles the caller's like on a comment.
func (h *Handler) LikeCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	postID, ok := pathID(w, vars, "id")
	if !ok {
		return
	}
	commentID, ok := pathID(w, vars, "commentId")
	if !ok {
		return
	}

	if _, err := h.store.ToggleCommentLike(r.Context(), commentID, userID); err != nil {
		h.internalError(w, err, "toggle comment like")
		return
	}

	post, err := h.store.GetPostByID(r.Context(), postID)
	if err != nil || post == nil {
		h.internalError(w, err, "reload post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// SharePostHandler bumps the share counter.
func (h *Handler) SharePostHandler(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), postID)
	if err != nil {
		h.internalError(w, err, "get post")
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "Post not found.")
		return
	}

	count, err := h.store.IncrementShareCount(r.Context(), postID)
	if err != nil {
		h.internalError(w, err, "increment share count")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"shareCount": count})
}
