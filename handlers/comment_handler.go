package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"birdDexAPI/internal/types/comment"
	"birdDexAPI/middleware"
	"birdDexAPI/services"

	"github.com/gorilla/mux"
)

type CommentHandler struct {
	commentService *services.CommentService
	userService    *services.UserService
}

func NewCommentHandler(commentService *services.CommentService, userService *services.UserService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		userService:    userService,
	}
}

func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	comments, err := h.commentService.ListComments(ctx, clerkID, photoID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	var req comment.AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.commentService.AddComment(ctx, clerkID, photoID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	commentID := mux.Vars(r)["commentId"]

	isAdmin := false
	if u, err := h.userService.GetUserByClerkID(ctx, clerkID); err == nil {
		isAdmin = u.IsAdmin
	}

	if err := h.commentService.DeleteComment(ctx, clerkID, commentID, isAdmin); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted"})
}
