package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"birdDexAPI/internal/types/photo"
	"birdDexAPI/middleware"
	"birdDexAPI/services"

	"github.com/gorilla/mux"
)

type PhotoHandler struct {
	photoService *services.PhotoService
	userService  *services.UserService
}

func NewPhotoHandler(photoService *services.PhotoService, userService *services.UserService) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
		userService:  userService,
	}
}

// CreateUploadURL hands the client presigned PUT URLs; image bytes go
// straight to the bucket, never through this API. Presigning talks to S3
// so it gets a longer timeout than the usual 5s.
func (h *PhotoHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req photo.UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.photoService.CreateUploadURL(ctx, clerkID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *PhotoHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req photo.ConfirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.photoService.ConfirmUpload(ctx, clerkID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	speciesID := r.URL.Query().Get("species")

	photos, err := h.photoService.ListPhotos(ctx, clerkID, speciesID, limit, offset)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, photos)
}

func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	p, err := h.photoService.GetPhoto(ctx, clerkID, photoID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *PhotoHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	feed, err := h.photoService.GetFeed(ctx, clerkID, limit, offset)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, feed)
}

func (h *PhotoHandler) SetFeedVisibility(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	var req photo.VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.HiddenFromFeed == nil {
		respondWithError(w, http.StatusBadRequest, "hiddenFromFeed is required")
		return
	}

	if err := h.photoService.SetFeedVisibility(ctx, clerkID, photoID, *req.HiddenFromFeed); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Visibility updated"})
}

// DeletePhoto deletes the photo, or hides it when quest entries still
// reference it. The response reports which happened.
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	isAdmin := false
	if u, err := h.userService.GetUserByClerkID(ctx, clerkID); err == nil {
		isAdmin = u.IsAdmin
	}

	result, err := h.photoService.DeleteOrHidePhoto(ctx, clerkID, photoID, isAdmin)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
