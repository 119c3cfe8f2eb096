package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"birdDexAPI/internal/dex"
	"birdDexAPI/internal/types/photo"
	"birdDexAPI/middleware"
	"birdDexAPI/services"

	"github.com/gorilla/mux"
)

type DexHandler struct {
	dexService *services.DexService
}

func NewDexHandler(dexService *services.DexService) *DexHandler {
	return &DexHandler{
		dexService: dexService,
	}
}

// GetDex returns the caller's species grid, or a friend's when the userId
// query parameter is set.
func (h *DexHandler) GetDex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ownerID := r.URL.Query().Get("userId")

	entries, err := h.dexService.GetDex(ctx, clerkID, ownerID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func (h *DexHandler) SetTopPhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req dex.SetTopPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.dexService.SetTopPhoto(ctx, clerkID, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Top photo updated"})
}

func (h *DexHandler) HideFromSpeciesView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	if err := h.dexService.HideFromSpeciesView(ctx, clerkID, photoID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Photo hidden from species view"})
}

func (h *DexHandler) UnhideFromSpeciesView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	if err := h.dexService.UnhideFromSpeciesView(ctx, clerkID, photoID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Photo restored to species view"})
}

func (h *DexHandler) ReassignSpecies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	var req photo.ReassignSpeciesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.dexService.ReassignSpecies(ctx, clerkID, photoID, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Species reassigned"})
}
