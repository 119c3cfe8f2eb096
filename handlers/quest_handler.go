package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"birdDexAPI/internal/quest"
	"birdDexAPI/middleware"
	"birdDexAPI/services"

	"github.com/gorilla/mux"
)

type QuestHandler struct {
	questService *services.QuestService
	userService  *services.UserService
}

func NewQuestHandler(questService *services.QuestService, userService *services.UserService) *QuestHandler {
	return &QuestHandler{
		questService: questService,
		userService:  userService,
	}
}

func (h *QuestHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := middleware.GetClerkID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	quests, err := h.questService.ListQuests(ctx)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, quests)
}

func (h *QuestHandler) GetQuest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	questID := mux.Vars(r)["id"]

	detail, err := h.questService.GetQuest(ctx, clerkID, questID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

func (h *QuestHandler) CreateQuest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if _, err := h.userService.RequireAdmin(ctx, clerkID); err != nil {
		respondWithError(w, http.StatusForbidden, "Admin permission required")
		return
	}

	var req quest.CreateQuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	q, err := h.questService.CreateQuest(ctx, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, q)
}

func (h *QuestHandler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	questID := mux.Vars(r)["id"]

	var req quest.SubmitEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log.Printf("SubmitEntry Handler: %s enters quest %s with photo %s", clerkID, questID, req.PhotoID)

	entry, err := h.questService.SubmitEntry(ctx, clerkID, questID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}

func (h *QuestHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	questID := mux.Vars(r)["id"]

	var req quest.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.questService.CastVote(ctx, clerkID, questID, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Vote recorded"})
}

func (h *QuestHandler) SetWinner(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if _, err := h.userService.RequireAdmin(ctx, clerkID); err != nil {
		respondWithError(w, http.StatusForbidden, "Admin permission required")
		return
	}

	questID := mux.Vars(r)["id"]

	var req quest.SetWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.questService.SetWinner(ctx, questID, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Winner set"})
}

// GetShareQR returns a base64 PNG deep-link QR for sharing a quest.
func (h *QuestHandler) GetShareQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := middleware.GetClerkID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	questID := mux.Vars(r)["id"]

	qr, err := h.questService.GenerateShareQR(ctx, questID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"qr_code": qr})
}
