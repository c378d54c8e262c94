package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dreampastry/qualibot/internal/flow"
	"github.com/dreampastry/qualibot/internal/models"
)

// createConversationRequest is the body of POST /conversations.
type createConversationRequest struct {
	Profile models.ClientProfile `json:"profile"`
}

// createConversationResponse carries the new conversation id plus the
// pre-qualification guidance shown before the questionnaire starts.
type createConversationResponse struct {
	ConversationID string             `json:"conversation_id"`
	Eligibility    models.Eligibility `json:"eligibility"`
	Financing      string             `json:"financing"`
}

// createConversationHandler opens a conversation for a prospect profile.
func (s *Server) createConversationHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createConversationHandler: received request", "method", r.Method, "path", r.URL.Path)

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Server.createConversationHandler: invalid JSON body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if err := req.Profile.Validate(); err != nil {
		slog.Error("Server.createConversationHandler: invalid profile", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	id := uuid.NewString()
	s.register(id, &conversation{
		profile: req.Profile,
		session: models.NewQualificationSession(),
	})

	eligibility := flow.CheckEligibility(req.Profile)
	resp := createConversationResponse{
		ConversationID: id,
		Eligibility:    eligibility,
		Financing:      flow.FinancingGuidance(req.Profile, eligibility.UnmetCriteria),
	}
	slog.Info("Server.createConversationHandler: conversation created", "conversationID", id, "client", req.Profile.FullName(), "eligible", eligibility.Eligible)
	writeJSONResponse(w, http.StatusCreated, models.Success(resp))
}

// turnRequest is the body of POST /conversations/{id}/turns. The answer is
// empty on the opening turn.
type turnRequest struct {
	Answer string `json:"answer"`
}

// turnHandler runs one qualification turn. Turns on the same conversation are
// serialized; a turn arriving while another is in flight gets a 409.
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.turnHandler: received request", "conversationID", id)

	conv := s.lookup(id)
	if conv == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Server.turnHandler: invalid JSON body", "conversationID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}

	if !conv.mu.TryLock() {
		slog.Warn("Server.turnHandler: turn already in flight", "conversationID", id)
		writeJSONResponse(w, http.StatusConflict, models.Error(models.ErrTurnInProgress.Error()))
		return
	}
	defer conv.mu.Unlock()

	message, notifiable, terminal := s.engine.Advance(r.Context(), conv.profile, req.Answer, conv.session)
	result := models.TurnResult{Message: message, Notifiable: notifiable, Terminal: terminal}
	slog.Info("Server.turnHandler: turn processed", "conversationID", id, "terminal", terminal)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// availabilityHandler answers GET /formations/availability?name=<pattern>.
func (s *Server) availabilityHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("name query parameter is required"))
		return
	}

	availability, err := s.st.CheckAvailability(r.Context(), name)
	if err != nil {
		slog.Error("Server.availabilityHandler: availability check failed", "name", name, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to check availability"))
		return
	}
	if !availability.Found {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrFormationNotFound.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(availability))
}

// metricsHandler answers GET /analytics/metrics?days=<n>.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	days := DefaultMetricsWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("days must be a positive integer"))
			return
		}
		days = parsed
	}

	metrics, err := s.st.GetAnalyticsMetrics(r.Context(), days)
	if err != nil {
		slog.Error("Server.metricsHandler: metrics query failed", "days", days, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to compute metrics"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(metrics))
}
