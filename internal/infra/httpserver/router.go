package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appfeedback "github.com/inkwise/inkwise-backend/internal/application/feedback"
	"github.com/inkwise/inkwise-backend/internal/application/pipeline"
	domai "github.com/inkwise/inkwise-backend/internal/domain/ai"
	"github.com/inkwise/inkwise-backend/internal/domain/entitlements"
	"github.com/inkwise/inkwise-backend/internal/domain/events"
	"github.com/inkwise/inkwise-backend/internal/domain/submissions"
	"github.com/inkwise/inkwise-backend/internal/middleware"
)

// Deps are the wired collaborators for the HTTP surface.
type Deps struct {
	Pipeline     *pipeline.Service
	Feedback     *appfeedback.Service // nil disables the feedback endpoints
	Submissions  submissions.Repository
	Entitlements entitlements.Repository

	WebhookSecret string
	APIKeys       map[string]string
	Health        map[string]middleware.HealthChecker
}

type Router struct {
	deps Deps
}

func NewRouter(deps Deps) http.Handler {
	r := &Router{deps: deps}
	mux := chi.NewRouter()

	mux.Get("/health", middleware.HealthHandler(deps.Health))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Group(func(g chi.Router) {
		g.Use(middleware.WebhookAuth(deps.WebhookSecret))
		g.Post("/v1/events/database", r.handleChangeEvent)
	})

	mux.Group(func(g chi.Router) {
		g.Use(middleware.APIKeyAuth(deps.APIKeys))
		g.Get("/v1/submissions/latest", r.wrap(r.handleLatestSubmissions))
		g.Get("/v1/submissions/{id}", r.wrap(r.handleGetSubmission))
		g.Get("/v1/entitlements/{userID}", r.wrap(r.handleGetEntitlement))
		g.Put("/v1/entitlements/{userID}/plan", r.wrap(r.handleUpdatePlan))
		g.Post("/v1/feedback", r.wrap(r.handleGenerateFeedback))
		g.Get("/v1/feedback/{submissionID}", r.wrap(r.handleGetFeedback))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows), errors.Is(err, entitlements.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.Is(err, appfeedback.ErrNotReady):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// webhookResponse is the shaped body of every change-event reply.
// Business denial travels as success=false with HTTP 200; HTTP 500 is
// reserved for unexpected faults.
type webhookResponse struct {
	Success      bool   `json:"success"`
	Outcome      string `json:"outcome,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
}

func writeWebhookResponse(w http.ResponseWriter, status int, resp webhookResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// POST /v1/events/database
// The body is read exactly once; every later stage works from the parsed
// event, including the failure path.
func (r *Router) handleChangeEvent(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeWebhookResponse(w, http.StatusInternalServerError, webhookResponse{Error: "read request body: " + err.Error()})
		return
	}

	evt, err := events.Parse(body)
	if err != nil {
		writeWebhookResponse(w, http.StatusBadRequest, webhookResponse{Error: err.Error()})
		return
	}

	out, err := r.deps.Pipeline.Process(req.Context(), evt)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		writeWebhookResponse(w, http.StatusInternalServerError, webhookResponse{
			SubmissionID: out.SubmissionID,
			Error:        err.Error(),
		})
		return
	}

	switch out.Code {
	case pipeline.OutcomeIgnored:
		middleware.IncrementEventsIgnored()
	case pipeline.OutcomeDenied:
		middleware.IncrementAnalysesDenied()
	case pipeline.OutcomeCompleted:
		middleware.IncrementAnalysesCompleted()
	}

	writeWebhookResponse(w, http.StatusOK, webhookResponse{
		Success:      !out.Denied(),
		Outcome:      string(out.Code),
		SubmissionID: out.SubmissionID,
		Reason:       out.Reason,
	})
}

// GET /v1/submissions/{id}
func (r *Router) handleGetSubmission(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSubmissionID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	sub, err := r.deps.Submissions.Get(req.Context(), submissions.SubmissionID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(sub)
}

// GET /v1/submissions/latest?user_id=&limit=20
func (r *Router) handleLatestSubmissions(w http.ResponseWriter, req *http.Request) error {
	userID := req.URL.Query().Get("user_id")
	if err := middleware.ValidateUserID(userID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.deps.Submissions.Latest(req.Context(), userID, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/entitlements/{userID}
func (r *Router) handleGetEntitlement(w http.ResponseWriter, req *http.Request) error {
	userID := chi.URLParam(req, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	ent, err := r.deps.Entitlements.GetByUser(req.Context(), userID)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(ent)
}

// PUT /v1/entitlements/{userID}/plan
// Body: {"active_plan_id": "...", "remaining_analyses": 30, "current_period_end": "..."}
// Null fields mean no plan / unlimited / open-ended respectively.
func (r *Router) handleUpdatePlan(w http.ResponseWriter, req *http.Request) error {
	userID := chi.URLParam(req, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	var body struct {
		ActivePlanID      *string    `json:"active_plan_id"`
		RemainingAnalyses *int64     `json:"remaining_analyses"`
		CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	if err := r.deps.Entitlements.UpdateActivePlan(req.Context(), userID, body.ActivePlanID, body.RemainingAnalyses, body.CurrentPeriodEnd); err != nil {
		return err
	}

	ent, err := r.deps.Entitlements.GetByUser(req.Context(), userID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(ent)
}

// POST /v1/feedback
// Body: {"submission_id": "<id>"}
func (r *Router) handleGenerateFeedback(w http.ResponseWriter, req *http.Request) error {
	if r.deps.Feedback == nil {
		http.Error(w, "feedback is not configured", http.StatusServiceUnavailable)
		return nil
	}

	var body struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	if err := middleware.ValidateSubmissionID(body.SubmissionID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	fb, err := r.deps.Feedback.GenerateAndStore(req.Context(), body.SubmissionID)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(fb)
}

// GET /v1/feedback/{submissionID}
func (r *Router) handleGetFeedback(w http.ResponseWriter, req *http.Request) error {
	if r.deps.Feedback == nil {
		http.Error(w, "feedback is not configured", http.StatusServiceUnavailable)
		return nil
	}

	id := chi.URLParam(req, "submissionID")
	if err := middleware.ValidateSubmissionID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	fb, err := r.deps.Feedback.LatestBySubmission(req.Context(), id)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(fb)
}
