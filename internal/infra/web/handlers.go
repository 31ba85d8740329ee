package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/usecase"
)

type newJobRequest struct {
	Kind    model.JobKind   `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleNewJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Accept either {"kind": ..., "payload": {...}} or a bare trajectory
	// session payload.
	var req newJobRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.Payload) == 0 {
		req = newJobRequest{Kind: model.JobKindTrajectorySession, Payload: body}
	}
	if req.Kind == "" {
		req.Kind = model.JobKindTrajectorySession
	}

	jobID, err := s.jobUC.NewJobRequest(r.Context(), UserID(r.Context()), req.Kind, req.Payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobUC.GetJobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleJobInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.jobUC.GetJobInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		// An in-flight job is a normal outcome, reported as a sentinel body
		// rather than an error status.
		if errors.Is(err, domain.ErrJobNotCompleted) {
			writeJSON(w, http.StatusOK, map[string]string{"error": "job not completed"})
			return
		}
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(info)
}

type jobView struct {
	ID     string          `json:"id"`
	Kind   model.JobKind   `json:"kind"`
	Status model.JobStatus `json:"status"`
	Price  float64         `json:"price"`
	Submit time.Time       `json:"submit"`
	Start  *time.Time      `json:"start,omitempty"`
	End    *time.Time      `json:"end,omitempty"`
}

func (s *Server) handleUserJobs(w http.ResponseWriter, r *http.Request) {
	tMin, tMax, err := submitRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.jobUC.GetUserJobs(r.Context(), UserID(r.Context()), tMin, tMax)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView{
			ID:     j.ID,
			Kind:   j.Kind,
			Status: j.Status,
			Price:  model.MicrosToCredits(j.PriceMicros),
			Submit: j.Submit,
			Start:  j.Start,
			End:    j.End,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	tMin, tMax, err := submitRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// One list query serves all three reductions.
	jobs, err := s.jobUC.GetUserJobs(r.Context(), UserID(r.Context()), tMin, tMax)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]usecase.Stats{
		"time_queue":   usecase.Statistics(jobs, (*model.Job).QueueTime),
		"time_process": usecase.Statistics(jobs, (*model.Job).ProcessTime),
		"time_total":   usecase.Statistics(jobs, (*model.Job).TotalTime),
	})
}

func (s *Server) handleUserCredit(w http.ResponseWriter, r *http.Request) {
	view, err := s.userUC.GetUserCredit(r.Context(), UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCreditView(w, view)
}

type chargeCreditRequest struct {
	Email  string  `json:"email"`
	Amount float64 `json:"amount"` // decimal credits; negative charges, positive tops up
}

func (s *Server) handleChargeCredit(w http.ResponseWriter, r *http.Request) {
	var req chargeCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := s.userUC.ChargeCredit(r.Context(), model.CreditsToMicros(req.Amount), req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCreditView(w, view)
}

// ----- helpers -----

func submitRange(r *http.Request) (*time.Time, *time.Time, error) {
	parse := func(name string) (*time.Time, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New(name + " must be RFC3339")
		}
		return &t, nil
	}
	tMin, err := parse("from")
	if err != nil {
		return nil, nil, err
	}
	tMax, err := parse("to")
	if err != nil {
		return nil, nil, err
	}
	return tMin, tMax, nil
}

func writeCreditView(w http.ResponseWriter, view *usecase.CreditView) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username": view.Username,
		"email":    view.Email,
		"credit":   view.Credit(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrUnknownJobKind),
		errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientCredit):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTransport):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
