package http

import (
	"net/http"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
)

// Handler exposes the assessment use cases over REST.
// Whether students see answer correctness before submitting is decided by the service.
type Handler struct {
	service *app.Service
	auth    *Authenticator
	ws      *WSHandler
}

func NewHandler(service *app.Service, auth *Authenticator, ws *WSHandler) *Handler {
	return &Handler{service: service, auth: auth, ws: ws}
}

// Routes builds the full mux; everything but /healthz requires a token.
func (h *Handler) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /assessments", requireRole(domain.RoleTeacher, h.createAssessment))
	api.HandleFunc("POST /assessments/{id}/questions", requireRole(domain.RoleTeacher, h.addQuestion))
	api.HandleFunc("POST /assessments/{id}/questions/create", requireRole(domain.RoleTeacher, h.createQuestion))
	api.HandleFunc("PATCH /assessments/{id}/start", requireRole(domain.RoleTeacher, h.startAssessment))
	api.HandleFunc("GET /assessments/{id}", anyRole(h.assessmentDetail))
	api.HandleFunc("GET /classrooms/{id}/assessments", anyRole(h.listForClassroom))
	api.HandleFunc("POST /assessments/{id}/attempt", requireRole(domain.RoleStudent, h.startAttempt))
	api.HandleFunc("POST /attempts/{id}/answer", requireRole(domain.RoleStudent, h.recordAnswer))
	api.HandleFunc("POST /attempts/{id}/submit", requireRole(domain.RoleStudent, h.finalizeAttempt))
	api.HandleFunc("GET /attempts/{id}", requireRole(domain.RoleStudent, h.attemptDetail))
	api.HandleFunc("GET /attempts/{id}/report", requireRole(domain.RoleStudent, h.attemptReport))
	api.HandleFunc("GET /assessments/{id}/leaderboard", anyRole(h.leaderboard))
	api.HandleFunc("GET /assessments/{id}/report", requireRole(domain.RoleTeacher, h.assessmentReport))
	api.HandleFunc("GET /assessments/{id}/analytics", requireRole(domain.RoleTeacher, h.analytics))
	api.HandleFunc("GET /assessments/{id}/monitor", requireRole(domain.RoleTeacher, h.monitor))
	api.HandleFunc("POST /practice", requireRole(domain.RoleStudent, h.createPractice))
	api.HandleFunc("GET /practice", requireRole(domain.RoleStudent, h.practiceHistory))
	api.HandleFunc("GET /practice/questions", requireRole(domain.RoleStudent, h.practiceQuestions))
	if h.ws != nil {
		api.HandleFunc("GET /ws", anyRole(h.ws.ServeWS))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/", h.auth.Middleware(api))
	return mux
}

func (h *Handler) createAssessment(w http.ResponseWriter, r *http.Request, caller Caller) {
	var in app.NewAssessment
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.service.CreateAssessment(r.Context(), caller.UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type addQuestionRequest struct {
	QuestionID string `json:"questionId"`
	Order      int    `json:"order"`
}

func (h *Handler) addQuestion(w http.ResponseWriter, r *http.Request, caller Caller) {
	var in addQuestionRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.QuestionID == "" {
		writeError(w, r, domain.NewValidationError(domain.FieldError{Field: "questionId", Error: "required"}))
		return
	}
	link, err := h.service.AddQuestion(r.Context(), caller.UserID, r.PathValue("id"), in.QuestionID, in.Order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request, caller Caller) {
	var in app.NewQuestion
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.service.CreateQuestion(r.Context(), caller.UserID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) startAssessment(w http.ResponseWriter, r *http.Request, caller Caller) {
	a, err := h.service.StartAssessment(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) assessmentDetail(w http.ResponseWriter, r *http.Request, caller Caller) {
	detail, err := h.service.AssessmentDetail(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) listForClassroom(w http.ResponseWriter, r *http.Request, caller Caller) {
	list, err := h.service.ListForClassroom(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request, caller Caller) {
	state, err := h.service.StartAttempt(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Selected   string `json:"selected"`
	TimeSpent  int    `json:"timeSpent"`
}

func (h *Handler) recordAnswer(w http.ResponseWriter, r *http.Request, caller Caller) {
	var in answerRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.QuestionID == "" {
		writeError(w, r, domain.NewValidationError(domain.FieldError{Field: "questionId", Error: "required"}))
		return
	}
	ans, err := h.service.RecordAnswer(r.Context(), caller.UserID, r.PathValue("id"), in.QuestionID, in.Selected, in.TimeSpent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Answers are only recorded on open attempts.
	writeJSON(w, http.StatusOK, ans.View(h.service.RevealsCorrectness()))
}

func (h *Handler) finalizeAttempt(w http.ResponseWriter, r *http.Request, caller Caller) {
	attempt, err := h.service.FinalizeAttempt(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) attemptDetail(w http.ResponseWriter, r *http.Request, caller Caller) {
	detail, err := h.service.AttemptDetail(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) attemptReport(w http.ResponseWriter, r *http.Request, caller Caller) {
	report, err := h.service.AttemptReport(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request, _ Caller) {
	lb, err := h.service.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) assessmentReport(w http.ResponseWriter, r *http.Request, caller Caller) {
	report, err := h.service.AssessmentReport(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request, caller Caller) {
	stats, err := h.service.Analytics(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) monitor(w http.ResponseWriter, r *http.Request, caller Caller) {
	m, err := h.service.Monitor(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) createPractice(w http.ResponseWriter, r *http.Request, caller Caller) {
	var in app.NewPractice
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.service.CreatePractice(r.Context(), caller.UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) practiceHistory(w http.ResponseWriter, r *http.Request, caller Caller) {
	list, err := h.service.PracticeHistory(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) practiceQuestions(w http.ResponseWriter, r *http.Request, caller Caller) {
	list, err := h.service.PracticeQuestions(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
