package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/domain"
)

// Handler exposes the services over JSON. Every route except register,
// login and refresh resolves the bearer token to a user first.
type Handler struct {
	users     *app.UserService
	companies *app.CompanyService
	quizzes   *app.QuizService
	scoring   *app.ScoringService
	analytics *app.AnalyticsService
}

func NewHandler(
	users *app.UserService,
	companies *app.CompanyService,
	quizzes *app.QuizService,
	scoring *app.ScoringService,
	analytics *app.AnalyticsService,
) *Handler {
	return &Handler{
		users:     users,
		companies: companies,
		quizzes:   quizzes,
		scoring:   scoring,
		analytics: analytics,
	}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("GET /auth/me", h.authed(h.me))

	mux.HandleFunc("GET /users", h.authed(h.listUsers))
	mux.HandleFunc("GET /users/{id}", h.authed(h.getUser))
	mux.HandleFunc("PUT /users/me", h.authed(h.updateMe))
	mux.HandleFunc("DELETE /users/me", h.authed(h.deleteMe))
	mux.HandleFunc("GET /users/me/invites", h.authed(h.listMyInvites))

	mux.HandleFunc("POST /companies", h.authed(h.createCompany))
	mux.HandleFunc("GET /companies", h.authed(h.listCompanies))
	mux.HandleFunc("GET /companies/{id}", h.authed(h.getCompany))
	mux.HandleFunc("PUT /companies/my", h.authed(h.updateMyCompany))
	mux.HandleFunc("DELETE /companies/my", h.authed(h.deleteMyCompany))

	mux.HandleFunc("POST /companies/my/invites", h.authed(h.createInvite))
	mux.HandleFunc("POST /invites/{id}/accept", h.authed(h.acceptInvite))
	mux.HandleFunc("POST /invites/{id}/decline", h.authed(h.declineInvite))

	mux.HandleFunc("POST /companies/{id}/requests", h.authed(h.createRequest))
	mux.HandleFunc("GET /companies/my/requests", h.authed(h.listMyRequests))
	mux.HandleFunc("POST /requests/{id}/accept", h.authed(h.acceptRequest))
	mux.HandleFunc("POST /requests/{id}/decline", h.authed(h.declineRequest))

	mux.HandleFunc("POST /companies/my/admins", h.authed(h.addAdmin))
	mux.HandleFunc("DELETE /companies/my/admins/{userID}", h.authed(h.removeAdmin))
	mux.HandleFunc("DELETE /companies/my/employees/{userID}", h.authed(h.removeEmployee))

	mux.HandleFunc("POST /companies/{id}/quizzes", h.authed(h.createQuiz))
	mux.HandleFunc("GET /companies/{id}/quizzes", h.authed(h.listQuizzes))
	mux.HandleFunc("PUT /companies/{id}/quizzes/{quizID}", h.authed(h.updateQuiz))
	mux.HandleFunc("DELETE /companies/{id}/quizzes/{quizID}", h.authed(h.deleteQuiz))
	mux.HandleFunc("GET /quizzes/{id}", h.authed(h.getQuiz))
	mux.HandleFunc("GET /quizzes/{id}/questions", h.authed(h.getQuizQuestions))
	mux.HandleFunc("POST /quizzes/{id}/pass", h.authed(h.passQuiz))
	mux.HandleFunc("GET /questions/{id}/answer", h.authed(h.lastAnswer))

	mux.HandleFunc("GET /analytics/quizzes/{id}/results", h.authed(h.quizResults))
	mux.HandleFunc("GET /analytics/companies/{id}/members/{userID}/results", h.authed(h.employeeResults))
	mux.HandleFunc("GET /analytics/companies/{id}/members/activity", h.authed(h.employeesActivity))
	mux.HandleFunc("GET /analytics/me/average", h.authed(h.myAverage))
	mux.HandleFunc("GET /analytics/me/quizzes/{id}/results", h.authed(h.myQuizResults))
	mux.HandleFunc("GET /analytics/me/quizzes/activity", h.authed(h.myQuizzesActivity))
}

type authedFunc func(w http.ResponseWriter, r *http.Request, user *domain.User)

func (h *Handler) authed(next authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, domain.Unauthorized("missing bearer token"))
			return
		}
		user, err := h.users.Resolve(r.Context(), raw)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, user)
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email           string `json:"email"`
		Username        string `json:"username"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if !decode(w, r, &in) {
		return
	}
	user, err := h.users.Register(r.Context(), in.Email, in.Username, in.Password, in.ConfirmPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	token, _, err := h.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		writeError(w, domain.Unauthorized("missing bearer token"))
		return
	}
	token, err := h.users.RefreshToken(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request, user *domain.User) {
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	offset, limit := pagination(r)
	users, err := h.users.ListUsers(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	updated, err := h.users.UpdateUser(r.Context(), user, in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if err := h.users.DeleteUser(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMyInvites(w http.ResponseWriter, r *http.Request, user *domain.User) {
	offset, limit := pagination(r)
	invites, err := h.users.ListInvites(r.Context(), user, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Visibility  *bool  `json:"visibility"`
	}
	if !decode(w, r, &in) {
		return
	}
	visible := true
	if in.Visibility != nil {
		visible = *in.Visibility
	}
	company, err := h.companies.CreateCompany(r.Context(), user, in.Name, in.Description, visible)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, company)
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	offset, limit := pagination(r)
	companies, err := h.companies.ListCompanies(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	company, err := h.companies.GetCompany(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *Handler) updateMyCompany(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Visibility  *bool  `json:"visibility"`
	}
	if !decode(w, r, &in) {
		return
	}
	visible := true
	if in.Visibility != nil {
		visible = *in.Visibility
	}
	company, err := h.companies.UpdateCompany(r.Context(), user, in.Name, in.Description, visible)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *Handler) deleteMyCompany(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if err := h.companies.DeleteCompany(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createInvite(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in struct {
		UserID int64 `json:"user_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	invite, err := h.companies.CreateInvite(r.Context(), user, in.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (h *Handler) acceptInvite(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.companies.AcceptInvite(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) declineInvite(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.companies.DisapproveInvite(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	request, err := h.companies.CreateRequest(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (h *Handler) listMyRequests(w http.ResponseWriter, r *http.Request, user *domain.User) {
	offset, limit := pagination(r)
	requests, err := h.companies.ListRequests(r.Context(), user, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *Handler) acceptRequest(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.companies.AcceptRequest(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) declineRequest(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.companies.DisapproveRequest(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addAdmin(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in struct {
		UserID int64 `json:"user_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := h.companies.AddAdmin(r.Context(), user, in.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeAdmin(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.companies.RemoveAdmin(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeEmployee(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.companies.RemoveEmployee(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request, user *domain.User) {
	companyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in app.QuizInput
	if !decode(w, r, &in) {
		return
	}
	quiz, err := h.quizzes.CreateQuiz(r.Context(), user, companyID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	companyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	offset, limit := pagination(r)
	quizzes, err := h.quizzes.ListQuizzes(r.Context(), companyID, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) updateQuiz(w http.ResponseWriter, r *http.Request, user *domain.User) {
	companyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	var in app.QuizInput
	if !decode(w, r, &in) {
		return
	}
	quiz, err := h.quizzes.UpdateQuiz(r.Context(), user, companyID, quizID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request, user *domain.User) {
	companyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	if err := h.quizzes.DeleteQuiz(r.Context(), user, companyID, quizID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quiz, err := h.quizzes.GetQuizInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) getQuizQuestions(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	questions, err := h.quizzes.GetQuizQuestions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) passQuiz(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Answers []domain.SubmittedAnswer `json:"answers"`
	}
	if !decode(w, r, &in) {
		return
	}
	result, err := h.scoring.PassQuiz(r.Context(), user, id, in.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) lastAnswer(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	answer, err := h.scoring.GetLastAnswer(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// quizResults requires authoring rights on the quiz's company.
func (h *Handler) quizResults(w http.ResponseWriter, r *http.Request, user *domain.User) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quiz, err := h.quizzes.GetQuizInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.companies.RequireOwnerOrAdmin(r.Context(), quiz.CompanyID, user); err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.analytics.QuizAverageResults(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) employeeResults(w http.ResponseWriter, r *http.Request, user *domain.User) {
	companyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if _, err := h.companies.RequireOwnerOrAdmin(r.Context(), companyID, user); err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.analytics.EmployeeAverageResults(r.Context(), companyID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) employeesActivity(w http.ResponseWriter, r *http.Request, user *domain.User) {
	companyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.companies.RequireOwnerOrAdmin(r.Context(), companyID, user); err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.analytics.EmployeesLastActivity(r.Context(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) myAverage(w http.ResponseWriter, r *http.Request, user *domain.User) {
	avg, err := h.analytics.UserAverageResult(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, avg)
}

func (h *Handler) myQuizResults(w http.ResponseWriter, r *http.Request, user *domain.User) {
	quizID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rows, err := h.analytics.UserQuizAverageResults(r.Context(), user.ID, quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) myQuizzesActivity(w http.ResponseWriter, r *http.Request, user *domain.User) {
	rows, err := h.analytics.UserQuizzesLastActivity(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, domain.Invalid("invalid %s", name))
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (offset, limit int) {
	limit = 100
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	return offset, limit
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, domain.Invalid("malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.CodeOf(err) {
	case domain.CodeInvalid:
		status = http.StatusBadRequest
	case domain.CodeUnauthorized:
		status = http.StatusUnauthorized
	case domain.CodeForbidden:
		status = http.StatusForbidden
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeConflict:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeJSON(w, status, map[string]string{"detail": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
