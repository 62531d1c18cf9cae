package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/auth"
	"company-quiz-service/internal/domain"
	"company-quiz-service/internal/infra/memory"
)

// env wires every service on top of the in-memory infrastructure.
type env struct {
	store     *memory.Store
	answers   *memory.AnswerCache
	users     *app.UserService
	companies *app.CompanyService
	quizzes   *app.QuizService
	scoring   *app.ScoringService
	analytics *app.AnalyticsService
}

func newEnv() *env {
	store := memory.NewStore()
	answers := memory.NewAnswerCache()
	quizCache := memory.NewQuizCache(store, time.Minute)
	tokens := auth.NewTokenManager("test-secret", time.Minute)

	companies := app.NewCompanyService(store)
	return &env{
		store:     store,
		answers:   answers,
		users:     app.NewUserService(store, tokens, auth.NewBcryptHasher(), nil),
		companies: companies,
		quizzes:   app.NewQuizService(store, companies, quizCache),
		scoring:   app.NewScoringService(store, quizCache, answers),
		analytics: app.NewAnalyticsService(store, store),
	}
}

func (e *env) registerUser(t *testing.T, name string) *domain.User {
	t.Helper()
	email := fmt.Sprintf("%s@example.com", name)
	user, err := e.users.Register(context.Background(), email, name, "pass1234", "pass1234")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return user
}

func (e *env) createCompany(t *testing.T, owner *domain.User, name string) *domain.Company {
	t.Helper()
	company, err := e.companies.CreateCompany(context.Background(), owner, name, "test company", true)
	if err != nil {
		t.Fatalf("create company %s: %v", name, err)
	}
	return company
}

// employ runs the full invite flow to make user an employee.
func (e *env) employ(t *testing.T, owner, user *domain.User) {
	t.Helper()
	ctx := context.Background()
	invite, err := e.companies.CreateInvite(ctx, owner, user.ID)
	if err != nil {
		t.Fatalf("invite user %d: %v", user.ID, err)
	}
	if err := e.companies.AcceptInvite(ctx, user, invite.ID); err != nil {
		t.Fatalf("accept invite: %v", err)
	}
}

func (e *env) createQuiz(t *testing.T, owner *domain.User, companyID int64, title string) *domain.Quiz {
	t.Helper()
	quiz, err := e.quizzes.CreateQuiz(context.Background(), owner, companyID, quizInput(title))
	if err != nil {
		t.Fatalf("create quiz %s: %v", title, err)
	}
	return quiz
}

// quizInput builds a valid two-question payload; the first answer of
// each question is the correct one.
func quizInput(title string) app.QuizInput {
	return app.QuizInput{
		Title:       title,
		Description: "two questions",
		Questions: []app.QuestionInput{
			{Title: "first question", Answers: []app.AnswerInput{
				{Text: "right", IsCorrect: true},
				{Text: "wrong"},
			}},
			{Title: "second question", Answers: []app.AnswerInput{
				{Text: "right", IsCorrect: true},
				{Text: "wrong"},
			}},
		},
	}
}

// answersFor builds a submission choosing the correct answer for the
// first n questions and a wrong one for the rest.
func answersFor(quiz *domain.Quiz, correct int) []domain.SubmittedAnswer {
	submission := make([]domain.SubmittedAnswer, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		want := i < correct
		for _, a := range q.Answers {
			if a.IsCorrect == want {
				submission = append(submission, domain.SubmittedAnswer{QuestionID: q.ID, ChosenAnswerID: a.ID})
				break
			}
		}
	}
	return submission
}
