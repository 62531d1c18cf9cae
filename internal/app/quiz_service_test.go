package app_test

import (
	"context"
	"testing"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/domain"
)

func TestCreateQuizValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	company := e.createCompany(t, owner, "acme")

	cases := []struct {
		name  string
		input app.QuizInput
	}{
		{"no title", app.QuizInput{Questions: quizInput("x").Questions}},
		{"one question", app.QuizInput{Title: "x", Questions: quizInput("x").Questions[:1]}},
		{"one answer", app.QuizInput{Title: "x", Questions: []app.QuestionInput{
			{Title: "q1", Answers: []app.AnswerInput{{Text: "a", IsCorrect: true}}},
			{Title: "q2", Answers: []app.AnswerInput{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		}}},
		{"no correct answer", app.QuizInput{Title: "x", Questions: []app.QuestionInput{
			{Title: "q1", Answers: []app.AnswerInput{{Text: "a"}, {Text: "b"}}},
			{Title: "q2", Answers: []app.AnswerInput{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		}}},
		{"two correct answers", app.QuizInput{Title: "x", Questions: []app.QuestionInput{
			{Title: "q1", Answers: []app.AnswerInput{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}},
			{Title: "q2", Answers: []app.AnswerInput{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		}}},
	}
	for _, tc := range cases {
		if _, err := e.quizzes.CreateQuiz(ctx, owner, company.ID, tc.input); !domain.IsCode(err, domain.CodeInvalid) {
			t.Fatalf("%s: expected invalid, got %v", tc.name, err)
		}
	}
}

func TestCreateQuizRequiresAuthoringRights(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	worker := e.registerUser(t, "worker")
	company := e.createCompany(t, owner, "acme")
	e.employ(t, owner, worker)

	if _, err := e.quizzes.CreateQuiz(ctx, worker, company.ID, quizInput("math")); !domain.IsCode(err, domain.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for plain employee, got %v", err)
	}

	if err := e.companies.AddAdmin(ctx, owner, worker.ID); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if _, err := e.quizzes.CreateQuiz(ctx, worker, company.ID, quizInput("math")); err != nil {
		t.Fatalf("admin should author quizzes: %v", err)
	}
}

func TestCreateQuizRejectsDuplicateTitle(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	company := e.createCompany(t, owner, "acme")
	e.createQuiz(t, owner, company.ID, "math")

	if _, err := e.quizzes.CreateQuiz(ctx, owner, company.ID, quizInput("math")); !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected conflict on duplicate title, got %v", err)
	}
}

func TestGetQuizQuestionsWithholdsCorrectness(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	company := e.createCompany(t, owner, "acme")
	quiz := e.createQuiz(t, owner, company.ID, "math")

	questions, err := e.quizzes.GetQuizQuestions(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	for _, q := range questions {
		if len(q.Answers) != 2 {
			t.Fatalf("expected 2 answers per question, got %d", len(q.Answers))
		}
		for _, a := range q.Answers {
			if a.Text == "" || a.ID == 0 {
				t.Fatalf("expected answer id and text, got %+v", a)
			}
		}
	}
}

func TestUpdateQuizKeyedUpsert(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	company := e.createCompany(t, owner, "acme")
	quiz := e.createQuiz(t, owner, company.ID, "math")

	kept := quiz.Questions[0]
	input := app.QuizInput{
		Title:       "math v2",
		Description: "reworked",
		Questions: []app.QuestionInput{
			{ID: kept.ID, Title: "renamed question", Answers: []app.AnswerInput{
				{ID: kept.Answers[0].ID, Text: "still right", IsCorrect: true},
				{ID: kept.Answers[1].ID, Text: "still wrong"},
			}},
			{Title: "brand new question", Answers: []app.AnswerInput{
				{Text: "yes", IsCorrect: true},
				{Text: "no"},
			}},
		},
	}
	updated, err := e.quizzes.UpdateQuiz(ctx, owner, company.ID, quiz.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "math v2" {
		t.Fatalf("expected renamed quiz, got %q", updated.Title)
	}

	stored, err := e.store.QuizByID(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.Questions) != 2 {
		t.Fatalf("expected 2 questions after upsert, got %d", len(stored.Questions))
	}
	var sawKept, sawNew bool
	for _, q := range stored.Questions {
		switch q.ID {
		case kept.ID:
			sawKept = true
			if q.Title != "renamed question" {
				t.Fatalf("expected kept question renamed, got %q", q.Title)
			}
		case quiz.Questions[1].ID:
			t.Fatal("expected the dropped question deleted")
		default:
			sawNew = true
		}
	}
	if !sawKept || !sawNew {
		t.Fatalf("expected one kept and one new question, kept=%v new=%v", sawKept, sawNew)
	}
}

func TestUpdateQuizRejectsForeignIDs(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	company := e.createCompany(t, owner, "acme")
	quiz := e.createQuiz(t, owner, company.ID, "math")
	other := e.createQuiz(t, owner, company.ID, "history")

	input := quizInput("math")
	input.Questions[0].ID = other.Questions[0].ID
	if _, err := e.quizzes.UpdateQuiz(ctx, owner, company.ID, quiz.ID, input); !domain.IsCode(err, domain.CodeInvalid) {
		t.Fatalf("expected invalid for foreign question id, got %v", err)
	}
}

func TestDeleteQuizRemovesContent(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	company := e.createCompany(t, owner, "acme")
	quiz := e.createQuiz(t, owner, company.ID, "math")

	if err := e.quizzes.DeleteQuiz(ctx, owner, company.ID, quiz.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.store.QuizByID(ctx, quiz.ID); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected quiz gone, got %v", err)
	}
}

func TestQuizScopedToOwnCompany(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	otherOwner := e.registerUser(t, "other")
	company := e.createCompany(t, owner, "acme")
	otherCompany := e.createCompany(t, otherOwner, "globex")
	quiz := e.createQuiz(t, owner, company.ID, "math")

	if _, err := e.quizzes.UpdateQuiz(ctx, otherOwner, otherCompany.ID, quiz.ID, quizInput("math")); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected not found updating a foreign quiz, got %v", err)
	}
	if err := e.quizzes.DeleteQuiz(ctx, otherOwner, otherCompany.ID, quiz.ID); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected not found deleting a foreign quiz, got %v", err)
	}
}
