package app

import (
	"context"

	"company-quiz-service/internal/domain"
)

// QuizService is the quiz catalog: authoring and read access, with the
// structural rules enforced at create/update time.
type QuizService struct {
	store     Store
	companies *CompanyService
	cache     QuizProvider
}

func NewQuizService(store Store, companies *CompanyService, cache QuizProvider) *QuizService {
	return &QuizService{store: store, companies: companies, cache: cache}
}

// AnswerInput and QuestionInput carry authoring payloads. A zero ID on
// update means "create"; a non-zero ID addresses an existing row.
type AnswerInput struct {
	ID        int64  `json:"id,omitempty"`
	Text      string `json:"answer_text"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionInput struct {
	ID      int64         `json:"id,omitempty"`
	Title   string        `json:"question_title"`
	Answers []AnswerInput `json:"answers"`
}

type QuizInput struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	PassingFrequency int             `json:"passing_frequency,omitempty"`
	Questions        []QuestionInput `json:"questions"`
}

// AnswerView and QuestionView are the reader-facing shapes; correctness
// flags are withheld.
type AnswerView struct {
	ID   int64  `json:"id"`
	Text string `json:"answer_text"`
}

type QuestionView struct {
	ID      int64        `json:"id"`
	Title   string       `json:"question_title"`
	Answers []AnswerView `json:"answers"`
}

// CreateQuiz authors a quiz in the company. Requires owner or admin
// rights; the title must be unused within the company and every
// question well-formed.
func (s *QuizService) CreateQuiz(ctx context.Context, actor *domain.User, companyID int64, input QuizInput) (*domain.Quiz, error) {
	company, err := s.companies.RequireOwnerOrAdmin(ctx, companyID, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.QuizByTitle(ctx, company.ID, input.Title); err == nil {
		return nil, domain.Conflict("quiz %q already exists in this company", input.Title)
	} else if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}
	if err := validateQuizInput(input); err != nil {
		return nil, err
	}

	quiz := &domain.Quiz{
		Title:            input.Title,
		Description:      input.Description,
		PassingFrequency: input.PassingFrequency,
		CompanyID:        company.ID,
		Questions:        buildQuestions(input.Questions),
	}
	if err := s.store.CreateQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// UpdateQuiz rewrites a quiz as a keyed upsert: questions and answers
// with an ID are updated in place, ID-less ones created, and rows not
// present in the payload deleted.
func (s *QuizService) UpdateQuiz(ctx context.Context, actor *domain.User, companyID, quizID int64, input QuizInput) (*domain.Quiz, error) {
	company, err := s.companies.RequireOwnerOrAdmin(ctx, companyID, actor)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizInCompany(ctx, company.ID, quizID)
	if err != nil {
		return nil, err
	}
	if err := validateQuizInput(input); err != nil {
		return nil, err
	}
	if err := validateKnownIDs(quiz, input); err != nil {
		return nil, err
	}

	quiz.Title = input.Title
	quiz.Description = input.Description
	if input.PassingFrequency != 0 {
		quiz.PassingFrequency = input.PassingFrequency
	}
	quiz.Questions = buildQuestions(input.Questions)
	for i := range quiz.Questions {
		quiz.Questions[i].QuizID = quiz.ID
	}
	if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	s.cache.Invalidate(quiz.ID)
	return quiz, nil
}

// DeleteQuiz removes the quiz with its questions and answers.
func (s *QuizService) DeleteQuiz(ctx context.Context, actor *domain.User, companyID, quizID int64) error {
	company, err := s.companies.RequireOwnerOrAdmin(ctx, companyID, actor)
	if err != nil {
		return err
	}
	quiz, err := s.quizInCompany(ctx, company.ID, quizID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuiz(ctx, quiz.ID); err != nil {
		return err
	}
	s.cache.Invalidate(quiz.ID)
	return nil
}

// ListQuizzes pages through a company's quizzes, without question content.
func (s *QuizService) ListQuizzes(ctx context.Context, companyID int64, offset, limit int) ([]domain.Quiz, error) {
	return s.store.ListQuizzes(ctx, companyID, offset, limit)
}

// GetQuizInfo returns the quiz header only.
func (s *QuizService) GetQuizInfo(ctx context.Context, quizID int64) (*domain.Quiz, error) {
	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return &domain.Quiz{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Description:      quiz.Description,
		PassingFrequency: quiz.PassingFrequency,
		CompanyID:        quiz.CompanyID,
	}, nil
}

// GetQuizQuestions returns the questions with answer texts only;
// is_correct never leaves the catalog through this path.
func (s *QuizService) GetQuizQuestions(ctx context.Context, quizID int64) ([]QuestionView, error) {
	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	views := make([]QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		view := QuestionView{ID: q.ID, Title: q.Title, Answers: make([]AnswerView, 0, len(q.Answers))}
		for _, a := range q.Answers {
			view.Answers = append(view.Answers, AnswerView{ID: a.ID, Text: a.Text})
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *QuizService) quizInCompany(ctx context.Context, companyID, quizID int64) (*domain.Quiz, error) {
	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.CompanyID != companyID {
		return nil, domain.NotFound("quiz with id %d not found in this company", quizID)
	}
	return quiz, nil
}

// validateQuizInput enforces the structural rules: at least two
// questions, each with at least two answers and exactly one correct.
func validateQuizInput(input QuizInput) error {
	if input.Title == "" {
		return domain.Invalid("quiz title is required")
	}
	if len(input.Questions) < 2 {
		return domain.Invalid("a quiz must have at least 2 questions")
	}
	for _, q := range input.Questions {
		if q.Title == "" {
			return domain.Invalid("question title is required")
		}
		if len(q.Answers) < 2 {
			return domain.Invalid("question %q must have at least 2 answers", q.Title)
		}
		correct := 0
		for _, a := range q.Answers {
			if a.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return domain.Invalid("question %q must have exactly 1 correct answer", q.Title)
		}
	}
	return nil
}

// validateKnownIDs rejects payload rows addressing questions or answers
// the quiz does not own, so an upsert cannot touch foreign rows.
func validateKnownIDs(quiz *domain.Quiz, input QuizInput) error {
	questions := make(map[int64]map[int64]bool, len(quiz.Questions))
	for _, q := range quiz.Questions {
		answers := make(map[int64]bool, len(q.Answers))
		for _, a := range q.Answers {
			answers[a.ID] = true
		}
		questions[q.ID] = answers
	}
	for _, q := range input.Questions {
		if q.ID == 0 {
			continue
		}
		answers, ok := questions[q.ID]
		if !ok {
			return domain.Invalid("question id %d does not belong to this quiz", q.ID)
		}
		for _, a := range q.Answers {
			if a.ID != 0 && !answers[a.ID] {
				return domain.Invalid("answer id %d does not belong to question %d", a.ID, q.ID)
			}
		}
	}
	return nil
}

func buildQuestions(inputs []QuestionInput) []domain.Question {
	questions := make([]domain.Question, 0, len(inputs))
	for _, q := range inputs {
		question := domain.Question{ID: q.ID, Title: q.Title, Answers: make([]domain.Answer, 0, len(q.Answers))}
		for _, a := range q.Answers {
			question.Answers = append(question.Answers, domain.Answer{ID: a.ID, Text: a.Text, IsCorrect: a.IsCorrect})
		}
		questions = append(questions, question)
	}
	return questions
}
