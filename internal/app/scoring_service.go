package app

import (
	"context"
	"fmt"
	"time"

	"company-quiz-service/internal/domain"
)

// AnswerTTL is how long a user's last answer stays readable.
const AnswerTTL = 172800 * time.Second

// ScoringService validates submitted attempts, computes per-attempt
// correctness and folds the attempt into the running aggregates of the
// user and the (user, quiz) pair.
type ScoringService struct {
	store   Store
	quizzes QuizProvider
	cache   AnswerCache
	now     func() time.Time
}

func NewScoringService(store Store, quizzes QuizProvider, cache AnswerCache) *ScoringService {
	return &ScoringService{store: store, quizzes: quizzes, cache: cache, now: time.Now}
}

// NewScoringServiceWithClock is test-only for deterministic timestamps.
func NewScoringServiceWithClock(store Store, quizzes QuizProvider, cache AnswerCache, now func() time.Time) *ScoringService {
	return &ScoringService{store: store, quizzes: quizzes, cache: cache, now: now}
}

// PassQuiz runs one attempt through the Received → Validated → Scored →
// Persisted pipeline and returns the freshly appended result row.
func (s *ScoringService) PassQuiz(ctx context.Context, user *domain.User, quizID int64, answers []domain.SubmittedAnswer) (*domain.Result, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	chosen, err := validateSubmission(quiz, answers)
	if err != nil {
		return nil, err
	}

	correct := 0
	for questionID, answer := range chosen {
		if answer.IsCorrect {
			correct++
		}
		// Fire-and-forget overwrite; a cache failure must not fail the attempt.
		_ = s.cache.Put(ctx, answerKey(user.ID, questionID), answer.Text, AnswerTTL)
	}

	questions := len(quiz.Questions)
	attemptScore := float64(correct) / float64(questions) * 100

	var result *domain.Result
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		attempts := 1
		totalCorrect := correct
		average := attemptScore

		prior, err := tx.LatestResult(ctx, user.ID, quiz.ID)
		switch {
		case err == nil:
			attempts = prior.Attempts + 1
			totalCorrect = prior.CorrectAnswers + correct
			average = float64(totalCorrect) / float64(questions*attempts) * 100
		case !domain.IsCode(err, domain.CodeNotFound):
			return err
		}

		result = &domain.Result{
			UserID:         user.ID,
			CompanyID:      quiz.CompanyID,
			QuizID:         quiz.ID,
			Result:         attemptScore,
			CorrectAnswers: totalCorrect,
			Attempts:       attempts,
			AverageResult:  average,
			CreatedAt:      s.now(),
		}
		if err := tx.CreateResult(ctx, result); err != nil {
			return err
		}

		// Re-read inside the transaction so concurrent attempts fold
		// into the counters instead of overwriting each other.
		current, err := tx.UserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		current.PassedQuestions += questions
		current.CorrectAnswers += correct
		current.AverageResult = float64(current.CorrectAnswers) / float64(current.PassedQuestions) * 100
		if err := tx.UpdateUser(ctx, current); err != nil {
			return err
		}
		*user = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLastAnswer returns what the user last answered for the question,
// while the cache entry is still alive.
func (s *ScoringService) GetLastAnswer(ctx context.Context, user *domain.User, questionID int64) (string, error) {
	answer, err := s.cache.Get(ctx, answerKey(user.ID, questionID))
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return "", domain.NotFound("you didn't answer that question yet")
		}
		return "", err
	}
	return answer, nil
}

// validateSubmission checks the attempt against the quiz content and
// resolves each submitted answer. Every question must be answered, and
// every id must belong to the quiz.
func validateSubmission(quiz *domain.Quiz, answers []domain.SubmittedAnswer) (map[int64]*domain.Answer, error) {
	if len(quiz.Questions) == 0 {
		return nil, domain.Invalid("quiz has no questions")
	}
	if len(answers) < len(quiz.Questions) {
		return nil, domain.Invalid("every question of the quiz must be answered")
	}

	questions := make(map[int64]*domain.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	chosen := make(map[int64]*domain.Answer, len(answers))
	for _, sub := range answers {
		question, ok := questions[sub.QuestionID]
		if !ok {
			return nil, domain.Invalid("question %d does not belong to the quiz", sub.QuestionID)
		}
		var answer *domain.Answer
		for i := range question.Answers {
			if question.Answers[i].ID == sub.ChosenAnswerID {
				answer = &question.Answers[i]
				break
			}
		}
		if answer == nil {
			return nil, domain.Invalid("answer %d does not belong to question %d", sub.ChosenAnswerID, sub.QuestionID)
		}
		chosen[question.ID] = answer
	}
	return chosen, nil
}

func answerKey(userID, questionID int64) string {
	return fmt.Sprintf("%d:%d", userID, questionID)
}
