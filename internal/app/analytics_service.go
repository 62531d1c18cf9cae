package app

import (
	"context"

	"company-quiz-service/internal/domain"
)

// AnalyticsService serves the read-only rollups over result history.
// It never writes; identity resolution happens upstream.
type AnalyticsService struct {
	store  Store
	reader AnalyticsReader
}

func NewAnalyticsService(store Store, reader AnalyticsReader) *AnalyticsService {
	return &AnalyticsService{store: store, reader: reader}
}

// QuizAverageResults lists the latest running average of every user who
// attempted the quiz.
func (s *AnalyticsService) QuizAverageResults(ctx context.Context, quizID int64) ([]domain.QuizUserAverage, error) {
	return s.reader.QuizAverageResults(ctx, quizID)
}

// EmployeeAverageResults lists the attempt history of one employee
// within one company.
func (s *AnalyticsService) EmployeeAverageResults(ctx context.Context, companyID, userID int64) ([]domain.QuizAverageHistory, error) {
	return s.reader.EmployeeAverageResults(ctx, companyID, userID)
}

// EmployeesLastActivity returns each employee's most recent attempt
// time within the company.
func (s *AnalyticsService) EmployeesLastActivity(ctx context.Context, companyID int64) ([]domain.UserActivity, error) {
	return s.reader.EmployeesLastActivity(ctx, companyID)
}

// UserAverageResult reads the user's global running average.
func (s *AnalyticsService) UserAverageResult(ctx context.Context, userID int64) (*domain.UserAverage, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserAverage{UserID: user.ID, AverageResult: user.AverageResult}, nil
}

// UserQuizAverageResults lists the running-average history of one user
// on one quiz, oldest first.
func (s *AnalyticsService) UserQuizAverageResults(ctx context.Context, userID, quizID int64) ([]domain.AverageHistory, error) {
	return s.reader.UserQuizAverageResults(ctx, userID, quizID)
}

// UserQuizzesLastActivity returns the user's most recent attempt time
// per quiz.
func (s *AnalyticsService) UserQuizzesLastActivity(ctx context.Context, userID int64) ([]domain.QuizActivity, error) {
	return s.reader.UserQuizzesLastActivity(ctx, userID)
}
