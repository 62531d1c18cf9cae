package memory

import (
	"context"
	"sort"

	"company-quiz-service/internal/domain"
)

// The memory store doubles as the analytics reader so service tests run
// against the same rollup semantics the SQL reader implements.

func (s *Store) QuizAverageResults(_ context.Context, quizID int64) ([]domain.QuizUserAverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[int64]domain.Result)
	for _, result := range s.results {
		if result.QuizID != quizID {
			continue
		}
		// Insertion order is creation order, so the last row wins.
		latest[result.UserID] = result
	}
	rows := make([]domain.QuizUserAverage, 0, len(latest))
	for userID, result := range latest {
		rows = append(rows, domain.QuizUserAverage{
			UserID:        userID,
			AverageResult: result.AverageResult,
			CreatedAt:     result.CreatedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

func (s *Store) EmployeeAverageResults(_ context.Context, companyID, userID int64) ([]domain.QuizAverageHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]domain.QuizAverageHistory, 0)
	for _, result := range s.results {
		if result.CompanyID == companyID && result.UserID == userID {
			rows = append(rows, domain.QuizAverageHistory{
				QuizID:        result.QuizID,
				AverageResult: result.AverageResult,
				CreatedAt:     result.CreatedAt,
			})
		}
	}
	return rows, nil
}

func (s *Store) EmployeesLastActivity(_ context.Context, companyID int64) ([]domain.UserActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := make(map[int64]domain.Result)
	for _, result := range s.results {
		if result.CompanyID == companyID {
			last[result.UserID] = result
		}
	}
	rows := make([]domain.UserActivity, 0, len(last))
	for userID, result := range last {
		rows = append(rows, domain.UserActivity{UserID: userID, LastActivity: result.CreatedAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

func (s *Store) UserQuizAverageResults(_ context.Context, userID, quizID int64) ([]domain.AverageHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]domain.AverageHistory, 0)
	for _, result := range s.results {
		if result.UserID == userID && result.QuizID == quizID {
			rows = append(rows, domain.AverageHistory{
				AverageResult: result.AverageResult,
				CreatedAt:     result.CreatedAt,
			})
		}
	}
	return rows, nil
}

func (s *Store) UserQuizzesLastActivity(_ context.Context, userID int64) ([]domain.QuizActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := make(map[int64]domain.Result)
	for _, result := range s.results {
		if result.UserID == userID {
			last[result.QuizID] = result
		}
	}
	rows := make([]domain.QuizActivity, 0, len(last))
	for quizID, result := range last {
		rows = append(rows, domain.QuizActivity{QuizID: quizID, LastActivity: result.CreatedAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].QuizID < rows[j].QuizID })
	return rows, nil
}
