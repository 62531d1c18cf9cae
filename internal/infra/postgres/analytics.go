package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"company-quiz-service/internal/domain"
)

// AnalyticsReader runs the rollup queries over result history on a
// dedicated pgx pool, off the bun connection the writers use.
type AnalyticsReader struct {
	pool *pgxpool.Pool
}

func NewAnalyticsReader(pool *pgxpool.Pool) *AnalyticsReader {
	return &AnalyticsReader{pool: pool}
}

func (r *AnalyticsReader) QuizAverageResults(ctx context.Context, quizID int64) ([]domain.QuizUserAverage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (user_id) user_id, average_result, created_at
		FROM results
		WHERE quiz_id = $1
		ORDER BY user_id, created_at DESC, id DESC`, quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz average results: %w", err)
	}
	return scanRows(rows, func(row *domain.QuizUserAverage) []any {
		return []any{&row.UserID, &row.AverageResult, &row.CreatedAt}
	})
}

func (r *AnalyticsReader) EmployeeAverageResults(ctx context.Context, companyID, userID int64) ([]domain.QuizAverageHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT quiz_id, average_result, created_at
		FROM results
		WHERE company_id = $1 AND user_id = $2
		ORDER BY created_at, id`, companyID, userID)
	if err != nil {
		return nil, fmt.Errorf("employee average results: %w", err)
	}
	return scanRows(rows, func(row *domain.QuizAverageHistory) []any {
		return []any{&row.QuizID, &row.AverageResult, &row.CreatedAt}
	})
}

func (r *AnalyticsReader) EmployeesLastActivity(ctx context.Context, companyID int64) ([]domain.UserActivity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, max(created_at)
		FROM results
		WHERE company_id = $1
		GROUP BY user_id
		ORDER BY user_id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("employees last activity: %w", err)
	}
	return scanRows(rows, func(row *domain.UserActivity) []any {
		return []any{&row.UserID, &row.LastActivity}
	})
}

func (r *AnalyticsReader) UserQuizAverageResults(ctx context.Context, userID, quizID int64) ([]domain.AverageHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT average_result, created_at
		FROM results
		WHERE user_id = $1 AND quiz_id = $2
		ORDER BY created_at, id`, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("user quiz average results: %w", err)
	}
	return scanRows(rows, func(row *domain.AverageHistory) []any {
		return []any{&row.AverageResult, &row.CreatedAt}
	})
}

func (r *AnalyticsReader) UserQuizzesLastActivity(ctx context.Context, userID int64) ([]domain.QuizActivity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT quiz_id, max(created_at)
		FROM results
		WHERE user_id = $1
		GROUP BY quiz_id
		ORDER BY quiz_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("user quizzes last activity: %w", err)
	}
	return scanRows(rows, func(row *domain.QuizActivity) []any {
		return []any{&row.QuizID, &row.LastActivity}
	})
}

func scanRows[T any](rows pgx.Rows, dest func(*T) []any) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var row T
		if err := rows.Scan(dest(&row)...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
