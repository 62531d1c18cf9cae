package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// User carries identity plus the global scoring counters. AverageResult
// is always CorrectAnswers/PassedQuestions*100; only the scoring engine
// mutates the three counters.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID              int64   `bun:"id,pk,autoincrement" json:"id"`
	Username        string  `bun:"username,unique" json:"username"`
	Email           string  `bun:"email,unique" json:"email"`
	Password        string  `bun:"password" json:"-"`
	PassedQuestions int     `bun:"passed_questions" json:"passed_questions"`
	CorrectAnswers  int     `bun:"correct_answers" json:"correct_answers"`
	AverageResult   float64 `bun:"average_result" json:"average_result"`
}

// Company has exactly one owner. Employees and admins live in join
// tables mutated through explicit membership operations, never through
// relation cascades.
type Company struct {
	bun.BaseModel `bun:"table:companies,alias:c"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,unique" json:"name"`
	Description string `bun:"description" json:"description"`
	Visibility  bool   `bun:"visibility" json:"visibility"`
	OwnerID     int64  `bun:"owner_id" json:"owner"`
}

// Invite is a pending company-to-user offer. Consumed on accept or
// disapprove; at most one per (company, user) pair.
type Invite struct {
	bun.BaseModel `bun:"table:invites,alias:i"`

	ID        int64 `bun:"id,pk,autoincrement" json:"id"`
	CompanyID int64 `bun:"company_id" json:"company"`
	UserID    int64 `bun:"user_id" json:"user"`
}

// Request is the user-initiated counterpart of Invite.
type Request struct {
	bun.BaseModel `bun:"table:requests,alias:r"`

	ID        int64 `bun:"id,pk,autoincrement" json:"id"`
	CompanyID int64 `bun:"company_id" json:"company"`
	UserID    int64 `bun:"user_id" json:"user"`
}

// Quiz belongs to one company; title is unique within that company.
type Quiz struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	Title            string     `bun:"title" json:"title"`
	Description      string     `bun:"description" json:"description"`
	PassingFrequency int        `bun:"passing_frequency" json:"passing_frequency"`
	CompanyID        int64      `bun:"company_id" json:"company"`
	Questions        []Question `bun:"rel:has-many,join:id=quiz_id" json:"questions,omitempty"`
}

type Question struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID      int64    `bun:"id,pk,autoincrement" json:"id"`
	Title   string   `bun:"question_title" json:"question_title"`
	QuizID  int64    `bun:"quiz_id" json:"quiz_id"`
	Answers []Answer `bun:"rel:has-many,join:id=question_id" json:"answers,omitempty"`
}

type Answer struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id"`
	Text       string `bun:"answer_text" json:"answer_text"`
	IsCorrect  bool   `bun:"is_correct" json:"is_correct"`
	QuestionID int64  `bun:"question_id" json:"question_id"`
}

// Result is one immutable quiz attempt. Result holds the attempt-local
// percentage; CorrectAnswers, Attempts and AverageResult are running
// values for this (user, quiz) pair at the time of the attempt.
type Result struct {
	bun.BaseModel `bun:"table:results,alias:res"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID         int64     `bun:"user_id" json:"user"`
	CompanyID      int64     `bun:"company_id" json:"company"`
	QuizID         int64     `bun:"quiz_id" json:"quiz_id"`
	Result         float64   `bun:"result" json:"result"`
	CorrectAnswers int       `bun:"correct_answers" json:"correct_answers"`
	Attempts       int       `bun:"attempts" json:"attempts"`
	AverageResult  float64   `bun:"average_result" json:"average_result"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}

// SubmittedAnswer is one entry of a quiz submission.
type SubmittedAnswer struct {
	QuestionID     int64 `json:"question_id"`
	ChosenAnswerID int64 `json:"choosed_answer_id"`
}

// QuizUserAverage is the per-quiz analytics row: the latest running
// average of one user who attempted the quiz.
type QuizUserAverage struct {
	UserID        int64     `json:"user_id"`
	AverageResult float64   `json:"average_result"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuizAverageHistory is one attempt of a given employee, keyed by quiz.
type QuizAverageHistory struct {
	QuizID        int64     `json:"quiz_id"`
	AverageResult float64   `json:"average_result"`
	CreatedAt     time.Time `json:"created_at"`
}

// AverageHistory is one attempt's running average for a fixed (user, quiz).
type AverageHistory struct {
	AverageResult float64   `json:"average_result"`
	CreatedAt     time.Time `json:"created_at"`
}

type UserActivity struct {
	UserID       int64     `json:"user_id"`
	LastActivity time.Time `json:"last_activity"`
}

type QuizActivity struct {
	QuizID       int64     `json:"quiz_id"`
	LastActivity time.Time `json:"last_activity"`
}

type UserAverage struct {
	UserID        int64   `json:"user_id"`
	AverageResult float64 `json:"average_result"`
}
