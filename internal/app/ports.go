package app

import (
	"context"
	"time"

	"company-quiz-service/internal/domain"
)

// Store is the transactional relational port the services run against.
// Implementations return domain.NotFound for absent rows; RunInTx hands
// the callback a Store scoped to one transaction.
type Store interface {
	CreateUser(ctx context.Context, user *domain.User) error
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id int64) error

	CreateCompany(ctx context.Context, company *domain.Company) error
	CompanyByID(ctx context.Context, id int64) (*domain.Company, error)
	CompanyByName(ctx context.Context, name string) (*domain.Company, error)
	CompanyByOwner(ctx context.Context, ownerID int64) (*domain.Company, error)
	ListCompanies(ctx context.Context, offset, limit int) ([]domain.Company, error)
	UpdateCompany(ctx context.Context, company *domain.Company) error
	DeleteCompany(ctx context.Context, id int64) error

	AddEmployee(ctx context.Context, companyID, userID int64) error
	RemoveEmployee(ctx context.Context, companyID, userID int64) error
	IsEmployee(ctx context.Context, companyID, userID int64) (bool, error)
	AddAdmin(ctx context.Context, companyID, userID int64) error
	RemoveAdmin(ctx context.Context, companyID, userID int64) error
	IsAdmin(ctx context.Context, companyID, userID int64) (bool, error)

	CreateInvite(ctx context.Context, invite *domain.Invite) error
	InviteByID(ctx context.Context, id int64) (*domain.Invite, error)
	InviteByCompanyAndUser(ctx context.Context, companyID, userID int64) (*domain.Invite, error)
	ListInvitesByUser(ctx context.Context, userID int64, offset, limit int) ([]domain.Invite, error)
	DeleteInvite(ctx context.Context, id int64) error

	CreateRequest(ctx context.Context, request *domain.Request) error
	RequestByID(ctx context.Context, id int64) (*domain.Request, error)
	RequestByCompanyAndUser(ctx context.Context, companyID, userID int64) (*domain.Request, error)
	ListRequestsByCompany(ctx context.Context, companyID int64, offset, limit int) ([]domain.Request, error)
	DeleteRequest(ctx context.Context, id int64) error

	CreateQuiz(ctx context.Context, quiz *domain.Quiz) error
	QuizByID(ctx context.Context, id int64) (*domain.Quiz, error)
	QuizByTitle(ctx context.Context, companyID int64, title string) (*domain.Quiz, error)
	ListQuizzes(ctx context.Context, companyID int64, offset, limit int) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error
	DeleteQuiz(ctx context.Context, id int64) error

	CreateResult(ctx context.Context, result *domain.Result) error
	// LatestResult returns the most recent result for the pair, locking
	// the row for the duration of the surrounding transaction.
	LatestResult(ctx context.Context, userID, quizID int64) (*domain.Result, error)

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// QuizProvider serves quiz content to the scoring engine, typically a
// TTL cache in front of the store.
type QuizProvider interface {
	GetQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error)
	Invalidate(quizID int64)
}

// AnswerCache is the short-lived store of what a user last answered.
type AnswerCache interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns domain.NotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
}

// AnalyticsReader serves the read-only rollups over result history.
type AnalyticsReader interface {
	QuizAverageResults(ctx context.Context, quizID int64) ([]domain.QuizUserAverage, error)
	EmployeeAverageResults(ctx context.Context, companyID, userID int64) ([]domain.QuizAverageHistory, error)
	EmployeesLastActivity(ctx context.Context, companyID int64) ([]domain.UserActivity, error)
	UserQuizAverageResults(ctx context.Context, userID, quizID int64) ([]domain.AverageHistory, error)
	UserQuizzesLastActivity(ctx context.Context, userID int64) ([]domain.QuizActivity, error)
}

// TokenCodec issues and resolves internally signed bearer tokens.
type TokenCodec interface {
	Encode(email string) (string, error)
	Decode(token string) (string, error)
	Refresh(token string) (string, error)
}

// ExternalVerifier checks third-party issued tokens and yields the
// subject email. Optional; a nil verifier disables the external path.
type ExternalVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Hasher abstracts credential hashing.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}
