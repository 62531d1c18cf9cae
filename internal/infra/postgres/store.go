package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/domain"
)

const pgUniqueViolation = "23505"

// Store is the bun-backed implementation of app.Store. Membership is
// kept in explicit join tables; cascades along the foreign keys handle
// dependent rows on delete.
type Store struct {
	db bun.IDB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

var _ app.Store = (*Store)(nil)

type companyUser struct {
	bun.BaseModel `bun:"table:company_user"`

	CompanyID int64 `bun:"company_id,pk"`
	UserID    int64 `bun:"user_id,pk"`
}

type companyAdmin struct {
	bun.BaseModel `bun:"table:company_admins"`

	CompanyID int64 `bun:"company_id,pk"`
	UserID    int64 `bun:"user_id,pk"`
}

// RunInTx opens one transaction and hands the callback a tx-scoped
// store. Called on an already tx-scoped store it reuses the transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	db, ok := s.db.(*bun.DB)
	if !ok {
		return fn(ctx, s)
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.NewInsert().Model(user).Exec(ctx)
	return mapConflict(err, "email or username is taken")
}

func (s *Store) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "user %d not found", id)
	}
	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("u.email = ?", email).Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "user %q not found", email)
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	var users []domain.User
	query := s.db.NewSelect().Model(&users).Order("u.id").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	res, err := s.db.NewUpdate().Model(user).WherePK().Exec(ctx)
	if err != nil {
		return mapConflict(err, "email or username is taken")
	}
	return requireAffected(res, "user %d not found", user.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*domain.User)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, "user %d not found", id)
}

func (s *Store) CreateCompany(ctx context.Context, company *domain.Company) error {
	_, err := s.db.NewInsert().Model(company).Exec(ctx)
	return mapConflict(err, "company %q already exists", company.Name)
}

func (s *Store) CompanyByID(ctx context.Context, id int64) (*domain.Company, error) {
	company := new(domain.Company)
	err := s.db.NewSelect().Model(company).Where("c.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "company %d not found", id)
	}
	return company, nil
}

func (s *Store) CompanyByName(ctx context.Context, name string) (*domain.Company, error) {
	company := new(domain.Company)
	err := s.db.NewSelect().Model(company).Where("c.name = ?", name).Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "company %q not found", name)
	}
	return company, nil
}

func (s *Store) CompanyByOwner(ctx context.Context, ownerID int64) (*domain.Company, error) {
	company := new(domain.Company)
	err := s.db.NewSelect().Model(company).Where("c.owner_id = ?", ownerID).Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "no company owned by user %d", ownerID)
	}
	return company, nil
}

func (s *Store) ListCompanies(ctx context.Context, offset, limit int) ([]domain.Company, error) {
	var companies []domain.Company
	query := s.db.NewSelect().Model(&companies).Order("c.id").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return companies, nil
}

func (s *Store) UpdateCompany(ctx context.Context, company *domain.Company) error {
	res, err := s.db.NewUpdate().Model(company).WherePK().Exec(ctx)
	if err != nil {
		return mapConflict(err, "company %q already exists", company.Name)
	}
	return requireAffected(res, "company %d not found", company.ID)
}

func (s *Store) DeleteCompany(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*domain.Company)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, "company %d not found", id)
}

func (s *Store) AddEmployee(ctx context.Context, companyID, userID int64) error {
	_, err := s.db.NewInsert().
		Model(&companyUser{CompanyID: companyID, UserID: userID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) RemoveEmployee(ctx context.Context, companyID, userID int64) error {
	_, err := s.db.NewDelete().
		Model((*companyUser)(nil)).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Exec(ctx)
	return err
}

func (s *Store) IsEmployee(ctx context.Context, companyID, userID int64) (bool, error) {
	return s.db.NewSelect().
		Model((*companyUser)(nil)).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Exists(ctx)
}

func (s *Store) AddAdmin(ctx context.Context, companyID, userID int64) error {
	_, err := s.db.NewInsert().
		Model(&companyAdmin{CompanyID: companyID, UserID: userID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) RemoveAdmin(ctx context.Context, companyID, userID int64) error {
	_, err := s.db.NewDelete().
		Model((*companyAdmin)(nil)).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Exec(ctx)
	return err
}

func (s *Store) IsAdmin(ctx context.Context, companyID, userID int64) (bool, error) {
	return s.db.NewSelect().
		Model((*companyAdmin)(nil)).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Exists(ctx)
}

func (s *Store) CreateInvite(ctx context.Context, invite *domain.Invite) error {
	_, err := s.db.NewInsert().Model(invite).Exec(ctx)
	return err
}

func (s *Store) InviteByID(ctx context.Context, id int64) (*domain.Invite, error) {
	invite := new(domain.Invite)
	err := s.db.NewSelect().Model(invite).Where("i.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "invite %d not found", id)
	}
	return invite, nil
}

func (s *Store) InviteByCompanyAndUser(ctx context.Context, companyID, userID int64) (*domain.Invite, error) {
	invite := new(domain.Invite)
	err := s.db.NewSelect().Model(invite).
		Where("i.company_id = ? AND i.user_id = ?", companyID, userID).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "no invite for user %d", userID)
	}
	return invite, nil
}

func (s *Store) ListInvitesByUser(ctx context.Context, userID int64, offset, limit int) ([]domain.Invite, error) {
	var invites []domain.Invite
	query := s.db.NewSelect().Model(&invites).
		Where("i.user_id = ?", userID).
		Order("i.id").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return invites, nil
}

func (s *Store) DeleteInvite(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*domain.Invite)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, "invite %d not found", id)
}

func (s *Store) CreateRequest(ctx context.Context, request *domain.Request) error {
	_, err := s.db.NewInsert().Model(request).Exec(ctx)
	return err
}

func (s *Store) RequestByID(ctx context.Context, id int64) (*domain.Request, error) {
	request := new(domain.Request)
	err := s.db.NewSelect().Model(request).Where("r.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "request %d not found", id)
	}
	return request, nil
}

func (s *Store) RequestByCompanyAndUser(ctx context.Context, companyID, userID int64) (*domain.Request, error) {
	request := new(domain.Request)
	err := s.db.NewSelect().Model(request).
		Where("r.company_id = ? AND r.user_id = ?", companyID, userID).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "no request from user %d", userID)
	}
	return request, nil
}

func (s *Store) ListRequestsByCompany(ctx context.Context, companyID int64, offset, limit int) ([]domain.Request, error) {
	var requests []domain.Request
	query := s.db.NewSelect().Model(&requests).
		Where("r.company_id = ?", companyID).
		Order("r.id").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*domain.Request)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, "request %d not found", id)
}

// CreateQuiz persists the quiz with its questions and answers in one
// transaction.
func (s *Store) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Store) error {
		t := tx.(*Store)
		if _, err := t.db.NewInsert().Model(quiz).Exec(ctx); err != nil {
			return err
		}
		for i := range quiz.Questions {
			if err := t.insertQuestion(ctx, quiz.ID, &quiz.Questions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insertQuestion(ctx context.Context, quizID int64, question *domain.Question) error {
	question.QuizID = quizID
	if _, err := s.db.NewInsert().Model(question).Exec(ctx); err != nil {
		return err
	}
	for j := range question.Answers {
		question.Answers[j].QuestionID = question.ID
		if _, err := s.db.NewInsert().Model(&question.Answers[j]).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) QuizByID(ctx context.Context, id int64) (*domain.Quiz, error) {
	quiz := new(domain.Quiz)
	err := s.db.NewSelect().Model(quiz).
		Relation("Questions").
		Relation("Questions.Answers").
		Where("q.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "quiz with id %d not found", id)
	}
	sortQuiz(quiz)
	return quiz, nil
}

func (s *Store) QuizByTitle(ctx context.Context, companyID int64, title string) (*domain.Quiz, error) {
	quiz := new(domain.Quiz)
	err := s.db.NewSelect().Model(quiz).
		Where("q.company_id = ? AND q.title = ?", companyID, title).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "quiz %q not found", title)
	}
	return quiz, nil
}

func (s *Store) ListQuizzes(ctx context.Context, companyID int64, offset, limit int) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	query := s.db.NewSelect().Model(&quizzes).
		Where("q.company_id = ?", companyID).
		Order("q.id").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return quizzes, nil
}

// UpdateQuiz applies the keyed upsert: rows carrying IDs are updated,
// ID-less rows inserted, and stored rows absent from the payload
// deleted (answers go with their question via the FK cascade).
func (s *Store) UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Store) error {
		t := tx.(*Store)
		res, err := t.db.NewUpdate().Model(quiz).
			Column("title", "description", "passing_frequency").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := requireAffected(res, "quiz with id %d not found", quiz.ID); err != nil {
			return err
		}

		keptQuestions := make([]int64, 0, len(quiz.Questions))
		for i := range quiz.Questions {
			question := &quiz.Questions[i]
			if question.ID == 0 {
				if err := t.insertQuestion(ctx, quiz.ID, question); err != nil {
					return err
				}
				keptQuestions = append(keptQuestions, question.ID)
				continue
			}
			if _, err := t.db.NewUpdate().Model(question).
				Column("question_title").
				WherePK().
				Exec(ctx); err != nil {
				return err
			}
			if err := t.upsertAnswers(ctx, question); err != nil {
				return err
			}
			keptQuestions = append(keptQuestions, question.ID)
		}

		_, err = t.db.NewDelete().Model((*domain.Question)(nil)).
			Where("quiz_id = ?", quiz.ID).
			Where("id NOT IN (?)", bun.In(keptQuestions)).
			Exec(ctx)
		return err
	})
}

func (s *Store) upsertAnswers(ctx context.Context, question *domain.Question) error {
	kept := make([]int64, 0, len(question.Answers))
	for j := range question.Answers {
		answer := &question.Answers[j]
		answer.QuestionID = question.ID
		if answer.ID == 0 {
			if _, err := s.db.NewInsert().Model(answer).Exec(ctx); err != nil {
				return err
			}
		} else if _, err := s.db.NewUpdate().Model(answer).
			Column("answer_text", "is_correct").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		kept = append(kept, answer.ID)
	}
	_, err := s.db.NewDelete().Model((*domain.Answer)(nil)).
		Where("question_id = ?", question.ID).
		Where("id NOT IN (?)", bun.In(kept)).
		Exec(ctx)
	return err
}

func (s *Store) DeleteQuiz(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*domain.Quiz)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, "quiz with id %d not found", id)
}

func (s *Store) CreateResult(ctx context.Context, result *domain.Result) error {
	_, err := s.db.NewInsert().Model(result).Exec(ctx)
	return err
}

// LatestResult locks the newest row of the pair for the surrounding
// transaction, serializing concurrent attempts on the same quiz.
func (s *Store) LatestResult(ctx context.Context, userID, quizID int64) (*domain.Result, error) {
	result := new(domain.Result)
	err := s.db.NewSelect().Model(result).
		Where("res.user_id = ? AND res.quiz_id = ?", userID, quizID).
		Order("res.created_at DESC", "res.id DESC").
		Limit(1).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err, "no results for user %d on quiz %d", userID, quizID)
	}
	return result, nil
}

func sortQuiz(quiz *domain.Quiz) {
	sort.Slice(quiz.Questions, func(i, j int) bool { return quiz.Questions[i].ID < quiz.Questions[j].ID })
	for i := range quiz.Questions {
		answers := quiz.Questions[i].Answers
		sort.Slice(answers, func(a, b int) bool { return answers[a].ID < answers[b].ID })
	}
}

func mapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(format, args...)
	}
	return err
}

func mapConflict(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation {
		return domain.Conflict(format, args...)
	}
	return err
}

func requireAffected(res sql.Result, format string, args ...any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NotFound(format, args...)
	}
	return nil
}
