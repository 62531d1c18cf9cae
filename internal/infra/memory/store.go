package memory

import (
	"context"
	"sort"
	"sync"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/domain"
)

type membership struct {
	companyID int64
	userID    int64
}

// Store is an in-memory implementation of app.Store for tests and
// redis/postgres-less runs. Transactions are serialized with a mutex;
// rollback is not simulated, so a failing transaction callback must not
// have mutated state before erroring.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users     map[int64]*domain.User
	companies map[int64]*domain.Company
	employees map[membership]bool
	admins    map[membership]bool
	invites   map[int64]*domain.Invite
	requests  map[int64]*domain.Request
	quizzes   map[int64]*domain.Quiz
	results   []domain.Result

	nextUser    int64
	nextCompany int64
	nextInvite  int64
	nextRequest int64
	nextQuiz    int64
	nextRow     int64
	nextResult  int64
}

func NewStore() *Store {
	return &Store{
		users:     make(map[int64]*domain.User),
		companies: make(map[int64]*domain.Company),
		employees: make(map[membership]bool),
		admins:    make(map[membership]bool),
		invites:   make(map[int64]*domain.Invite),
		requests:  make(map[int64]*domain.Request),
		quizzes:   make(map[int64]*domain.Quiz),
	}
}

var _ app.Store = (*Store)(nil)

// RunInTx serializes the callback against all other transactions. The
// callback receives the same store; individual methods take the data
// lock themselves.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, s)
}

func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return domain.Conflict("email %q is taken", user.Email)
		}
		if existing.Username == user.Username {
			return domain.Conflict("username %q is taken", user.Username)
		}
	}
	s.nextUser++
	user.ID = s.nextUser
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *Store) UserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("user %d not found", id)
	}
	clone := *user
	return &clone, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.NotFound("user %q not found", email)
}

func (s *Store) ListUsers(_ context.Context, offset, limit int) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return page(users, offset, limit), nil
}

func (s *Store) UpdateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.NotFound("user %d not found", user.ID)
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.NotFound("user %d not found", id)
	}
	delete(s.users, id)
	for companyID, company := range s.companies {
		if company.OwnerID == id {
			s.deleteCompanyLocked(companyID)
		}
	}
	for inviteID, invite := range s.invites {
		if invite.UserID == id {
			delete(s.invites, inviteID)
		}
	}
	for requestID, request := range s.requests {
		if request.UserID == id {
			delete(s.requests, requestID)
		}
	}
	for key := range s.employees {
		if key.userID == id {
			delete(s.employees, key)
		}
	}
	for key := range s.admins {
		if key.userID == id {
			delete(s.admins, key)
		}
	}
	kept := s.results[:0]
	for _, result := range s.results {
		if result.UserID != id {
			kept = append(kept, result)
		}
	}
	s.results = kept
	return nil
}

func (s *Store) CreateCompany(_ context.Context, company *domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.companies {
		if existing.Name == company.Name {
			return domain.Conflict("company %q already exists", company.Name)
		}
	}
	s.nextCompany++
	company.ID = s.nextCompany
	clone := *company
	s.companies[company.ID] = &clone
	return nil
}

func (s *Store) CompanyByID(_ context.Context, id int64) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	company, ok := s.companies[id]
	if !ok {
		return nil, domain.NotFound("company %d not found", id)
	}
	clone := *company
	return &clone, nil
}

func (s *Store) CompanyByName(_ context.Context, name string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, company := range s.companies {
		if company.Name == name {
			clone := *company
			return &clone, nil
		}
	}
	return nil, domain.NotFound("company %q not found", name)
}

func (s *Store) CompanyByOwner(_ context.Context, ownerID int64) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, company := range s.companies {
		if company.OwnerID == ownerID {
			clone := *company
			return &clone, nil
		}
	}
	return nil, domain.NotFound("no company owned by user %d", ownerID)
}

func (s *Store) ListCompanies(_ context.Context, offset, limit int) ([]domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	companies := make([]domain.Company, 0, len(s.companies))
	for _, company := range s.companies {
		companies = append(companies, *company)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].ID < companies[j].ID })
	return page(companies, offset, limit), nil
}

func (s *Store) UpdateCompany(_ context.Context, company *domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[company.ID]; !ok {
		return domain.NotFound("company %d not found", company.ID)
	}
	clone := *company
	s.companies[company.ID] = &clone
	return nil
}

func (s *Store) DeleteCompany(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[id]; !ok {
		return domain.NotFound("company %d not found", id)
	}
	s.deleteCompanyLocked(id)
	return nil
}

func (s *Store) deleteCompanyLocked(id int64) {
	delete(s.companies, id)
	for quizID, quiz := range s.quizzes {
		if quiz.CompanyID == id {
			delete(s.quizzes, quizID)
		}
	}
	for inviteID, invite := range s.invites {
		if invite.CompanyID == id {
			delete(s.invites, inviteID)
		}
	}
	for requestID, request := range s.requests {
		if request.CompanyID == id {
			delete(s.requests, requestID)
		}
	}
	for key := range s.employees {
		if key.companyID == id {
			delete(s.employees, key)
		}
	}
	for key := range s.admins {
		if key.companyID == id {
			delete(s.admins, key)
		}
	}
	kept := s.results[:0]
	for _, result := range s.results {
		if result.CompanyID != id {
			kept = append(kept, result)
		}
	}
	s.results = kept
}

func (s *Store) AddEmployee(_ context.Context, companyID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[membership{companyID, userID}] = true
	return nil
}

func (s *Store) RemoveEmployee(_ context.Context, companyID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.employees, membership{companyID, userID})
	return nil
}

func (s *Store) IsEmployee(_ context.Context, companyID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.employees[membership{companyID, userID}], nil
}

func (s *Store) AddAdmin(_ context.Context, companyID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[membership{companyID, userID}] = true
	return nil
}

func (s *Store) RemoveAdmin(_ context.Context, companyID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, membership{companyID, userID})
	return nil
}

func (s *Store) IsAdmin(_ context.Context, companyID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admins[membership{companyID, userID}], nil
}

func (s *Store) CreateInvite(_ context.Context, invite *domain.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextInvite++
	invite.ID = s.nextInvite
	clone := *invite
	s.invites[invite.ID] = &clone
	return nil
}

func (s *Store) InviteByID(_ context.Context, id int64) (*domain.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invite, ok := s.invites[id]
	if !ok {
		return nil, domain.NotFound("invite %d not found", id)
	}
	clone := *invite
	return &clone, nil
}

func (s *Store) InviteByCompanyAndUser(_ context.Context, companyID, userID int64) (*domain.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, invite := range s.invites {
		if invite.CompanyID == companyID && invite.UserID == userID {
			clone := *invite
			return &clone, nil
		}
	}
	return nil, domain.NotFound("no invite for user %d", userID)
}

func (s *Store) ListInvitesByUser(_ context.Context, userID int64, offset, limit int) ([]domain.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invites := make([]domain.Invite, 0)
	for _, invite := range s.invites {
		if invite.UserID == userID {
			invites = append(invites, *invite)
		}
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].ID < invites[j].ID })
	return page(invites, offset, limit), nil
}

func (s *Store) DeleteInvite(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[id]; !ok {
		return domain.NotFound("invite %d not found", id)
	}
	delete(s.invites, id)
	return nil
}

func (s *Store) CreateRequest(_ context.Context, request *domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRequest++
	request.ID = s.nextRequest
	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

func (s *Store) RequestByID(_ context.Context, id int64) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, domain.NotFound("request %d not found", id)
	}
	clone := *request
	return &clone, nil
}

func (s *Store) RequestByCompanyAndUser(_ context.Context, companyID, userID int64) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, request := range s.requests {
		if request.CompanyID == companyID && request.UserID == userID {
			clone := *request
			return &clone, nil
		}
	}
	return nil, domain.NotFound("no request from user %d", userID)
}

func (s *Store) ListRequestsByCompany(_ context.Context, companyID int64, offset, limit int) ([]domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	requests := make([]domain.Request, 0)
	for _, request := range s.requests {
		if request.CompanyID == companyID {
			requests = append(requests, *request)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return page(requests, offset, limit), nil
}

func (s *Store) DeleteRequest(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return domain.NotFound("request %d not found", id)
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuiz++
	quiz.ID = s.nextQuiz
	for i := range quiz.Questions {
		s.nextRow++
		quiz.Questions[i].ID = s.nextRow
		quiz.Questions[i].QuizID = quiz.ID
		for j := range quiz.Questions[i].Answers {
			s.nextRow++
			quiz.Questions[i].Answers[j].ID = s.nextRow
			quiz.Questions[i].Answers[j].QuestionID = quiz.Questions[i].ID
		}
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

func (s *Store) QuizByID(_ context.Context, id int64) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return nil, domain.NotFound("quiz with id %d not found", id)
	}
	return cloneQuiz(quiz), nil
}

func (s *Store) QuizByTitle(_ context.Context, companyID int64, title string) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, quiz := range s.quizzes {
		if quiz.CompanyID == companyID && quiz.Title == title {
			return cloneQuiz(quiz), nil
		}
	}
	return nil, domain.NotFound("quiz %q not found", title)
}

func (s *Store) ListQuizzes(_ context.Context, companyID int64, offset, limit int) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		if quiz.CompanyID == companyID {
			header := *quiz
			header.Questions = nil
			quizzes = append(quizzes, header)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })
	return page(quizzes, offset, limit), nil
}

// UpdateQuiz applies the keyed upsert: incoming rows with IDs replace
// their stored counterparts, ID-less rows get fresh IDs, and stored
// rows missing from the payload are dropped.
func (s *Store) UpdateQuiz(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return domain.NotFound("quiz with id %d not found", quiz.ID)
	}
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == 0 {
			s.nextRow++
			quiz.Questions[i].ID = s.nextRow
		}
		quiz.Questions[i].QuizID = quiz.ID
		for j := range quiz.Questions[i].Answers {
			if quiz.Questions[i].Answers[j].ID == 0 {
				s.nextRow++
				quiz.Questions[i].Answers[j].ID = s.nextRow
			}
			quiz.Questions[i].Answers[j].QuestionID = quiz.Questions[i].ID
		}
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

func (s *Store) DeleteQuiz(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return domain.NotFound("quiz with id %d not found", id)
	}
	delete(s.quizzes, id)
	kept := s.results[:0]
	for _, result := range s.results {
		if result.QuizID != id {
			kept = append(kept, result)
		}
	}
	s.results = kept
	return nil
}

func (s *Store) CreateResult(_ context.Context, result *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextResult++
	result.ID = s.nextResult
	s.results = append(s.results, *result)
	return nil
}

// LatestResult returns the newest result for the pair; insertion order
// breaks creation-time ties.
func (s *Store) LatestResult(_ context.Context, userID, quizID int64) (*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].UserID == userID && s.results[i].QuizID == quizID {
			clone := s.results[i]
			return &clone, nil
		}
	}
	return nil, domain.NotFound("no results for user %d on quiz %d", userID, quizID)
}

func cloneQuiz(quiz *domain.Quiz) *domain.Quiz {
	clone := *quiz
	clone.Questions = make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		question := q
		question.Answers = append([]domain.Answer(nil), q.Answers...)
		clone.Questions[i] = question
	}
	return &clone
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
