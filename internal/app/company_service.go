package app

import (
	"context"

	"company-quiz-service/internal/domain"
)

// CompanyService is the membership authority: it owns companies, the
// owner/admin/employee tiers, and the invite/request lifecycles.
type CompanyService struct {
	store Store
}

func NewCompanyService(store Store) *CompanyService {
	return &CompanyService{store: store}
}

// RequireOwnerOrAdmin loads the company and checks authoring rights.
// The owner is implicitly privileged and never stored in the admin set.
func (s *CompanyService) RequireOwnerOrAdmin(ctx context.Context, companyID int64, actor *domain.User) (*domain.Company, error) {
	company, err := s.store.CompanyByID(ctx, companyID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.Unauthorized("company with id %d not found", companyID)
		}
		return nil, err
	}
	if company.OwnerID == actor.ID {
		return company, nil
	}
	admin, err := s.store.IsAdmin(ctx, companyID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, domain.Unauthorized("you are not an owner or admin of this company")
	}
	return company, nil
}

// CreateCompany creates the actor's company. One company per owner.
func (s *CompanyService) CreateCompany(ctx context.Context, actor *domain.User, name, description string, visibility bool) (*domain.Company, error) {
	if name == "" {
		return nil, domain.Invalid("company name is required")
	}
	if _, err := s.store.CompanyByOwner(ctx, actor.ID); err == nil {
		return nil, domain.Conflict("you already have a company")
	} else if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}
	if _, err := s.store.CompanyByName(ctx, name); err == nil {
		return nil, domain.Conflict("company %q already exists", name)
	} else if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}

	company := &domain.Company{Name: name, Description: description, Visibility: visibility, OwnerID: actor.ID}
	if err := s.store.CreateCompany(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

func (s *CompanyService) UpdateCompany(ctx context.Context, actor *domain.User, name, description string, visibility bool) (*domain.Company, error) {
	company, err := s.ownedCompany(ctx, actor)
	if err != nil {
		return nil, err
	}
	company.Name = name
	company.Description = description
	company.Visibility = visibility
	if err := s.store.UpdateCompany(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

func (s *CompanyService) DeleteCompany(ctx context.Context, actor *domain.User) error {
	company, err := s.ownedCompany(ctx, actor)
	if err != nil {
		return err
	}
	return s.store.DeleteCompany(ctx, company.ID)
}

func (s *CompanyService) GetCompany(ctx context.Context, id int64) (*domain.Company, error) {
	return s.store.CompanyByID(ctx, id)
}

func (s *CompanyService) ListCompanies(ctx context.Context, offset, limit int) ([]domain.Company, error) {
	return s.store.ListCompanies(ctx, offset, limit)
}

// CreateInvite offers membership in the actor's company to a user.
func (s *CompanyService) CreateInvite(ctx context.Context, actor *domain.User, targetUserID int64) (*domain.Invite, error) {
	company, err := s.ownedCompany(ctx, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.UserByID(ctx, targetUserID); err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NotFound("user with id %d does not exist", targetUserID)
		}
		return nil, err
	}
	employed, err := s.store.IsEmployee(ctx, company.ID, targetUserID)
	if err != nil {
		return nil, err
	}
	if employed {
		return nil, domain.Conflict("user is already in the company")
	}
	if _, err := s.store.InviteByCompanyAndUser(ctx, company.ID, targetUserID); err == nil {
		return nil, domain.Conflict("user is already invited")
	} else if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}

	invite := &domain.Invite{CompanyID: company.ID, UserID: targetUserID}
	if err := s.store.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// AcceptInvite turns the invited user into an employee and consumes
// the invite; both steps commit together.
func (s *CompanyService) AcceptInvite(ctx context.Context, actor *domain.User, inviteID int64) error {
	invite, err := s.store.InviteByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.UserID != actor.ID {
		return domain.Forbidden("this invite is not addressed to you")
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.AddEmployee(ctx, invite.CompanyID, actor.ID); err != nil {
			return err
		}
		return tx.DeleteInvite(ctx, invite.ID)
	})
}

// DisapproveInvite consumes the invite without a membership change.
func (s *CompanyService) DisapproveInvite(ctx context.Context, actor *domain.User, inviteID int64) error {
	invite, err := s.store.InviteByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.UserID != actor.ID {
		return domain.Forbidden("this invite is not addressed to you")
	}
	return s.store.DeleteInvite(ctx, invite.ID)
}

// CreateRequest asks to join a company on the actor's behalf.
func (s *CompanyService) CreateRequest(ctx context.Context, actor *domain.User, companyID int64) (*domain.Request, error) {
	company, err := s.store.CompanyByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	employed, err := s.store.IsEmployee(ctx, company.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if employed {
		return nil, domain.Conflict("you are already in the company")
	}
	if _, err := s.store.RequestByCompanyAndUser(ctx, company.ID, actor.ID); err == nil {
		return nil, domain.Conflict("you already requested to join")
	} else if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}

	request := &domain.Request{CompanyID: company.ID, UserID: actor.ID}
	if err := s.store.CreateRequest(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// ListRequests returns the pending join requests for the owner's company.
func (s *CompanyService) ListRequests(ctx context.Context, owner *domain.User, offset, limit int) ([]domain.Request, error) {
	company, err := s.ownedCompany(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.store.ListRequestsByCompany(ctx, company.ID, offset, limit)
}

// AcceptRequest admits the requesting user; validated against the
// company owner, not the requester.
func (s *CompanyService) AcceptRequest(ctx context.Context, owner *domain.User, requestID int64) error {
	request, err := s.requestForOwner(ctx, owner, requestID)
	if err != nil {
		return err
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.AddEmployee(ctx, request.CompanyID, request.UserID); err != nil {
			return err
		}
		return tx.DeleteRequest(ctx, request.ID)
	})
}

func (s *CompanyService) DisapproveRequest(ctx context.Context, owner *domain.User, requestID int64) error {
	request, err := s.requestForOwner(ctx, owner, requestID)
	if err != nil {
		return err
	}
	return s.store.DeleteRequest(ctx, request.ID)
}

// AddAdmin promotes an employee of the owner's company.
func (s *CompanyService) AddAdmin(ctx context.Context, owner *domain.User, userID int64) error {
	company, err := s.ownedCompany(ctx, owner)
	if err != nil {
		return err
	}
	employed, err := s.store.IsEmployee(ctx, company.ID, userID)
	if err != nil {
		return err
	}
	if !employed {
		return domain.Conflict("user is not an employee of the company")
	}
	admin, err := s.store.IsAdmin(ctx, company.ID, userID)
	if err != nil {
		return err
	}
	if admin {
		return domain.Conflict("user is already an admin")
	}
	return s.store.AddAdmin(ctx, company.ID, userID)
}

func (s *CompanyService) RemoveAdmin(ctx context.Context, owner *domain.User, userID int64) error {
	company, err := s.ownedCompany(ctx, owner)
	if err != nil {
		return err
	}
	admin, err := s.store.IsAdmin(ctx, company.ID, userID)
	if err != nil {
		return err
	}
	if !admin {
		return domain.Conflict("user is not an admin")
	}
	return s.store.RemoveAdmin(ctx, company.ID, userID)
}

// RemoveEmployee drops the user from the company. Admin membership is
// cleared in the same transaction so the admin set stays a subset of
// the employees.
func (s *CompanyService) RemoveEmployee(ctx context.Context, owner *domain.User, userID int64) error {
	company, err := s.ownedCompany(ctx, owner)
	if err != nil {
		return err
	}
	employed, err := s.store.IsEmployee(ctx, company.ID, userID)
	if err != nil {
		return err
	}
	if !employed {
		return domain.Conflict("user is not an employee of the company")
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		admin, err := tx.IsAdmin(ctx, company.ID, userID)
		if err != nil {
			return err
		}
		if admin {
			if err := tx.RemoveAdmin(ctx, company.ID, userID); err != nil {
				return err
			}
		}
		return tx.RemoveEmployee(ctx, company.ID, userID)
	})
}

func (s *CompanyService) ownedCompany(ctx context.Context, actor *domain.User) (*domain.Company, error) {
	company, err := s.store.CompanyByOwner(ctx, actor.ID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NotFound("you don't have a company yet")
		}
		return nil, err
	}
	return company, nil
}

func (s *CompanyService) requestForOwner(ctx context.Context, owner *domain.User, requestID int64) (*domain.Request, error) {
	company, err := s.ownedCompany(ctx, owner)
	if err != nil {
		return nil, err
	}
	request, err := s.store.RequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.CompanyID != company.ID {
		return nil, domain.Forbidden("this request belongs to another company")
	}
	return request, nil
}
