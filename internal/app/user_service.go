package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"

	"company-quiz-service/internal/domain"
)

// UserService owns user accounts and acts as the access control gate:
// every inbound credential is resolved here, by one of two paths.
type UserService struct {
	store    Store
	tokens   TokenCodec
	hasher   Hasher
	verifier ExternalVerifier
}

func NewUserService(store Store, tokens TokenCodec, hasher Hasher, verifier ExternalVerifier) *UserService {
	return &UserService{store: store, tokens: tokens, hasher: hasher, verifier: verifier}
}

// Register creates a user with a hashed credential. Email and username
// uniqueness is checked here; the store enforces it again.
func (s *UserService) Register(ctx context.Context, email, username, password, confirmPassword string) (*domain.User, error) {
	if email == "" || username == "" || password == "" {
		return nil, domain.Invalid("email, username and password are required")
	}
	if password != confirmPassword {
		return nil, domain.Invalid("passwords do not match")
	}

	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return nil, domain.Conflict("account already exists")
	} else if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{Username: username, Email: email, Password: digest}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credential and issues an internal token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return "", nil, domain.Unauthorized("invalid email")
		}
		return "", nil, err
	}
	if !s.hasher.Verify(password, user.Password) {
		return "", nil, domain.Unauthorized("invalid password")
	}
	token, err := s.tokens.Encode(user.Email)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// RefreshToken re-issues a token from an expired but well-signed one.
func (s *UserService) RefreshToken(token string) (string, error) {
	return s.tokens.Refresh(token)
}

// Resolve maps a bearer credential to a user. The external verifier is
// tried first; an externally authenticated email unknown to us gets a
// fresh account with a random credential. Otherwise the token must be
// an internally issued one.
func (s *UserService) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if s.verifier != nil {
		if email, err := s.verifier.Verify(ctx, token); err == nil && email != "" {
			user, err := s.store.UserByEmail(ctx, email)
			if err == nil {
				return user, nil
			}
			if !domain.IsCode(err, domain.CodeNotFound) {
				return nil, err
			}
			return s.provision(ctx, email)
		}
	}

	email, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.Unauthorized("unknown user")
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) provision(ctx context.Context, email string) (*domain.User, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(hex.EncodeToString(raw))
	if err != nil {
		return nil, err
	}

	log.Printf("auto-provisioning user %s from externally verified token", email)
	user := &domain.User{Username: email, Email: email, Password: digest}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	return s.store.ListUsers(ctx, offset, limit)
}

// UpdateUser replaces username and, when provided, the credential.
func (s *UserService) UpdateUser(ctx context.Context, user *domain.User, username, password string) (*domain.User, error) {
	if username != "" {
		user.Username = username
	}
	if password != "" {
		digest, err := s.hasher.Hash(password)
		if err != nil {
			return nil, err
		}
		user.Password = digest
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the account; owned companies and attempt history
// go with it through the schema cascades.
func (s *UserService) DeleteUser(ctx context.Context, user *domain.User) error {
	return s.store.DeleteUser(ctx, user.ID)
}

// ListInvites returns the pending invites addressed to the user.
func (s *UserService) ListInvites(ctx context.Context, user *domain.User, offset, limit int) ([]domain.Invite, error) {
	return s.store.ListInvitesByUser(ctx, user.ID, offset, limit)
}
