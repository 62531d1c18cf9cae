package app_test

import (
	"context"
	"testing"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/auth"
	"company-quiz-service/internal/domain"
	"company-quiz-service/internal/infra/memory"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	user := e.registerUser(t, "alice")
	if user.ID == 0 {
		t.Fatal("expected registered user to get an id")
	}

	token, logged, err := e.users.Login(ctx, "alice@example.com", "pass1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, logged.ID)
	}

	resolved, err := e.users.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Email != "alice@example.com" {
		t.Fatalf("resolved wrong user: %s", resolved.Email)
	}
}

func TestRegisterRejectsMismatchedPasswords(t *testing.T) {
	e := newEnv()
	_, err := e.users.Register(context.Background(), "a@example.com", "a", "one", "two")
	if !domain.IsCode(err, domain.CodeInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	e := newEnv()
	e.registerUser(t, "alice")
	_, err := e.users.Register(context.Background(), "alice@example.com", "other", "pass1234", "pass1234")
	if !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	e := newEnv()
	e.registerUser(t, "alice")
	_, _, err := e.users.Login(context.Background(), "alice@example.com", "nope")
	if !domain.IsCode(err, domain.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

type staticVerifier struct {
	email string
}

func (v staticVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "external-token" {
		return v.email, nil
	}
	return "", domain.Unauthorized("unknown token")
}

func TestResolveProvisionsExternallyVerifiedUser(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	tokens := auth.NewTokenManager("test-secret", 0)
	users := app.NewUserService(store, tokens, auth.NewBcryptHasher(), staticVerifier{email: "ext@example.com"})

	user, err := users.Resolve(ctx, "external-token")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.Email != "ext@example.com" {
		t.Fatalf("expected provisioned user, got %q", user.Email)
	}

	again, err := users.Resolve(ctx, "external-token")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.ID != user.ID {
		t.Fatal("expected the same account on a second resolve")
	}
}

func TestResolveFallsBackToInternalToken(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	tokens := auth.NewTokenManager("test-secret", 0)
	users := app.NewUserService(store, tokens, auth.NewBcryptHasher(), staticVerifier{email: "ext@example.com"})

	registered, err := users.Register(ctx, "bob@example.com", "bob", "pass1234", "pass1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := tokens.Encode(registered.Email)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	resolved, err := users.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID != registered.ID {
		t.Fatalf("expected user %d, got %d", registered.ID, resolved.ID)
	}
}

func TestUpdateUserChangesCredential(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	user := e.registerUser(t, "alice")

	if _, err := e.users.UpdateUser(ctx, user, "alice2", "newpass99"); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, _, err := e.users.Login(ctx, "alice@example.com", "pass1234"); err == nil {
		t.Fatal("expected old password to stop working")
	}
	_, logged, err := e.users.Login(ctx, "alice@example.com", "newpass99")
	if err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if logged.Username != "alice2" {
		t.Fatalf("expected renamed user, got %q", logged.Username)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.registerUser(t, "owner")
	e.createCompany(t, owner, "acme")

	if err := e.users.DeleteUser(ctx, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.users.GetUser(ctx, owner.ID); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected user to be gone, got %v", err)
	}
	companies, err := e.companies.ListCompanies(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list companies: %v", err)
	}
	if len(companies) != 0 {
		t.Fatalf("expected owned company removed with the account, got %d", len(companies))
	}
}

func TestRefreshTokenIssuesWorkingToken(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.registerUser(t, "alice")

	token, _, err := e.users.Login(ctx, "alice@example.com", "pass1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	fresh, err := e.users.RefreshToken(token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := e.users.Resolve(ctx, fresh); err != nil {
		t.Fatalf("resolve refreshed token: %v", err)
	}
}
