package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"inventoryledger/internal/domain"
	"inventoryledger/internal/store/memory"
)

func TestSignAndParseTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, nil)

	token, err := auth.sign("alice", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.Username != "alice" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsTamperedAndExpired(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, nil)

	token, err := auth.sign("alice", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token + "x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}

	other := NewAuthManager("another-secret-that-is-long-enough!!", time.Hour, nil)
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}

	expired, err := auth.sign("alice", "admin", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestBootstrapUpgradesPlainTextPasswords(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-secret-1")
	t.Setenv("SEED_STAFF_PASSWORD", "staff-secret-1")
	repo := memory.NewSeeded()

	if err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username:  "legacy",
		Password:  "plain-text-pw",
		Role:      "staff",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	auth := NewAuthManager(testSecret, time.Hour, repo)

	resp, err := auth.Login(domain.LoginRequest{Username: "legacy", Password: "plain-text-pw"})
	if err != nil {
		t.Fatalf("login with upgraded password failed: %v", err)
	}
	if resp.Role != "staff" {
		t.Fatalf("expected staff role, got %q", resp.Role)
	}

	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	for _, user := range users {
		if user.Username == "legacy" && !strings.HasPrefix(user.Password, "$2") {
			t.Fatalf("expected legacy password to be upgraded to bcrypt, got %q", user.Password)
		}
	}
}

func TestCreateStaffUserValidation(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, nil)

	if _, err := auth.CreateStaffUser("ab", "longenough"); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := auth.CreateStaffUser("newstaff", "tiny"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}

	account, err := auth.CreateStaffUser("NewStaff", "longenough")
	if err != nil {
		t.Fatalf("create staff failed: %v", err)
	}
	if account.Username != "newstaff" || account.Role != "staff" {
		t.Fatalf("unexpected account %+v", account)
	}
	if account.Password != "" {
		t.Fatalf("password hash must not be returned")
	}

	if _, err := auth.CreateStaffUser("newstaff", "longenough"); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}
