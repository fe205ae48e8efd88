package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

const testSecret = "test-secret"

func TestAuth_RegisterLoginValidate(t *testing.T) {
	store := memory.New()
	svc := service.NewAuthService(store, testSecret, 15*time.Minute, fixedClock(), zap.NewNop())
	ctx := context.Background()

	reg, err := svc.Register(ctx, &domain.RegisterRequest{Username: "  alice ", Password: "s3cret", Balance: dec("250.50")})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Username != "alice" || reg.ID == "" {
		t.Fatalf("unexpected register response: %+v", reg)
	}

	u, err := store.GetUserByID(ctx, reg.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.PasswordHash == "s3cret" || u.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if !u.Balance.Equal(dec("250.50")) || !u.CreatedAt.Equal(fixedNow) {
		t.Errorf("unexpected stored user: %+v", u)
	}

	login, err := svc.Login(ctx, &domain.LoginRequest{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.ExpiresIn != 900 {
		t.Errorf("expected expiresIn 900, got %d", login.ExpiresIn)
	}

	claims, err := svc.ValidateAccessToken(login.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != reg.ID || claims.Username != "alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestAuth_RegisterDuplicateIsConflict(t *testing.T) {
	store := memory.New()
	svc := service.NewAuthService(store, testSecret, time.Minute, fixedClock(), zap.NewNop())
	ctx := context.Background()

	req := func() *domain.RegisterRequest {
		return &domain.RegisterRequest{Username: "bob", Password: "pw", Balance: decimal.Zero}
	}
	if _, err := svc.Register(ctx, req()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, req())
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAuth_LoginFailuresLookTheSame(t *testing.T) {
	store := memory.New()
	svc := service.NewAuthService(store, testSecret, time.Minute, fixedClock(), zap.NewNop())
	ctx := context.Background()
	if _, err := svc.Register(ctx, &domain.RegisterRequest{Username: "carol", Password: "right"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPw := svc.Login(ctx, &domain.LoginRequest{Username: "carol", Password: "wrong"})
	_, noUser := svc.Login(ctx, &domain.LoginRequest{Username: "nobody", Password: "right"})

	var a, b *domain.ErrUnauthorized
	if !errors.As(wrongPw, &a) || !errors.As(noUser, &b) {
		t.Fatalf("expected ErrUnauthorized for both, got %v / %v", wrongPw, noUser)
	}
	if a.Message != b.Message {
		t.Errorf("messages differ: %q vs %q", a.Message, b.Message)
	}
}

func TestAuth_ValidateRejectsBadTokens(t *testing.T) {
	store := memory.New()
	svc := service.NewAuthService(store, testSecret, time.Minute, fixedClock(), zap.NewNop())
	ctx := context.Background()
	if _, err := svc.Register(ctx, &domain.RegisterRequest{Username: "dave", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	login, err := svc.Login(ctx, &domain.LoginRequest{Username: "dave", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	later := service.Clock(func() time.Time { return fixedNow.Add(2 * time.Minute) })
	expiredView := service.NewAuthService(store, testSecret, time.Minute, later, zap.NewNop())
	otherSecret := service.NewAuthService(store, "another-secret", time.Minute, fixedClock(), zap.NewNop())

	tests := []struct {
		name  string
		svc   *service.AuthService
		token string
	}{
		{"garbage", svc, "not-a-jwt"},
		{"expired", expiredView, login.Token},
		{"wrong secret", otherSecret, login.Token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateAccessToken(tt.token)
			var ua *domain.ErrUnauthorized
			if !errors.As(err, &ua) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
