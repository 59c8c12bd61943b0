package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"spendlog/internal/auth"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

// AccountService covers registration, login and per-user settings.
type AccountService struct {
	users  storage.UserStore
	issuer *auth.Issuer
	logger *applog.Logger
}

func NewAccountService(users storage.UserStore, issuer *auth.Issuer, logger *applog.Logger) *AccountService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &AccountService{
		users:  users,
		issuer: issuer,
		logger: logger.WithComponent(applog.ComponentAuth),
	}
}

// Register creates a user with default settings and a private copy of the
// template categories.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (core.User, error) {
	if err := core.ValidateRegistration(name, email, password); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.users.CreateUser(ctx, core.User{
		Name:         strings.TrimSpace(name),
		Email:        core.NormalizeEmail(email),
		PasswordHash: hash,
		Settings:     core.DefaultSettings(),
	})
	if err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User registered", applog.FieldOwnerID, u.ID)
	return u, nil
}

// dummyHash keeps the unknown-email path as slow as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("spendlog-timing-equalizer")
	return h
})

// Login returns a signed token for valid credentials. An unknown email and a
// wrong password fail the same way.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, core.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		_ = auth.CheckPassword(dummyHash(), password)
		s.logger.InfoContext(ctx, "Login failed", applog.FieldOperation, applog.OpLogin)
		return "", core.User{}, core.ErrAuthentication
	}
	if err != nil {
		return "", core.User{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		s.logger.InfoContext(ctx, "Login failed", applog.FieldOperation, applog.OpLogin, applog.FieldOwnerID, u.ID)
		return "", core.User{}, err
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return "", core.User{}, err
	}
	return token, u, nil
}

func (s *AccountService) IssueToken(u core.User) (string, error) {
	return s.issuer.Issue(u.ID)
}

// Profile returns the authenticated user. A token for a user that no longer
// exists is an authentication failure.
func (s *AccountService) Profile(ctx context.Context, ownerID int64) (core.User, error) {
	u, err := s.users.GetUser(ctx, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrAuthentication
	}
	return u, err
}

func (s *AccountService) Settings(ctx context.Context, ownerID int64) (core.Settings, error) {
	return s.users.GetSettings(ctx, ownerID)
}

// UpdateSettings applies the fields set in p. The monthly budget is required
// on every update; currency and theme keep their stored value when unset.
// Invalid input leaves the stored settings unchanged.
func (s *AccountService) UpdateSettings(ctx context.Context, ownerID int64, p core.SettingsPatch) (core.Settings, error) {
	if p.Empty() {
		return core.Settings{}, core.ErrEmptySettingPatch
	}
	if p.MonthlyBudget == nil || p.MonthlyBudget.Cents <= 0 {
		return core.Settings{}, core.ErrInvalidBudget
	}
	current, err := s.users.GetSettings(ctx, ownerID)
	if err != nil {
		return core.Settings{}, err
	}
	next := current.Apply(p)
	if err := next.Validate(); err != nil {
		return core.Settings{}, err
	}
	saved, err := s.users.UpdateSettings(ctx, ownerID, next)
	if err != nil {
		return core.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.logger.InfoContext(ctx, "Settings updated", applog.FieldOwnerID, ownerID)
	return saved, nil
}
