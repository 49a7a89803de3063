// Package identity is the account service: email and password accounts,
// custom claims, and bearer sessions. It owns the accounts,
// accountEmails and sessions collections and always writes them as the
// system actor.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
)

const (
	colAccounts      = "accounts"
	colAccountEmails = "accountEmails"
	colSessions      = "sessions"

	minPasswordLen = 8
)

var (
	ErrEmailExists        = errors.New("identity: email already in use")
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
	ErrInvalidSession     = errors.New("identity: invalid or expired session")
	ErrNoAccount          = errors.New("identity: no such account")
	ErrWeakPassword       = fmt.Errorf("identity: password must be at least %d characters", minPasswordLen)
)

type Account struct {
	UID          string            `json:"id"`
	Email        string            `json:"email"`
	DisplayName  string            `json:"displayName"`
	PasswordHash string            `json:"passwordHash"`
	Claims       map[string]string `json:"claims,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Claim returns a custom claim, or "".
func (a Account) Claim(name string) string { return a.Claims[name] }

type Session struct {
	Token     string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	store  *docstore.Store
	clock  clock.Clock
	ttl    time.Duration
	logger zerolog.Logger
}

func New(store *docstore.Store, clk clock.Clock, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &Service{store: store, clock: clk, ttl: sessionTTL, logger: logger}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateAccount registers a new account. Emails are unique
// case-insensitively.
func (s *Service) CreateAccount(ctx context.Context, email, password, displayName string) (Account, error) {
	ctx = docstore.AsSystem(ctx)
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Account{}, fmt.Errorf("identity: invalid email %q", email)
	}
	if len(password) < minPasswordLen {
		return Account{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	acct := Account{
		UID:          docstore.NewID(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.claimEmail(ctx, email, acct.UID); err != nil {
		return Account{}, err
	}
	d, err := docstore.Encode(acct)
	if err != nil {
		return Account{}, err
	}
	if _, err := s.store.Create(ctx, colAccounts, acct.UID, d); err != nil {
		s.releaseEmail(ctx, email)
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info().Str("uid", acct.UID).Str("email", email).Msg("account created")
	return acct, nil
}

func (s *Service) claimEmail(ctx context.Context, email, uid string) error {
	_, err := s.store.Create(ctx, colAccountEmails, email, docstore.Doc{"uid": uid})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("reserve email: %w", err)
	}
	return nil
}

func (s *Service) releaseEmail(ctx context.Context, email string) {
	if err := s.store.Delete(ctx, colAccountEmails, email); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("release email index")
	}
}

func (s *Service) GetAccount(ctx context.Context, uid string) (Account, error) {
	d, err := s.store.Get(ctx, colAccounts, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return Account{}, ErrNoAccount
	}
	if err != nil {
		return Account{}, err
	}
	var a Account
	if err := docstore.Decode(d, &a); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	d, err := s.store.Get(ctx, colAccountEmails, NormalizeEmail(email))
	if errors.Is(err, docstore.ErrNotFound) {
		return Account{}, ErrNoAccount
	}
	if err != nil {
		return Account{}, err
	}
	uid, _ := d["uid"].(string)
	return s.GetAccount(ctx, uid)
}

// UpdateAccount changes email and display name. Moving to an email
// held by another account fails with ErrEmailExists.
func (s *Service) UpdateAccount(ctx context.Context, uid, email, displayName string) (Account, error) {
	ctx = docstore.AsSystem(ctx)
	acct, err := s.GetAccount(ctx, uid)
	if err != nil {
		return Account{}, err
	}
	email = NormalizeEmail(email)
	oldEmail := acct.Email
	if email != oldEmail {
		if err := s.claimEmail(ctx, email, uid); err != nil {
			return Account{}, err
		}
	}
	d, err := s.store.Update(ctx, colAccounts, uid, docstore.Doc{
		"email":       email,
		"displayName": strings.TrimSpace(displayName),
		"updatedAt":   s.clock.Now(),
	})
	if err != nil {
		if email != oldEmail {
			s.releaseEmail(ctx, email)
		}
		return Account{}, fmt.Errorf("update account: %w", err)
	}
	if email != oldEmail {
		s.releaseEmail(ctx, oldEmail)
	}
	if err := docstore.Decode(d, &acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// SetClaims replaces the account's custom claims.
func (s *Service) SetClaims(ctx context.Context, uid string, claims map[string]string) error {
	ctx = docstore.AsSystem(ctx)
	if _, err := s.GetAccount(ctx, uid); err != nil {
		return err
	}
	_, err := s.store.Update(ctx, colAccounts, uid, docstore.Doc{
		"claims":    claims,
		"updatedAt": s.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("set claims: %w", err)
	}
	return nil
}

func (s *Service) SetPassword(ctx context.Context, uid, password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.store.Update(docstore.AsSystem(ctx), colAccounts, uid, docstore.Doc{
		"passwordHash": string(hash),
		"updatedAt":    s.clock.Now(),
	})
	return err
}
