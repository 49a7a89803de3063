package identity

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kidandcat/sprintboard/internal/docstore"
)

// SignIn checks the password and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, Account, error) {
	acct, err := s.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrNoAccount) {
		return Session{}, Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Session{}, Account{}, ErrInvalidCredentials
	}
	sess, err := s.NewSession(ctx, acct.UID)
	if err != nil {
		return Session{}, Account{}, err
	}
	return sess, acct, nil
}

// NewSession opens a session for uid without a password check.
func (s *Service) NewSession(ctx context.Context, uid string) (Session, error) {
	token, err := generateToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	now := s.clock.Now()
	sess := Session{Token: token, UserID: uid, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	d, err := docstore.Encode(sess)
	if err != nil {
		return Session{}, err
	}
	if _, err := s.store.Create(docstore.AsSystem(ctx), colSessions, token, d); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Verify resolves a bearer token to its account. Expired sessions are
// removed on sight.
func (s *Service) Verify(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, ErrInvalidSession
	}
	d, err := s.store.Get(ctx, colSessions, token)
	if errors.Is(err, docstore.ErrNotFound) {
		return Account{}, ErrInvalidSession
	}
	if err != nil {
		return Account{}, err
	}
	var sess Session
	if err := docstore.Decode(d, &sess); err != nil {
		return Account{}, err
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		s.SignOut(ctx, token)
		return Account{}, ErrInvalidSession
	}
	acct, err := s.GetAccount(ctx, sess.UserID)
	if errors.Is(err, ErrNoAccount) {
		return Account{}, ErrInvalidSession
	}
	return acct, err
}

func (s *Service) SignOut(ctx context.Context, token string) {
	if err := s.store.Delete(docstore.AsSystem(ctx), colSessions, token); err != nil {
		s.logger.Warn().Err(err).Msg("delete session")
	}
}

// PurgeExpiredSessions deletes every expired session and reports how
// many were removed.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int, error) {
	docs, err := s.store.Query(ctx, colSessions, docstore.Query{})
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	sessions, err := docstore.DecodeAll[Session](docs)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	sys := docstore.AsSystem(ctx)
	purged := 0
	for _, sess := range sessions {
		if now.Before(sess.ExpiresAt) {
			continue
		}
		if err := s.store.Delete(sys, colSessions, sess.Token); err != nil {
			return purged, fmt.Errorf("delete session: %w", err)
		}
		purged++
	}
	return purged, nil
}
