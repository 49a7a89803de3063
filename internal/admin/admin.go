// Package admin implements the privileged user update callable. It
// runs with system rights after checking the caller's role claim.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/identity"
)

type Kind string

const (
	Unauthenticated  Kind = "unauthenticated"
	PermissionDenied Kind = "permission-denied"
	InvalidArgument  Kind = "invalid-argument"
	AlreadyExists    Kind = "already-exists"
	Internal         Kind = "internal"
)

// Error is the typed failure returned to callers.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func fail(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

type Request struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type Response struct {
	Message string `json:"message"`
}

// Accounts is the part of the identity service the update needs.
type Accounts interface {
	UpdateAccount(ctx context.Context, uid, email, displayName string) (identity.Account, error)
	SetClaims(ctx context.Context, uid string, claims map[string]string) error
}

type Service struct {
	accounts Accounts
	store    *docstore.Store
	clock    clock.Clock
	logger   zerolog.Logger
}

func New(accounts Accounts, store *docstore.Store, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{accounts: accounts, store: store, clock: clk, logger: logger}
}

// UpdateUser sets a user's email, display name and system role. It
// makes three writes in order: the identity account, the role claim,
// then the profile. A failure part way leaves the earlier writes in
// place.
func (s *Service) UpdateUser(ctx context.Context, caller access.Subject, req Request) (Response, error) {
	if !caller.Authenticated() {
		return Response{}, fail(Unauthenticated, "sign in required")
	}
	if !caller.Admin() {
		return Response{}, fail(PermissionDenied, "only admins can update users")
	}

	req.UID = strings.TrimSpace(req.UID)
	req.Email = identity.NormalizeEmail(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.UID == "" || req.Email == "" || req.DisplayName == "" || req.Role == "" {
		return Response{}, fail(InvalidArgument, "uid, email, displayName and role are required")
	}
	role := domain.SystemRole(req.Role)
	if !role.Valid() {
		return Response{}, fail(InvalidArgument, fmt.Sprintf("role must be %q or %q", domain.RoleAdmin, domain.RoleMember))
	}

	log := s.logger.With().Str("uid", req.UID).Str("by", caller.UserID).Logger()

	if _, err := s.accounts.UpdateAccount(ctx, req.UID, req.Email, req.DisplayName); err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return Response{}, fail(AlreadyExists, "email already in use by another account")
		}
		log.Error().Err(err).Msg("update account")
		return Response{}, fail(Internal, "failed to update user")
	}
	if err := s.accounts.SetClaims(ctx, req.UID, map[string]string{"role": string(role)}); err != nil {
		log.Error().Err(err).Msg("set role claim")
		return Response{}, fail(Internal, "failed to update user")
	}
	if err := s.writeProfile(ctx, req, role); err != nil {
		log.Error().Err(err).Msg("write profile")
		return Response{}, fail(Internal, "failed to update user")
	}

	log.Info().Str("role", string(role)).Msg("user updated")
	return Response{Message: "User updated successfully"}, nil
}

func (s *Service) writeProfile(ctx context.Context, req Request, role domain.SystemRole) error {
	ctx = docstore.AsSystem(ctx)
	now := s.clock.Now()
	fields := docstore.Doc{
		"email":       req.Email,
		"displayName": req.DisplayName,
		"role":        string(role),
		"updatedAt":   now,
	}
	_, err := s.store.Update(ctx, domain.ColUserProfiles, req.UID, fields)
	if !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	fields["createdAt"] = now
	_, err = s.store.Create(ctx, domain.ColUserProfiles, req.UID, fields)
	return err
}
