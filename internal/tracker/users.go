package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/identity"
)

// SignUp creates an account and its member profile.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (domain.UserProfile, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.UserProfile{}, invalid("display name required")
	}
	acct, err := s.identity.CreateAccount(ctx, email, password, displayName)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if err := s.identity.SetClaims(ctx, acct.UID, map[string]string{"role": string(domain.RoleMember)}); err != nil {
		return domain.UserProfile{}, err
	}
	now := s.clock.Now()
	prof := domain.UserProfile{
		ID:          acct.UID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Role:        domain.RoleMember,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := create(docstore.AsSystem(ctx), s.store, domain.ColUserProfiles, prof.ID, prof); err != nil {
		return domain.UserProfile{}, fmt.Errorf("create profile: %w", err)
	}
	return prof, nil
}

// PromoteAdmin gives the account with email the admin role, in its
// claims and its profile.
func (s *Service) PromoteAdmin(ctx context.Context, email string) (domain.UserProfile, error) {
	acct, err := s.identity.GetAccountByEmail(ctx, email)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if acct.Claim("role") != string(domain.RoleAdmin) {
		if err := s.identity.SetClaims(ctx, acct.UID, map[string]string{"role": string(domain.RoleAdmin)}); err != nil {
			return domain.UserProfile{}, err
		}
	}
	sys := docstore.AsSystem(ctx)
	now := s.clock.Now()
	d, err := s.store.Update(sys, domain.ColUserProfiles, acct.UID, docstore.Doc{"role": string(domain.RoleAdmin), "updatedAt": now})
	if errors.Is(err, docstore.ErrNotFound) {
		prof := domain.UserProfile{ID: acct.UID, Email: acct.Email, DisplayName: acct.DisplayName, Role: domain.RoleAdmin, CreatedAt: now, UpdatedAt: now}
		_, err = create(sys, s.store, domain.ColUserProfiles, prof.ID, prof)
		return prof, err
	}
	if err != nil {
		return domain.UserProfile{}, err
	}
	var prof domain.UserProfile
	err = docstore.Decode(d, &prof)
	return prof, err
}

// SyncAdmins promotes every listed email that has an account. Emails
// without an account are reported and skipped.
func (s *Service) SyncAdmins(ctx context.Context, emails []string) error {
	for _, email := range emails {
		email = identity.NormalizeEmail(email)
		if email == "" {
			continue
		}
		_, err := s.PromoteAdmin(ctx, email)
		if errors.Is(err, identity.ErrNoAccount) {
			s.logger.Warn().Str("email", email).Msg("admin email has no account; create it with `sprintboard user create`")
			continue
		}
		if err != nil {
			return fmt.Errorf("promote %s: %w", email, err)
		}
		s.logger.Info().Str("email", email).Msg("admin synced")
	}
	return nil
}

// Subject resolves a verified account into the caller the rest of the
// package checks against. The system role comes from the role claim.
func Subject(acct identity.Account) access.Subject {
	role := domain.SystemRole(acct.Claim("role"))
	if !role.Valid() {
		role = domain.RoleMember
	}
	return access.Subject{UserID: acct.UID, DisplayName: acct.DisplayName, Role: role}
}

func (s *Service) GetProfile(ctx context.Context, sub access.Subject, id string) (domain.UserProfile, error) {
	if !sub.Authenticated() {
		return domain.UserProfile{}, fmt.Errorf("%w: not signed in", ErrForbidden)
	}
	return load[domain.UserProfile](ctx, s.store, domain.ColUserProfiles, id, "profile")
}

func (s *Service) ListProfiles(ctx context.Context, sub access.Subject) ([]domain.UserProfile, error) {
	if err := s.check(ctx, sub, access.ManageUsers, access.Target{}); err != nil {
		return nil, err
	}
	return query[domain.UserProfile](ctx, s.store, domain.ColUserProfiles, docstore.Query{OrderBy: "email"})
}

func (s *Service) AuditLog(ctx context.Context, sub access.Subject, f audit.Filter) ([]domain.AuditLog, error) {
	if err := s.check(ctx, sub, access.ViewAuditLog, access.Target{}); err != nil {
		return nil, err
	}
	return s.audit.List(ctx, f)
}
