// Package directory implements the user directory service: the single
// point of truth for resolving, validating, creating, updating, and
// authenticating user identities.
//
// A Service instance is request-scoped. It runs every read and mutation
// on the session handle it was constructed with; when that handle is a
// transaction, mutations are flushed into the unit of work and become
// durable only when the caller commits (see dbx.WithTx).
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/workdeck/workdeck/internal/common"
	"github.com/workdeck/workdeck/internal/dbx"
	"github.com/workdeck/workdeck/internal/logging"
	"github.com/workdeck/workdeck/internal/server/auth"
	"github.com/workdeck/workdeck/internal/server/config"
	"github.com/workdeck/workdeck/internal/server/models"
	"github.com/workdeck/workdeck/internal/server/notify"
	"github.com/workdeck/workdeck/internal/server/repositories/repomanager"
)

// MatchKind tells which criterion a Find call matched on.
type MatchKind string

const (
	MatchUserID      MatchKind = "user_id"
	MatchEmail       MatchKind = "email"
	MatchDisplayName MatchKind = "display_name"
)

// Service resolves, creates, updates, and authenticates user identities.
type Service struct {
	session  dbx.DBTX
	repos    repomanager.RepositoryManager
	notifier notify.Notifier
	cfg      *config.Config
	log      logging.Logger
	current  *models.User

	now func() time.Time
}

// NewService constructs a request-scoped directory service over the given
// session handle. current may be nil for anonymous access.
func NewService(session dbx.DBTX, repos repomanager.RepositoryManager, notifier notify.Notifier,
	cfg *config.Config, log logging.Logger, current *models.User) *Service {
	return &Service{
		session:  session,
		repos:    repos,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With("module", "directory"),
		current:  current,
		now:      time.Now,
	}
}

// GetByID returns the user with the given id.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repos.Users(s.session).GetByID(ctx, id)
}

// GetByEmail returns the user with the given email (exact match).
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repos.Users(s.session).GetByEmail(ctx, email)
}

// GetByDisplayName returns the user with the given display name (exact match).
func (s *Service) GetByDisplayName(ctx context.Context, name string) (*models.User, error) {
	return s.repos.Users(s.session).GetByDisplayName(ctx, name)
}

// Current returns the identity bound to this service instance, or
// common.ErrUserDoesNotExist for anonymous access.
func (s *Service) Current() (*models.User, error) {
	if s.current == nil {
		return nil, common.ErrUserDoesNotExist
	}
	return s.current, nil
}

// ListAll returns a snapshot of all users ordered by display name
// ascending, with id as the tie-break key.
func (s *Service) ListAll(ctx context.Context) ([]*models.User, error) {
	return s.repos.Users(s.session).List(ctx)
}

// Criteria holds the optional lookup keys for Find. Zero values are
// treated as absent.
type Criteria struct {
	ID          int64
	Email       string
	DisplayName string
}

// Find tries the supplied criteria in fixed order (id, then email, then
// display name) and short-circuits on the first match. Returns
// common.ErrUserDoesNotExist when none of the present criteria match.
// Only a not-found result moves on to the next criterion; any other
// storage failure propagates.
func (s *Service) Find(ctx context.Context, c Criteria) (MatchKind, *models.User, error) {
	if c.ID != 0 {
		user, err := s.GetByID(ctx, c.ID)
		if err == nil {
			return MatchUserID, user, nil
		}
		if !errors.Is(err, common.ErrUserDoesNotExist) {
			return "", nil, err
		}
	}
	if c.Email != "" {
		user, err := s.GetByEmail(ctx, c.Email)
		if err == nil {
			return MatchEmail, user, nil
		}
		if !errors.Is(err, common.ErrUserDoesNotExist) {
			return "", nil, err
		}
	}
	if c.DisplayName != "" {
		user, err := s.GetByDisplayName(ctx, c.DisplayName)
		if err == nil {
			return MatchDisplayName, user, nil
		}
		if !errors.Is(err, common.ErrUserDoesNotExist) {
			return "", nil, err
		}
	}
	return "", nil, common.ErrUserDoesNotExist
}

// ExistsByEmail reports whether a user with the given email exists.
// Only the not-found case collapses to false; any other storage failure
// propagates as an error.
func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrUserDoesNotExist) {
		return false, nil
	}
	return false, err
}

// Authenticate verifies the email/password pair and returns the matching
// user. Unknown email and wrong password both fail with
// common.ErrAuthenticationFailed so callers cannot distinguish the causes.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrUserDoesNotExist) {
			s.log.Info(ctx, "authentication failed: unknown email", "email", email)
			return nil, common.ErrAuthenticationFailed
		}
		s.log.Error(ctx, "authentication lookup failed", "email", email, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if !user.ValidatePassword(password) {
		s.log.Info(ctx, "authentication failed: wrong password", "email", email)
		return nil, common.ErrAuthenticationFailed
	}

	return user, nil
}

// AuthenticateToken verifies the opaque auth token issued by
// FinalizeCreation as an alternate credential. The token must match the
// stored value and still be inside the configured validity window.
// Failures are uniform, same as Authenticate.
func (s *Service) AuthenticateToken(ctx context.Context, email, token string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrUserDoesNotExist) {
			s.log.Info(ctx, "token authentication failed: unknown email", "email", email)
			return nil, common.ErrAuthenticationFailed
		}
		s.log.Error(ctx, "token authentication lookup failed", "email", email, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if token == "" || user.AuthToken != token {
		s.log.Info(ctx, "token authentication failed: wrong token", "email", email)
		return nil, common.ErrAuthenticationFailed
	}
	if !user.AuthTokenValid(s.now(), s.cfg.AuthTokenValidity) {
		s.log.Info(ctx, "token authentication failed: token expired", "email", email)
		return nil, common.ErrAuthenticationFailed
	}

	return user, nil
}

// UpdateParams lists the fields Update may change. Nil pointers mean
// "leave unchanged"; Timezone always overwrites, including with the empty
// string.
type UpdateParams struct {
	Name     *string
	Email    *string
	Password *string
	Timezone string
	Persist  bool
}

// Update applies the provided fields to user. Validation happens before
// any mutation, so a rejected email leaves every field untouched
// (all-or-nothing per call). With Persist the change is flushed to the
// identity store; the transaction commit stays with the caller.
func (s *Service) Update(ctx context.Context, user *models.User, p UpdateParams) error {
	if err := s.apply(user, p.Name, p.Email, p.Password, p.Timezone); err != nil {
		return err
	}

	if p.Persist {
		return s.repos.Users(s.session).Save(ctx, user)
	}
	return nil
}

// apply validates and then mutates user in field order: name, email,
// password, timezone. All validation and fallible work happens before the
// first assignment.
func (s *Service) apply(user *models.User, name, email, password *string, timezone string) error {
	if email != nil && !validEmail(*email) {
		return fmt.Errorf("%w: %q", common.ErrEmailValidationFailed, *email)
	}

	var passwordHash string
	if password != nil {
		var tmp models.User
		if err := tmp.SetPassword(*password); err != nil {
			return err
		}
		passwordHash = tmp.PasswordHash
	}

	if name != nil {
		user.DisplayName = *name
	}
	if email != nil {
		user.Email = *email
	}
	if password != nil {
		user.PasswordHash = passwordHash
	}
	user.Timezone = timezone

	return nil
}

// CreateMinimal builds a user from an email and optional groups. The
// display name defaults to the email's local part. With persist the user
// is inserted (and memberships attached) immediately; otherwise the
// record stays in memory for the caller to enrich and store.
func (s *Service) CreateMinimal(ctx context.Context, email string, groups []*models.Group, persist bool) (*models.User, error) {
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: %q", common.ErrEmailValidationFailed, email)
	}

	user := &models.User{
		Email:       email,
		DisplayName: strings.SplitN(email, "@", 2)[0],
		Groups:      append([]*models.Group{}, groups...),
	}

	if persist {
		if err := s.insert(ctx, user); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// CreateParams collects the inputs for Create. Groups defaults to an
// empty set; Persist and Notify default to false and must be set
// explicitly.
type CreateParams struct {
	Email    string
	Password *string
	Name     *string
	Timezone string
	Groups   []*models.Group
	Persist  bool
	Notify   bool
}

// Create composes CreateMinimal and Update: it validates the email,
// enriches the in-memory record, notifies the new user, and only then
// stores the record. A notification transport failure is returned as
// common.ErrNotificationNotSent and prevents the final persist, so a
// half-created user never reaches the identity store.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.User, error) {
	user, err := s.CreateMinimal(ctx, p.Email, p.Groups, false)
	if err != nil {
		return nil, err
	}

	if err := s.apply(user, p.Name, nil, p.Password, p.Timezone); err != nil {
		return nil, err
	}

	if p.Notify {
		var password string
		if p.Password != nil {
			password = *p.Password
		}
		if err := s.notifier.NotifyCreatedAccount(ctx, user, password); err != nil {
			s.log.Error(ctx, "created-account notification failed", "email", user.Email, "error", err.Error())
			return nil, fmt.Errorf("%w: %v", common.ErrNotificationNotSent, err)
		}
	}

	if p.Persist {
		if err := s.insert(ctx, user); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// FinalizeCreation runs the post-creation actions for a stored user: it
// issues an opaque auth token with the configured validity window and
// flushes it to the identity store. Making the unit of work durable is
// the caller's job; wrap the whole creation in dbx.WithTx.
func (s *Service) FinalizeCreation(ctx context.Context, user *models.User) error {
	user.AuthToken = auth.NewAuthToken()
	user.AuthTokenCreated = s.now()

	if err := s.repos.Users(s.session).Save(ctx, user); err != nil {
		return err
	}

	s.log.Info(ctx, "issued auth token",
		"user_id", user.ID,
		"validity_seconds", int64(s.cfg.AuthTokenValidity.Seconds()))
	return nil
}

// insert stores a new user and attaches its group memberships on the
// session handle.
func (s *Service) insert(ctx context.Context, user *models.User) error {
	repo := s.repos.Users(s.session)

	if _, err := repo.Create(ctx, user); err != nil {
		return err
	}

	for _, g := range user.Groups {
		if err := repo.AttachGroup(ctx, user.ID, g.ID); err != nil {
			return err
		}
	}

	return nil
}

// validEmail accepts addresses of the form local@domain with exactly one
// "@" and non-empty parts on both sides.
func validEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return parts[0] != "" && parts[1] != ""
}
