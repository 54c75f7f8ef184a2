package directory

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdeck/workdeck/internal/common"
	"github.com/workdeck/workdeck/internal/dbx"
	"github.com/workdeck/workdeck/internal/logging"
	"github.com/workdeck/workdeck/internal/server/config"
	"github.com/workdeck/workdeck/internal/server/models"
	groupsrepo "github.com/workdeck/workdeck/internal/server/repositories/groups"
	usersrepo "github.com/workdeck/workdeck/internal/server/repositories/users"
)

// --- fakes ---

// fakeUsersRepo is an in-memory identity store enforcing the email
// uniqueness constraint the way the real schema does.
type fakeUsersRepo struct {
	nextID  int64
	byID    map[int64]*models.User
	members map[int64][]int64
	failErr error // when set, every call fails with this error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{nextID: 1, byID: map[int64]*models.User{}, members: map[int64][]int64{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrUserAlreadyExists
		}
	}
	u.ID = f.nextID
	f.nextID++
	stored := *u
	f.byID[u.ID] = &stored
	return u, nil
}

func (f *fakeUsersRepo) Save(ctx context.Context, u *models.User) error {
	if f.failErr != nil {
		return f.failErr
	}
	if _, ok := f.byID[u.ID]; !ok {
		return common.ErrUserDoesNotExist
	}
	stored := *u
	f.byID[u.ID] = &stored
	return nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, common.ErrUserDoesNotExist
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrUserDoesNotExist
}

func (f *fakeUsersRepo) GetByDisplayName(ctx context.Context, name string) (*models.User, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, u := range f.byID {
		if u.DisplayName == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrUserDoesNotExist
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeUsersRepo) AttachGroup(ctx context.Context, userID, groupID int64) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.members[userID] = append(f.members[userID], groupID)
	return nil
}

func (f *fakeUsersRepo) GroupsOf(ctx context.Context, userID int64) ([]*models.Group, error) {
	return nil, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Groups(db dbx.DBTX) groupsrepo.Repository     { return nil }

type fakeNotifier struct {
	err      error
	gotEmail string
	gotPass  string
	calls    int
}

func (n *fakeNotifier) NotifyCreatedAccount(ctx context.Context, u *models.User, password string) error {
	n.calls++
	n.gotEmail = u.Email
	n.gotPass = password
	return n.err
}

// --- helpers ---

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestService(t *testing.T) (*Service, *fakeUsersRepo, *fakeNotifier) {
	t.Helper()
	repo := newFakeUsersRepo()
	notifier := &fakeNotifier{}
	cfg := &config.Config{AuthTokenValidity: time.Hour}
	s := NewService(nil, &fakeRepoManager{u: repo}, notifier, cfg, testLogger(), nil)
	return s, repo, notifier
}

func strptr(s string) *string { return &s }

// --- tests ---

func TestCreateMinimal_DisplayNameDefaultsToLocalPart(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "alice"},
		{"bob.builder@sub.example.org", "bob.builder"},
		{"x@y", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			s, repo, _ := newTestService(t)

			user, err := s.CreateMinimal(context.Background(), tt.email, nil, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.DisplayName)
			assert.NotZero(t, user.ID)

			stored, err := repo.GetByEmail(context.Background(), tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.DisplayName)
		})
	}
}

func TestCreateMinimal_InvalidEmail(t *testing.T) {
	bad := []string{"", "alice", "alice@", "@example.com", "a@b@c", "alice.example.com"}

	for _, email := range bad {
		t.Run("invalid_"+email, func(t *testing.T) {
			s, repo, _ := newTestService(t)

			_, err := s.CreateMinimal(context.Background(), email, nil, true)
			require.ErrorIs(t, err, common.ErrEmailValidationFailed)
			assert.Empty(t, repo.byID, "no user must be persisted")
		})
	}
}

func TestCreateMinimal_NoPersistKeepsStoreEmpty(t *testing.T) {
	s, repo, _ := newTestService(t)

	user, err := s.CreateMinimal(context.Background(), "alice@example.com", nil, false)
	require.NoError(t, err)
	assert.Zero(t, user.ID)
	assert.Empty(t, repo.byID)
}

func TestExistsByEmail(t *testing.T) {
	s, repo, _ := newTestService(t)
	ctx := context.Background()

	ok, err := s.ExistsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CreateMinimal(ctx, "alice@example.com", nil, true)
	require.NoError(t, err)

	ok, err = s.ExistsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	// non-lookup failures must propagate, not collapse to false
	repo.failErr = errors.New("storage unavailable")
	_, err = s.ExistsByEmail(ctx, "alice@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrUserDoesNotExist)
}

func TestAuthenticate(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := s.Create(ctx, CreateParams{
		Email:    "alice@example.com",
		Password: strptr("s3cret"),
		Persist:  true,
	})
	require.NoError(t, err)

	got, err := s.Authenticate(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, errWrongPass := s.Authenticate(ctx, "alice@example.com", "nope")
	_, errUnknown := s.Authenticate(ctx, "who@example.com", "whatever")

	// one uniform failure kind, indistinguishable to the caller
	require.ErrorIs(t, errWrongPass, common.ErrAuthenticationFailed)
	require.ErrorIs(t, errUnknown, common.ErrAuthenticationFailed)
	assert.Equal(t, errWrongPass.Error(), errUnknown.Error())
}

func TestAuthenticate_StorageErrorKeepsCause(t *testing.T) {
	s, repo, _ := newTestService(t)
	repo.failErr = errors.New("storage unavailable")

	_, err := s.Authenticate(context.Background(), "alice@example.com", "pw")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.NotErrorIs(t, err, common.ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "storage unavailable")
}

func TestAuthenticateToken(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateMinimal(ctx, "alice@example.com", nil, true)
	require.NoError(t, err)

	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	require.NoError(t, s.FinalizeCreation(ctx, user))

	got, err := s.AuthenticateToken(ctx, "alice@example.com", user.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.AuthenticateToken(ctx, "alice@example.com", "wrong-token")
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)

	_, err = s.AuthenticateToken(ctx, "alice@example.com", "")
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)

	_, err = s.AuthenticateToken(ctx, "who@example.com", user.AuthToken)
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)

	// outside the configured validity window (one hour in this setup)
	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = s.AuthenticateToken(ctx, "alice@example.com", user.AuthToken)
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)
}

func TestFind_MatchesAndOrdering(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	alice, err := s.CreateMinimal(ctx, "alice@example.com", nil, true)
	require.NoError(t, err)
	bob, err := s.CreateMinimal(ctx, "bob@example.com", nil, true)
	require.NoError(t, err)

	kind, got, err := s.Find(ctx, Criteria{ID: alice.ID})
	require.NoError(t, err)
	assert.Equal(t, MatchUserID, kind)
	assert.Equal(t, alice.ID, got.ID)

	kind, got, err = s.Find(ctx, Criteria{Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, MatchEmail, kind)
	assert.Equal(t, alice.ID, got.ID)

	kind, got, err = s.Find(ctx, Criteria{DisplayName: "alice"})
	require.NoError(t, err)
	assert.Equal(t, MatchDisplayName, kind)
	assert.Equal(t, alice.ID, got.ID)

	// id wins over email when both are present
	kind, got, err = s.Find(ctx, Criteria{ID: bob.ID, Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, MatchUserID, kind)
	assert.Equal(t, bob.ID, got.ID)

	// a dead criterion is skipped, the next one still matches
	kind, got, err = s.Find(ctx, Criteria{ID: 9999, Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, MatchEmail, kind)
	assert.Equal(t, alice.ID, got.ID)

	_, _, err = s.Find(ctx, Criteria{})
	require.ErrorIs(t, err, common.ErrUserDoesNotExist)

	_, _, err = s.Find(ctx, Criteria{ID: 9999, Email: "no@no", DisplayName: "nobody"})
	require.ErrorIs(t, err, common.ErrUserDoesNotExist)
}

func TestFind_StorageErrorPropagates(t *testing.T) {
	s, repo, _ := newTestService(t)
	repo.failErr = errors.New("storage unavailable")

	// an outage must not be reported as a missing user
	_, _, err := s.Find(context.Background(), Criteria{ID: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrUserDoesNotExist)

	_, _, err = s.Find(context.Background(), Criteria{Email: "alice@example.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrUserDoesNotExist)

	_, _, err = s.Find(context.Background(), Criteria{DisplayName: "alice"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrUserDoesNotExist)
}

func TestUpdate_AllOrNothingOnBadEmail(t *testing.T) {
	s, repo, _ := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateMinimal(ctx, "alice@example.com", nil, true)
	require.NoError(t, err)
	require.Equal(t, "alice", user.DisplayName)

	err = s.Update(ctx, user, UpdateParams{
		Name:    strptr("Alice A."),
		Email:   strptr("not-an-email"),
		Persist: true,
	})
	require.ErrorIs(t, err, common.ErrEmailValidationFailed)

	// nothing changed, in memory or in the store
	assert.Equal(t, "alice", user.DisplayName)
	assert.Equal(t, "alice@example.com", user.Email)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.DisplayName)
	assert.Equal(t, "alice@example.com", stored.Email)
}

func TestUpdate_AppliesProvidedFields(t *testing.T) {
	s, repo, _ := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateMinimal(ctx, "alice@example.com", nil, true)
	require.NoError(t, err)

	err = s.Update(ctx, user, UpdateParams{
		Name:     strptr("Alice A."),
		Email:    strptr("alice@corp.example"),
		Password: strptr("hunter2"),
		Timezone: "Europe/Paris",
		Persist:  true,
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", stored.DisplayName)
	assert.Equal(t, "alice@corp.example", stored.Email)
	assert.Equal(t, "Europe/Paris", stored.Timezone)
	assert.True(t, stored.ValidatePassword("hunter2"))
	assert.False(t, stored.ValidatePassword("hunter3"))
}

func TestUpdate_TimezoneAlwaysOverwrites(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateMinimal(ctx, "alice@example.com", nil, true)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, user, UpdateParams{Timezone: "UTC", Persist: true}))
	assert.Equal(t, "UTC", user.Timezone)

	// the empty string is a value, not an absence
	require.NoError(t, s.Update(ctx, user, UpdateParams{Timezone: "", Persist: true}))
	assert.Equal(t, "", user.Timezone)
}

func TestCreate_NotificationFailureAbortsPersist(t *testing.T) {
	s, repo, notifier := newTestService(t)
	notifier.err = errors.New("smtp: connection refused")

	_, err := s.Create(context.Background(), CreateParams{
		Email:    "alice@example.com",
		Password: strptr("s3cret"),
		Persist:  true,
		Notify:   true,
	})
	require.ErrorIs(t, err, common.ErrNotificationNotSent)
	assert.Empty(t, repo.byID, "a failed notification must not leave a persisted user")
}

func TestCreate_NotifiesWithPlaintextPasswordBeforePersist(t *testing.T) {
	s, repo, notifier := newTestService(t)

	user, err := s.Create(context.Background(), CreateParams{
		Email:    "alice@example.com",
		Password: strptr("s3cret"),
		Name:     strptr("Alice"),
		Persist:  true,
		Notify:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "alice@example.com", notifier.gotEmail)
	assert.Equal(t, "s3cret", notifier.gotPass)

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.DisplayName)
	assert.NotEqual(t, "s3cret", stored.PasswordHash, "password must never be stored in plaintext")
	assert.True(t, stored.ValidatePassword("s3cret"))
}

func TestCreate_DuplicateEmailSurfaces(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, CreateParams{Email: "alice@example.com", Persist: true})
	require.NoError(t, err)

	_, err = s.Create(ctx, CreateParams{Email: "alice@example.com", Persist: true})
	require.ErrorIs(t, err, common.ErrUserAlreadyExists)
}

func TestCreate_AttachesGroups(t *testing.T) {
	s, repo, _ := newTestService(t)

	g := &models.Group{ID: 7, Name: models.GroupUsers}
	user, err := s.Create(context.Background(), CreateParams{
		Email:   "alice@example.com",
		Groups:  []*models.Group{g},
		Persist: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, repo.members[user.ID])
}

func TestFinalizeCreation_IssuesToken(t *testing.T) {
	s, repo, _ := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateMinimal(ctx, "alice@example.com", nil, true)
	require.NoError(t, err)
	require.Empty(t, user.AuthToken)

	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	require.NoError(t, s.FinalizeCreation(ctx, user))
	assert.NotEmpty(t, user.AuthToken)
	assert.Equal(t, issued, user.AuthTokenCreated)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.AuthToken, stored.AuthToken)

	assert.True(t, stored.AuthTokenValid(issued.Add(30*time.Minute), time.Hour))
	assert.False(t, stored.AuthTokenValid(issued.Add(2*time.Hour), time.Hour))
}

func TestListAll_OrderedByDisplayNameThenID(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	// same display name "dup", different ids; plus one sorting first
	_, err := s.CreateMinimal(ctx, "dup@one.example", nil, true)
	require.NoError(t, err)
	_, err = s.CreateMinimal(ctx, "dup@two.example", nil, true)
	require.NoError(t, err)
	_, err = s.CreateMinimal(ctx, "aaa@example.com", nil, true)
	require.NoError(t, err)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, "aaa", all[0].DisplayName)
	assert.Equal(t, "dup", all[1].DisplayName)
	assert.Equal(t, "dup", all[2].DisplayName)
	assert.Less(t, all[1].ID, all[2].ID, "ties break by id")
}

func TestCurrent(t *testing.T) {
	s, _, _ := newTestService(t)

	_, err := s.Current()
	require.ErrorIs(t, err, common.ErrUserDoesNotExist)

	bound := NewService(nil, &fakeRepoManager{u: newFakeUsersRepo()}, &fakeNotifier{},
		&config.Config{}, testLogger(), &models.User{ID: 42, Email: "me@example.com"})

	me, err := bound.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(42), me.ID)
}
