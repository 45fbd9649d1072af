package authstate_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	authstate "github.com/printworks/go-authstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	migration, err := authstate.GetMigrationsFS().ReadFile(
		"data/sql/migrations/20250301000000_create_profiles.up.sql")
	require.NoError(t, err)

	_, err = db.Exec(string(migration))
	require.NoError(t, err)

	return db
}

func seedProfile(t *testing.T, repo authstate.Profiles, email string, role authstate.UserRole) *authstate.Profile {
	t.Helper()

	record, err := repo.Upsert(context.Background(), &authstate.Profile{
		ID:    uuid.New(),
		Name:  authstate.DisplayNameFromEmail(email),
		Email: email,
		Role:  role,
	})
	require.NoError(t, err)
	return record
}

func TestProfilesRoundTrip(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))

	seeded := seedProfile(t, repo, "pat@example.com", authstate.RoleEditor)

	found, err := repo.GetByUserID(context.Background(), seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
	assert.Equal(t, "pat@example.com", found.Email)
	assert.Equal(t, authstate.RoleEditor, found.Role)

	byEmail, err := repo.GetByEmail(context.Background(), "pat@example.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byEmail.ID)
}

func TestProfilesGetByUserIDNotFound(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))

	_, err := repo.GetByUserID(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestProfilesGetByUserIDBadID(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))

	_, err := repo.GetByUserID(context.Background(), "not-a-uuid")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryBadInput, richErr.Category)
}

func TestProfilesUpsertUpdatesInPlace(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))

	seeded := seedProfile(t, repo, "pat@example.com", authstate.RoleViewer)

	seeded.Name = "Pat Renamed"
	seeded.Role = authstate.RoleEditor
	_, err := repo.Upsert(context.Background(), seeded)
	require.NoError(t, err)

	found, err := repo.GetByUserID(context.Background(), seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Pat Renamed", found.Name)
	assert.Equal(t, authstate.RoleEditor, found.Role)
}

func TestProfilesUpsertCoercesRole(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))

	record, err := repo.Upsert(context.Background(), &authstate.Profile{
		ID:    uuid.New(),
		Email: "weird@example.com",
		Role:  "superuser",
	})
	require.NoError(t, err)
	assert.Equal(t, authstate.RoleViewer, record.Role)
}

func TestProfilesUpdateRole(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))

	seeded := seedProfile(t, repo, "pat@example.com", authstate.RoleViewer)

	require.NoError(t, repo.UpdateRole(context.Background(), seeded.ID.String(), authstate.RoleAdmin))

	found, err := repo.GetByUserID(context.Background(), seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, authstate.RoleAdmin, found.Role)
}

func TestProfilesUpdateRoleUnknownRole(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))
	seeded := seedProfile(t, repo, "pat@example.com", authstate.RoleViewer)

	err := repo.UpdateRole(context.Background(), seeded.ID.String(), "superuser")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "INVALID_ROLE", richErr.TextCode)
}

func TestProfilesUpdateRoleMissingProfile(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))

	err := repo.UpdateRole(context.Background(), uuid.New().String(), authstate.RoleEditor)
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestProfilesTouch(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))
	seeded := seedProfile(t, repo, "pat@example.com", authstate.RoleViewer)

	seenAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Touch(context.Background(), seeded.ID.String(), seenAt))

	found, err := repo.GetByUserID(context.Background(), seeded.ID.String())
	require.NoError(t, err)
	require.NotNil(t, found.LastSeenAt)
	assert.Equal(t, seenAt.Unix(), found.LastSeenAt.Unix())
}

func TestProfilesSoftDelete(t *testing.T) {
	repo := authstate.NewProfilesRepository(setupTestDB(t))
	seeded := seedProfile(t, repo, "pat@example.com", authstate.RoleViewer)

	require.NoError(t, repo.DeleteByUserID(context.Background(), seeded.ID.String()))

	_, err := repo.GetByUserID(context.Background(), seeded.ID.String())
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err), "soft-deleted profiles are invisible to lookups")
}

func TestRepositoryManager(t *testing.T) {
	db := setupTestDB(t)
	manager := authstate.NewRepositoryManager(db)

	require.NoError(t, manager.Validate())
	require.NotNil(t, manager.Profiles())

	err := manager.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := manager.Profiles().GetByUserIDTx(ctx, tx, uuid.New().String())
		assert.True(t, goerrors.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}
