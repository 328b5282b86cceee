package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
	"gigmarket/internal/testutil"
)

// Unit Tests

func TestNewMySQLUserRepository(t *testing.T) {
	db := &sql.DB{}
	repo := NewMySQLUserRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

// Integration Tests

func TestUserRepository_FindByID_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLUserRepository(db)
	id := testutil.InsertUser(t, db, "ana@example.com", domain.RoleFreelancer, false)

	user, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, domain.RoleFreelancer, user.Role)
	assert.False(t, user.IsAdmin)
	assert.True(t, user.IsActive)
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLUserRepository(db)

	user, err := repo.FindByID(context.Background(), 9999)
	assert.Nil(t, user)
	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestUserRepository_FindByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLUserRepository(db)
	id := testutil.InsertUser(t, db, "bo@example.com", domain.RoleClient, false)

	user, err := repo.FindByEmail(context.Background(), "bo@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, err = repo.FindByEmail(context.Background(), "missing@example.com")
	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestUserRepository_ListAdmins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLUserRepository(db)
	admin1 := testutil.InsertUser(t, db, "admin1@example.com", domain.RoleClient, true)
	testutil.InsertUser(t, db, "client@example.com", domain.RoleClient, false)
	admin2 := testutil.InsertUser(t, db, "admin2@example.com", domain.RoleClient, true)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	admins, err := repo.ListAdmins(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, admin1, admins[0].ID)
	assert.Equal(t, admin2, admins[1].ID)
}

func TestUserRepository_UpdateRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLUserRepository(db)
	id := testutil.InsertUser(t, db, "cy@example.com", domain.RoleClient, false)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	locked, err := repo.FindByIDForUpdate(context.Background(), tx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, locked.Role)

	require.NoError(t, repo.UpdateRole(context.Background(), tx, id, domain.RoleFreelancer))
	// Same value again is not an error.
	require.NoError(t, repo.UpdateRole(context.Background(), tx, id, domain.RoleFreelancer))
	require.NoError(t, tx.Commit())

	user, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleFreelancer, user.Role)
}

func TestUserRepository_UpdateRole_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLUserRepository(db)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.UpdateRole(context.Background(), tx, 9999, domain.RoleFreelancer)
	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}
