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

func TestNewMySQLReviewRepository(t *testing.T) {
	db := &sql.DB{}
	repo := NewMySQLReviewRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

// Integration Tests

func TestReviewRepository_OnePerOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLReviewRepository(db)
	client := testutil.InsertUser(t, db, "c@example.com", domain.RoleClient, false)
	freelancer := testutil.InsertUser(t, db, "f@example.com", domain.RoleFreelancer, false)
	service := testutil.InsertService(t, db, freelancer, "25.00")
	orderID := testutil.InsertOrder(t, db, client, freelancer, service, domain.OrderStatusDelivered)

	exists, err := repo.ExistsForOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.False(t, exists)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	review := domain.Review{OrderID: orderID, ReviewerID: client, Rating: 4, Comment: "Great work"}
	id, err := repo.Insert(context.Background(), tx, review)
	require.NoError(t, err)
	assert.NotZero(t, id)

	exists, err = repo.ExistsForOrderTx(context.Background(), tx, orderID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.Insert(context.Background(), tx, review)
	_, ok := errors.IsInvalidOperationError(err)
	assert.True(t, ok)

	require.NoError(t, tx.Commit())

	reviews, err := repo.ListByFreelancer(context.Background(), freelancer)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].Rating)
	assert.Equal(t, "Great work", reviews[0].Comment)
	assert.Equal(t, client, reviews[0].ReviewerID)
}
