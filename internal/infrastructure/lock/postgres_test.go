package lock_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/tripflow/payment-coordinator/internal/domain"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/lock"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/persistence/postgres"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/persistence/testhelpers"
)

type PostgresLockTestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDatabase
	repo   *postgres.TransactionRepository
	lock   *lock.PostgresLock
}

func TestPostgresLockSuite(t *testing.T) {
	suite.Run(t, new(PostgresLockTestSuite))
}

func (suite *PostgresLockTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.repo = postgres.NewTransactionRepository(suite.testDB.DB)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	suite.lock = lock.NewPostgresLock(suite.testDB.DB, logger)
}

func (suite *PostgresLockTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *PostgresLockTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *PostgresLockTestSuite) seedTransaction() *domain.Transaction {
	money, err := domain.NewMoney(5000, "EGP")
	suite.Require().NoError(err)
	txn, err := domain.NewTransaction(
		uuid.New().String(), "trip-1", "payer-1", money, "mockpay", "key-"+uuid.New().String())
	suite.Require().NoError(err)
	suite.Require().NoError(suite.repo.Create(context.Background(), txn))
	return txn
}

func (suite *PostgresLockTestSuite) Test_AcquireAndRelease() {
	ctx := context.Background()
	txn := suite.seedTransaction()

	token, ok, err := suite.lock.Acquire(ctx, txn.ID, 10*time.Second)
	suite.Require().NoError(err)
	suite.True(ok)
	suite.NotEmpty(token)

	// second acquire loses
	_, ok, err = suite.lock.Acquire(ctx, txn.ID, 10*time.Second)
	suite.Require().NoError(err)
	suite.False(ok)

	suite.Require().NoError(suite.lock.Release(ctx, txn.ID, token))

	// free again
	_, ok, err = suite.lock.Acquire(ctx, txn.ID, 10*time.Second)
	suite.Require().NoError(err)
	suite.True(ok)
}

func (suite *PostgresLockTestSuite) Test_StaleLeaseIsStealable() {
	ctx := context.Background()
	txn := suite.seedTransaction()

	staleToken, ok, err := suite.lock.Acquire(ctx, txn.ID, 10*time.Second)
	suite.Require().NoError(err)
	suite.Require().True(ok)

	// Backdate the lease past its timeout, as if the holder crashed.
	_, err = suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE payment_transactions SET locked_at = NOW() - INTERVAL '1 minute' WHERE id = $1", txn.ID)
	suite.Require().NoError(err)

	newToken, ok, err := suite.lock.Acquire(ctx, txn.ID, 10*time.Second)
	suite.Require().NoError(err)
	suite.True(ok)
	suite.NotEqual(staleToken, newToken)

	// The stale holder's release must not clear the new lease.
	suite.Require().NoError(suite.lock.Release(ctx, txn.ID, staleToken))

	_, ok, err = suite.lock.Acquire(ctx, txn.ID, 10*time.Second)
	suite.Require().NoError(err)
	suite.False(ok)
}

func (suite *PostgresLockTestSuite) Test_AcquireMissingRecord() {
	_, ok, err := suite.lock.Acquire(context.Background(), uuid.New().String(), 10*time.Second)
	suite.Require().NoError(err)
	suite.False(ok)
}
