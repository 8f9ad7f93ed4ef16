package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mis-sentinel/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockLedgerServices(t *testing.T) (*PartnerService, *EarningService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	partnerRepo := repository.NewPartnerRepository(db)
	clientRepo := repository.NewPartnerClientRepository(db)
	earningRepo := repository.NewPartnerEarningRepository(db)
	auditRepo := repository.NewEarningAuditRepository(db)
	earnings := NewEarningService(partnerRepo, clientRepo, earningRepo, auditRepo, nil, DefaultLedgerSetting())
	partners := NewPartnerService(partnerRepo, clientRepo, earningRepo, earnings, DefaultLedgerSetting())
	return partners, earnings, mock
}

func TestStorageFailuresAreClassified(t *testing.T) {
	partners, _, mock := setupMockLedgerServices(t)
	mock.ExpectQuery(`SELECT \* FROM "partners"`).WillReturnError(errors.New("connection reset by peer"))

	_, err := partners.Get(context.Background(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrNotFound)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "partner.get", storageErr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStorageFailureRollsBack(t *testing.T) {
	_, earnings, mock := setupMockLedgerServices(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "partner_earnings"`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := earnings.Approve(context.Background(), 1, 2, EarningTransitionInput{})
	require.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapStorageKeepsLedgerErrors(t *testing.T) {
	assert.Nil(t, wrapStorage("noop", nil))
	assert.Same(t, ErrEarningNotFound, wrapStorage("op", ErrEarningNotFound))

	invalid := &InvalidStateError{Entity: "earning", Current: "paid", Attempted: "approve"}
	assert.Same(t, invalid, wrapStorage("op", invalid).(*InvalidStateError))
	assert.Contains(t, invalid.Error(), "cannot approve earning in status paid")

	wrapped := wrapStorage("op", errors.New("disk full"))
	assert.ErrorIs(t, wrapped, ErrStorage)
	assert.NotErrorIs(t, wrapped, ErrValidation)
}

// 预检查通过后被并发请求抢先写入，唯一索引冲突应归类为 ErrConflict
func TestCreatePartnerUniqueViolationIsConflict(t *testing.T) {
	partners, _, mock := setupMockLedgerServices(t)
	mock.ExpectQuery(`SELECT \* FROM "partners"`).WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))
	mock.ExpectQuery(`INSERT INTO "partners"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_partners_email" (SQLSTATE 23505)`))
	mock.ExpectQuery(`SELECT \* FROM "partners"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(11, "race@example.com"))

	_, err := partners.Create(context.Background(), CreatePartnerInput{Name: "Racer", Email: "race@example.com"})
	require.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePartnerInsertFailureWithoutDuplicateIsStorage(t *testing.T) {
	partners, _, mock := setupMockLedgerServices(t)
	mock.ExpectQuery(`SELECT \* FROM "partners"`).WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))
	mock.ExpectQuery(`INSERT INTO "partners"`).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectQuery(`SELECT \* FROM "partners"`).WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	_, err := partners.Create(context.Background(), CreatePartnerInput{Name: "Flaky", Email: "flaky@example.com"})
	require.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
