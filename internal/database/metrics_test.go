package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type messageRow struct {
	ID       string
	Question string
}

func (messageRow) TableName() string { return "messages" }

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestQueryMetrics_CountsQueries(t *testing.T) {
	db, mock := newMockGorm(t)
	reg := prometheus.NewRegistry()
	sqlDB, err := db.DB()
	require.NoError(t, err)

	m := NewQueryMetrics(reg, sqlDB)
	require.NoError(t, m.Register(db))

	mock.ExpectQuery(`SELECT \* FROM "messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "question"}).AddRow("m-1", "Who is Frodo?"))

	var rows []messageRow
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.queries.WithLabelValues("query", "messages")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.errors.WithLabelValues("query", "messages")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryMetrics_CountsErrors(t *testing.T) {
	db, mock := newMockGorm(t)
	m := NewQueryMetrics(prometheus.NewRegistry(), nil)
	require.NoError(t, m.Register(db))

	mock.ExpectQuery(`SELECT \* FROM "messages"`).WillReturnError(errors.New("connection reset"))

	var rows []messageRow
	require.Error(t, db.Find(&rows).Error)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("query", "messages")))
}

func TestQueryMetrics_NotFoundIsNotAnError(t *testing.T) {
	db, mock := newMockGorm(t)
	m := NewQueryMetrics(prometheus.NewRegistry(), nil)
	require.NoError(t, m.Register(db))

	mock.ExpectQuery(`SELECT \* FROM "messages"`).WillReturnRows(sqlmock.NewRows([]string{"id", "question"}))

	var row messageRow
	err := db.First(&row).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.queries.WithLabelValues("query", "messages")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.errors.WithLabelValues("query", "messages")))
}
