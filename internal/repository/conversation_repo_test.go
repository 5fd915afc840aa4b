package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestCreateConversation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectExec(`INSERT INTO "conversations"`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv, err := repo.CreateConversation(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, conv.ID)
	assert.NotNil(t, conv.Messages)
	assert.Empty(t, conv.Messages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetConversation_WithOrderedMessages(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	convID := uuid.New()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(convID.String(), created))
	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE "messages"."conversation_id" = \$1 ORDER BY created_at ASC`).
		WithArgs(convID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "question", "answer", "feedback", "created_at"}).
			AddRow(first.String(), convID.String(), "Who is Frodo?", "A Hobbit.", nil, created.Add(time.Minute)).
			AddRow(second.String(), convID.String(), "Who is Sam?", "His gardener.", "GOOD", created.Add(2*time.Minute)))

	conv, err := repo.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, convID, conv.ID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, first, conv.Messages[0].ID)
	assert.Nil(t, conv.Messages[0].Feedback)
	require.NotNil(t, conv.Messages[1].Feedback)
	assert.Equal(t, "GOOD", *conv.Messages[1].Feedback)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetConversation_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "conversations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	_, err := repo.GetConversation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)
	convID := uuid.New()

	mock.ExpectExec(`INSERT INTO "messages"`).
		WithArgs(sqlmock.AnyArg(), convID, "Who is Frodo?", "A Hobbit.", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	msg, err := repo.CreateMessage(context.Background(), convID, "Who is Frodo?", "A Hobbit.")
	require.NoError(t, err)
	assert.Equal(t, convID, msg.ConversationID)
	assert.Equal(t, "A Hobbit.", msg.Answer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessages(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "messages" ORDER BY created_at ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "question", "answer", "feedback", "created_at"}).
			AddRow(uuid.NewString(), uuid.NewString(), "q1", "a1", nil, time.Now()))

	messages, err := repo.ListMessages(context.Background())
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMessageFeedback(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)
	msgID := uuid.New()

	mock.ExpectExec(`UPDATE "messages" SET "feedback"=\$1 WHERE id = \$2`).
		WithArgs("BAD", msgID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "question", "answer", "feedback", "created_at"}).
			AddRow(msgID.String(), uuid.NewString(), "q", "a", "BAD", time.Now()))

	msg, err := repo.UpdateMessageFeedback(context.Background(), msgID, "BAD")
	require.NoError(t, err)
	require.NotNil(t, msg.Feedback)
	assert.Equal(t, "BAD", *msg.Feedback)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMessageFeedback_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectExec(`UPDATE "messages"`).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.UpdateMessageFeedback(context.Background(), uuid.New(), "GOOD")
	assert.ErrorIs(t, err, ErrNotFound)
}
