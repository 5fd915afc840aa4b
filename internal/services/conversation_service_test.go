package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/aihub/lotr-chat/internal/errors"
	"github.com/aihub/lotr-chat/internal/kafka"
	"github.com/aihub/lotr-chat/internal/knowledge"
	"github.com/aihub/lotr-chat/internal/models"
	"github.com/aihub/lotr-chat/internal/repository"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockConversationRepository 模拟对话仓库
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) GetDB() *gorm.DB { return nil }

func (m *MockConversationRepository) CreateConversation(ctx context.Context) (*models.Conversation, error) {
	args := m.Called(ctx)
	conv, _ := args.Get(0).(*models.Conversation)
	return conv, args.Error(1)
}

func (m *MockConversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	conv, _ := args.Get(0).(*models.Conversation)
	return conv, args.Error(1)
}

func (m *MockConversationRepository) CreateMessage(ctx context.Context, conversationID uuid.UUID, question, answer string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, question, answer)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockConversationRepository) ListMessages(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

func (m *MockConversationRepository) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockConversationRepository) UpdateMessageFeedback(ctx context.Context, id uuid.UUID, feedback string) (*models.Message, error) {
	args := m.Called(ctx, id, feedback)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event kafka.MessageEvent) error {
	return m.Called(ctx, event).Error(0)
}

type serviceFixture struct {
	repo      *MockConversationRepository
	answerer  *MockAnswerer
	publisher *MockPublisher
	service   *ConversationService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		repo:      new(MockConversationRepository),
		answerer:  new(MockAnswerer),
		publisher: new(MockPublisher),
	}
	f.service = NewConversationService(f.repo, f.answerer, nil, f.publisher, zap.NewNop())
	return f
}

func TestLoadOrCreateConversation_Create(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	conv := &models.Conversation{ID: uuid.New(), Messages: []models.Message{}}
	f.repo.On("CreateConversation", ctx).Return(conv, nil)

	got, message, err := f.service.LoadOrCreateConversation(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, conv, got)
	assert.Equal(t, "Ask any question about characters of Lord of the Rings!", message)
}

func TestLoadOrCreateConversation_Load(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	id := uuid.New()
	f.repo.On("GetConversation", ctx, id).Return(&models.Conversation{ID: id}, nil)

	got, message, err := f.service.LoadOrCreateConversation(ctx, &id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Successfully loaded conversation with id: "+id.String(), message)
}

func TestLoadOrCreateConversation_Unknown(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	id := uuid.New()
	f.repo.On("GetConversation", ctx, id).Return(nil, repository.ErrNotFound)

	_, _, err := f.service.LoadOrCreateConversation(ctx, &id)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPCode)
}

func TestAskQuestion_PersistsAndPublishes(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	convID := uuid.New()
	msg := &models.Message{ID: uuid.New(), ConversationID: convID, Question: "Who is Frodo?", Answer: "A Hobbit.", CreatedAt: time.Now()}

	f.repo.On("GetConversation", ctx, convID).Return(&models.Conversation{ID: convID}, nil)
	f.answerer.On("Answer", ctx, "Who is Frodo?").Return("A Hobbit.", nil)
	f.repo.On("CreateMessage", ctx, convID, "Who is Frodo?", "A Hobbit.").Return(msg, nil)
	f.publisher.On("Publish", ctx, mock.MatchedBy(func(e kafka.MessageEvent) bool {
		return e.Type == kafka.EventMessageCreated && e.MessageID == msg.ID.String() && e.ConversationID == convID.String()
	})).Return(nil)

	got, err := f.service.AskQuestion(ctx, convID, "Who is Frodo?")
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	f.repo.AssertExpectations(t)
	f.answerer.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestAskQuestion_UnknownConversationSkipsPipeline(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	convID := uuid.New()
	f.repo.On("GetConversation", ctx, convID).Return(nil, repository.ErrNotFound)

	_, err := f.service.AskQuestion(ctx, convID, "Who is Frodo?")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.GetAppError(err).HTTPCode)
	f.answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestAskQuestion_PipelineFailureNotPersisted(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	convID := uuid.New()
	pipelineErr := &knowledge.StageError{Stage: knowledge.StageEmbedded, Err: knowledge.ErrEmbeddingService}

	f.repo.On("GetConversation", ctx, convID).Return(&models.Conversation{ID: convID}, nil)
	f.answerer.On("Answer", ctx, "Who is Frodo?").Return("", pipelineErr)

	_, err := f.service.AskQuestion(ctx, convID, "Who is Frodo?")
	assert.ErrorIs(t, err, knowledge.ErrEmbeddingService)
	f.repo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAskQuestion_PublishFailureIgnored(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	convID := uuid.New()
	msg := &models.Message{ID: uuid.New(), ConversationID: convID}

	f.repo.On("GetConversation", ctx, convID).Return(&models.Conversation{ID: convID}, nil)
	f.answerer.On("Answer", ctx, "q").Return("a", nil)
	f.repo.On("CreateMessage", ctx, convID, "q", "a").Return(msg, nil)
	f.publisher.On("Publish", ctx, mock.Anything).Return(errors.New("broker down"))

	got, err := f.service.AskQuestion(ctx, convID, "q")
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestUpdateFeedback(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	msgID := uuid.New()
	good := models.FeedbackGood
	msg := &models.Message{ID: msgID, ConversationID: uuid.New(), Feedback: &good}

	f.repo.On("UpdateMessageFeedback", ctx, msgID, "GOOD").Return(msg, nil)
	f.publisher.On("Publish", ctx, mock.MatchedBy(func(e kafka.MessageEvent) bool {
		return e.Type == kafka.EventMessageFeedback && e.Feedback == "GOOD"
	})).Return(nil)

	got, err := f.service.UpdateFeedback(ctx, msgID, "GOOD")
	require.NoError(t, err)
	assert.Equal(t, msg, got)
	f.publisher.AssertExpectations(t)
}

func TestUpdateFeedback_Invalid(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.UpdateFeedback(context.Background(), uuid.New(), "MEH")
	assert.Equal(t, http.StatusBadRequest, apperrors.GetAppError(err).HTTPCode)
	f.repo.AssertNotCalled(t, "UpdateMessageFeedback", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateFeedback_UnknownMessage(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	msgID := uuid.New()
	f.repo.On("UpdateMessageFeedback", ctx, msgID, "BAD").Return(nil, repository.ErrNotFound)

	_, err := f.service.UpdateFeedback(ctx, msgID, "BAD")
	assert.Equal(t, http.StatusNotFound, apperrors.GetAppError(err).HTTPCode)
}

func TestRedisConversationCache_UnavailableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cache := NewRedisConversationCache(client, time.Minute, zap.NewNop())
	ctx := context.Background()
	id := uuid.New()

	cache.Set(ctx, &models.Conversation{ID: id})
	_, ok := cache.Get(ctx, id)
	assert.False(t, ok)
	cache.Invalidate(ctx, id)
}

func TestConversationService_UsesCache(t *testing.T) {
	repo := new(MockConversationRepository)
	cache := &memoryCache{items: map[uuid.UUID]*models.Conversation{}}
	svc := NewConversationService(repo, new(MockAnswerer), cache, nil, zap.NewNop())
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetConversation", ctx, id).Return(&models.Conversation{ID: id}, nil).Once()

	_, _, err := svc.LoadOrCreateConversation(ctx, &id)
	require.NoError(t, err)
	_, _, err = svc.LoadOrCreateConversation(ctx, &id)
	require.NoError(t, err)

	repo.AssertNumberOfCalls(t, "GetConversation", 1)
}

type memoryCache struct {
	items map[uuid.UUID]*models.Conversation
}

func (c *memoryCache) Get(_ context.Context, id uuid.UUID) (*models.Conversation, bool) {
	conv, ok := c.items[id]
	return conv, ok
}

func (c *memoryCache) Set(_ context.Context, conv *models.Conversation) { c.items[conv.ID] = conv }

func (c *memoryCache) Invalidate(_ context.Context, id uuid.UUID) { delete(c.items, id) }

func TestMetricsService(t *testing.T) {
	reg := prometheus.NewRegistry()
	knowledge.NewMetrics(reg).SearchDegraded.Inc()

	rec := httptest.NewRecorder()
	NewMetricsService(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lotr_rag_search_degraded_total 1")
}
