package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/tasks"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) GetSubscription(ctx context.Context, userID utils.SixID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) IsPremium(ctx context.Context, userID utils.SixID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionService) Subscribe(ctx context.Context, userID utils.SixID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) Cancel(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) ConsumeSwipe(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) ConsumeSuperlike(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) RefundSwipe(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) RefundSuperlike(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) GetLimits(ctx context.Context, userID utils.SixID) (*services.LimitsStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LimitsStatus), args.Error(1)
}

func (m *MockSubscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// --- Tests ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	cfg := &config.Config{SmtpFromAddress: "noreply@pieceswap.example.com"}

	p := tasks.NewTaskProcessor(cfg, mockEmailSender, nil, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:      "test@example.com",
		Subject: "Welcome to PieceSwap",
		Body:    "Happy trading!",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	mockEmailSender.On("Send",
		mock.Anything,
		[]string{"test@example.com"},
		"Welcome to PieceSwap",
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: test@example.com", "Raw message should contain To address")
			assert.Contains(t, msgStr, fmt.Sprintf("From: %s", cfg.SmtpFromAddress), "Raw message should contain From address")
			assert.Contains(t, msgStr, "Subject: Welcome to PieceSwap", "Raw message should contain Subject")
			assert.Contains(t, msgStr, "Happy trading!", "Raw message should contain body")
			return true
		}),
	).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.NoError(t, err)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_InvalidPayload(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(&config.Config{}, mockEmailSender, nil, nil, nil, nil)

	task := asynq.NewTask(tasks.TypeEmailDelivery, []byte("{not json"))
	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Malformed payload should not be retried")
	mockEmailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_NoRecipient(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(&config.Config{}, mockEmailSender, nil, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{Subject: "No one to send to"})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSubscriptionExpireTask(t *testing.T) {
	mockSubs := new(MockSubscriptionService)
	p := tasks.NewTaskProcessor(&config.Config{}, nil, nil, nil, mockSubs, nil)

	mockSubs.On("ExpireLapsed", mock.Anything).Return(int64(3), nil)

	err := p.HandleSubscriptionExpireTask(context.Background(), asynq.NewTask(tasks.TypeSubscriptionExpire, nil))

	assert.NoError(t, err)
	mockSubs.AssertExpectations(t)
}

func TestHandleSubscriptionExpireTask_Error(t *testing.T) {
	mockSubs := new(MockSubscriptionService)
	p := tasks.NewTaskProcessor(&config.Config{}, nil, nil, nil, mockSubs, nil)

	mockSubs.On("ExpireLapsed", mock.Anything).Return(int64(0), assert.AnError)

	err := p.HandleSubscriptionExpireTask(context.Background(), asynq.NewTask(tasks.TypeSubscriptionExpire, nil))

	assert.Error(t, err)
	mockSubs.AssertExpectations(t)
}

func TestHandleImageProcessTask_InvalidTargetID(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, nil, nil, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.ImageTaskPayload{
		S3Key:    "uploads/x/y/z.jpg",
		Target:   tasks.ImageTargetListing,
		TargetID: "not-an-id",
	})
	task := asynq.NewTask(tasks.TypeImageProcess, payloadBytes)

	err := p.HandleImageProcessTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
