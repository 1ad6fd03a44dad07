package jobqueue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/postwave/postwave/pkg/jobqueue"
)

type mockCopyGenerator struct{ mock.Mock }

func (m *mockCopyGenerator) GenerateCopy(ctx context.Context, req jobqueue.CopyRequest) (*jobqueue.CopyResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*jobqueue.CopyResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCopyStore struct{ mock.Mock }

func (m *mockCopyStore) SaveCopy(ctx context.Context, record jobqueue.CopyRecord) error {
	return m.Called(ctx, record).Error(0)
}

type mockImagePipeline struct{ mock.Mock }

func (m *mockImagePipeline) ProcessImages(ctx context.Context, productID string, urls []string) ([]jobqueue.ProcessedImage, error) {
	args := m.Called(ctx, productID, urls)
	if res := args.Get(0); res != nil {
		return res.([]jobqueue.ProcessedImage), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockImageStore struct{ mock.Mock }

func (m *mockImageStore) SetMainImage(ctx context.Context, productID, imageURL string) error {
	return m.Called(ctx, productID, imageURL).Error(0)
}

type mockEmailSender struct{ mock.Mock }

func (m *mockEmailSender) SendEmail(ctx context.Context, recipient, subject, body string) error {
	return m.Called(ctx, recipient, subject, body).Error(0)
}

type mockPushSender struct{ mock.Mock }

func (m *mockPushSender) SendPush(ctx context.Context, userID, title, message string) error {
	return m.Called(ctx, userID, title, message).Error(0)
}

type mockAggregator struct{ mock.Mock }

func (m *mockAggregator) AggregateDailyStats(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAggregator) RecalculateTrending(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestCopyGenerationHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("generates and persists copy", func(t *testing.T) {
		t.Parallel()
		generator := &mockCopyGenerator{}
		store := &mockCopyStore{}
		handler := jobqueue.NewCopyGenerationHandler(generator, store)

		generator.On("GenerateCopy", mock.Anything, jobqueue.CopyRequest{
			ProductID: "prod-1",
			Platform:  "instagram",
			Tone:      "playful",
		}).Return(&jobqueue.CopyResult{Copy: "Buy the thing!"}, nil)
		store.On("SaveCopy", mock.Anything, mock.MatchedBy(func(r jobqueue.CopyRecord) bool {
			return r.ProductID == "prod-1" && r.CopyText == "Buy the thing!" && r.ID != ""
		})).Return(nil)

		result, err := handler.Handle(ctx, payload(t, map[string]string{
			"product_id": "prod-1",
			"platform":   "instagram",
			"tone":       "playful",
		}))
		require.NoError(t, err)
		assert.Equal(t, "Buy the thing!", result.(map[string]string)["copy"])

		generator.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("requires product id", func(t *testing.T) {
		t.Parallel()
		handler := jobqueue.NewCopyGenerationHandler(&mockCopyGenerator{}, &mockCopyStore{})

		_, err := handler.Handle(ctx, payload(t, map[string]string{"platform": "tiktok"}))
		assert.ErrorContains(t, err, "product_id")
	})

	t.Run("generator failure propagates", func(t *testing.T) {
		t.Parallel()
		generator := &mockCopyGenerator{}
		generator.On("GenerateCopy", mock.Anything, mock.Anything).
			Return(nil, errors.New("model overloaded"))
		handler := jobqueue.NewCopyGenerationHandler(generator, &mockCopyStore{})

		_, err := handler.Handle(ctx, payload(t, map[string]string{"product_id": "prod-1"}))
		assert.ErrorContains(t, err, "model overloaded")
	})
}

func TestImageProcessingHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first successful image becomes the main image", func(t *testing.T) {
		t.Parallel()
		pipeline := &mockImagePipeline{}
		store := &mockImageStore{}
		handler := jobqueue.NewImageProcessingHandler(pipeline, store)

		urls := []string{"https://a", "https://b", "https://c"}
		pipeline.On("ProcessImages", mock.Anything, "prod-1", urls).
			Return([]jobqueue.ProcessedImage{
				{SourceURL: "https://a", OK: false},
				{SourceURL: "https://b", URL: "https://cdn/b", OK: true},
				{SourceURL: "https://c", URL: "https://cdn/c", OK: true},
			}, nil)
		store.On("SetMainImage", mock.Anything, "prod-1", "https://cdn/b").Return(nil).Once()

		result, err := handler.Handle(ctx, payload(t, map[string]any{
			"product_id": "prod-1",
			"image_urls": urls,
		}))
		require.NoError(t, err)
		counts := result.(map[string]int)
		assert.Equal(t, 2, counts["processed"])
		assert.Equal(t, 3, counts["total"])

		store.AssertExpectations(t)
	})

	t.Run("no successful image leaves the product untouched", func(t *testing.T) {
		t.Parallel()
		pipeline := &mockImagePipeline{}
		store := &mockImageStore{}
		handler := jobqueue.NewImageProcessingHandler(pipeline, store)

		pipeline.On("ProcessImages", mock.Anything, "prod-1", mock.Anything).
			Return([]jobqueue.ProcessedImage{{SourceURL: "https://a", OK: false}}, nil)

		result, err := handler.Handle(ctx, payload(t, map[string]any{
			"product_id": "prod-1",
			"image_urls": []string{"https://a"},
		}))
		require.NoError(t, err)
		assert.Zero(t, result.(map[string]int)["processed"])
		store.AssertNotCalled(t, "SetMainImage", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNotificationHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("email channel", func(t *testing.T) {
		t.Parallel()
		email := &mockEmailSender{}
		email.On("SendEmail", mock.Anything, "user@example.com", "Welcome", "Hello!").Return(nil)
		handler := jobqueue.NewNotificationHandler(email, &mockPushSender{})

		_, err := handler.Handle(ctx, payload(t, map[string]string{
			"channel":   "email",
			"recipient": "user@example.com",
			"subject":   "Welcome",
			"body":      "Hello!",
		}))
		require.NoError(t, err)
		email.AssertExpectations(t)
	})

	t.Run("push channel", func(t *testing.T) {
		t.Parallel()
		push := &mockPushSender{}
		push.On("SendPush", mock.Anything, "user-1", "Post published", "Your post is live").Return(nil)
		handler := jobqueue.NewNotificationHandler(&mockEmailSender{}, push)

		_, err := handler.Handle(ctx, payload(t, map[string]string{
			"channel": "push",
			"user_id": "user-1",
			"title":   "Post published",
			"message": "Your post is live",
		}))
		require.NoError(t, err)
		push.AssertExpectations(t)
	})

	t.Run("unknown channel", func(t *testing.T) {
		t.Parallel()
		handler := jobqueue.NewNotificationHandler(&mockEmailSender{}, &mockPushSender{})

		_, err := handler.Handle(ctx, payload(t, map[string]string{"channel": "fax"}))
		assert.ErrorContains(t, err, "unknown notification channel")
	})
}

func TestAnalyticsHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("daily stats report", func(t *testing.T) {
		t.Parallel()
		aggregator := &mockAggregator{}
		aggregator.On("AggregateDailyStats", mock.Anything).Return(nil)
		handler := jobqueue.NewAnalyticsHandler(aggregator)

		_, err := handler.Handle(ctx, payload(t, map[string]string{"report": jobqueue.ReportDailyStats}))
		require.NoError(t, err)
		aggregator.AssertExpectations(t)
	})

	t.Run("product trends report", func(t *testing.T) {
		t.Parallel()
		aggregator := &mockAggregator{}
		aggregator.On("RecalculateTrending", mock.Anything).Return(nil)
		handler := jobqueue.NewAnalyticsHandler(aggregator)

		_, err := handler.Handle(ctx, payload(t, map[string]string{"report": jobqueue.ReportProductTrends}))
		require.NoError(t, err)
		aggregator.AssertExpectations(t)
	})

	t.Run("unknown report", func(t *testing.T) {
		t.Parallel()
		handler := jobqueue.NewAnalyticsHandler(&mockAggregator{})

		_, err := handler.Handle(ctx, payload(t, map[string]string{"report": "weekly_digest"}))
		assert.ErrorContains(t, err, "unknown analytics report")
	})
}
