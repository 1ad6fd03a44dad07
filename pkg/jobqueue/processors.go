package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Collaborator interfaces for the concrete handlers. The real
// integrations (AI text service, image pipeline, mail and push senders,
// analytics queries) live outside this package; handlers only orchestrate
// them and persist their side effects.
type (
	// CopyGenerator produces marketing copy for a product.
	CopyGenerator interface {
		GenerateCopy(ctx context.Context, req CopyRequest) (*CopyResult, error)
	}

	// CopyStore persists generated copy records.
	CopyStore interface {
		SaveCopy(ctx context.Context, record CopyRecord) error
	}

	// ImagePipeline downloads and optimizes product images.
	ImagePipeline interface {
		ProcessImages(ctx context.Context, productID string, urls []string) ([]ProcessedImage, error)
	}

	// ProductImageStore updates a product with its processed main image.
	ProductImageStore interface {
		SetMainImage(ctx context.Context, productID, imageURL string) error
	}

	// EmailSender delivers email notifications.
	EmailSender interface {
		SendEmail(ctx context.Context, recipient, subject, body string) error
	}

	// PushSender delivers push notifications.
	PushSender interface {
		SendPush(ctx context.Context, userID, title, message string) error
	}

	// StatsAggregator runs the analytics aggregation queries.
	StatsAggregator interface {
		AggregateDailyStats(ctx context.Context) error
		RecalculateTrending(ctx context.Context) error
	}
)

// CopyRequest describes a single copy-generation call.
type CopyRequest struct {
	ProductID     string `json:"product_id"`
	Platform      string `json:"platform"`
	Tone          string `json:"tone"`
	IncludeEmojis bool   `json:"include_emojis"`
	IncludeTags   bool   `json:"include_hashtags"`
}

// CopyResult is the generator's output.
type CopyResult struct {
	Copy     string            `json:"copy"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CopyRecord is the persisted form of a generated copy.
type CopyRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Platform  string `json:"platform"`
	Tone      string `json:"tone"`
	CopyText  string `json:"copy_text"`
}

// ProcessedImage is one image pipeline output.
type ProcessedImage struct {
	SourceURL string `json:"source_url"`
	URL       string `json:"url"`
	OK        bool   `json:"ok"`
}

type copyGenerationPayload struct {
	UserID        string `json:"user_id"`
	ProductID     string `json:"product_id"`
	Platform      string `json:"platform"`
	Tone          string `json:"tone"`
	IncludeEmojis bool   `json:"include_emojis"`
	IncludeTags   bool   `json:"include_hashtags"`
}

type copyGenerationHandler struct {
	generator CopyGenerator
	store     CopyStore
}

// NewCopyGenerationHandler builds the handler for copy-generation jobs.
func NewCopyGenerationHandler(generator CopyGenerator, store CopyStore) Handler {
	return &copyGenerationHandler{generator: generator, store: store}
}

func (h *copyGenerationHandler) Kind() Kind { return KindCopyGeneration }

func (h *copyGenerationHandler) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	var req copyGenerationPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode copy generation payload: %w", err)
	}
	if req.ProductID == "" {
		return nil, fmt.Errorf("copy generation requires product_id")
	}

	res, err := h.generator.GenerateCopy(ctx, CopyRequest{
		ProductID:     req.ProductID,
		Platform:      req.Platform,
		Tone:          req.Tone,
		IncludeEmojis: req.IncludeEmojis,
		IncludeTags:   req.IncludeTags,
	})
	if err != nil {
		return nil, fmt.Errorf("generate copy for product %s: %w", req.ProductID, err)
	}

	record := CopyRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Platform:  req.Platform,
		Tone:      req.Tone,
		CopyText:  res.Copy,
	}
	if err := h.store.SaveCopy(ctx, record); err != nil {
		return nil, fmt.Errorf("save copy record: %w", err)
	}

	return map[string]string{"copy_id": record.ID, "copy": res.Copy}, nil
}

type imageProcessingPayload struct {
	ProductID string   `json:"product_id"`
	ImageURLs []string `json:"image_urls"`
}

type imageProcessingHandler struct {
	pipeline ImagePipeline
	store    ProductImageStore
}

// NewImageProcessingHandler builds the handler for image jobs.
func NewImageProcessingHandler(pipeline ImagePipeline, store ProductImageStore) Handler {
	return &imageProcessingHandler{pipeline: pipeline, store: store}
}

func (h *imageProcessingHandler) Kind() Kind { return KindImageProcessing }

func (h *imageProcessingHandler) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	var req imageProcessingPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode image processing payload: %w", err)
	}

	results, err := h.pipeline.ProcessImages(ctx, req.ProductID, req.ImageURLs)
	if err != nil {
		return nil, fmt.Errorf("process images for product %s: %w", req.ProductID, err)
	}

	processed := 0
	for _, r := range results {
		if !r.OK {
			continue
		}
		// First successful image becomes the product's main image.
		if processed == 0 {
			if err := h.store.SetMainImage(ctx, req.ProductID, r.URL); err != nil {
				return nil, fmt.Errorf("set main image for product %s: %w", req.ProductID, err)
			}
		}
		processed++
	}

	return map[string]int{"processed": processed, "total": len(req.ImageURLs)}, nil
}

type notificationPayload struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
}

type notificationHandler struct {
	email EmailSender
	push  PushSender
}

// NewNotificationHandler builds the handler for notification jobs.
func NewNotificationHandler(email EmailSender, push PushSender) Handler {
	return &notificationHandler{email: email, push: push}
}

func (h *notificationHandler) Kind() Kind { return KindNotification }

func (h *notificationHandler) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	var req notificationPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode notification payload: %w", err)
	}

	switch req.Channel {
	case "email":
		if err := h.email.SendEmail(ctx, req.Recipient, req.Subject, req.Body); err != nil {
			return nil, fmt.Errorf("send email to %s: %w", req.Recipient, err)
		}
	case "push":
		if err := h.push.SendPush(ctx, req.UserID, req.Title, req.Message); err != nil {
			return nil, fmt.Errorf("send push to user %s: %w", req.UserID, err)
		}
	default:
		return nil, fmt.Errorf("unknown notification channel: %q", req.Channel)
	}

	return map[string]string{"channel": req.Channel}, nil
}

type analyticsPayload struct {
	Report string `json:"report"`
}

// Analytics report names accepted by the analytics handler.
const (
	ReportDailyStats    = "daily_stats"
	ReportProductTrends = "product_trends"
)

type analyticsHandler struct {
	aggregator StatsAggregator
}

// NewAnalyticsHandler builds the handler for analytics jobs.
func NewAnalyticsHandler(aggregator StatsAggregator) Handler {
	return &analyticsHandler{aggregator: aggregator}
}

func (h *analyticsHandler) Kind() Kind { return KindAnalytics }

func (h *analyticsHandler) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	var req analyticsPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode analytics payload: %w", err)
	}

	switch req.Report {
	case ReportDailyStats:
		if err := h.aggregator.AggregateDailyStats(ctx); err != nil {
			return nil, fmt.Errorf("aggregate daily stats: %w", err)
		}
	case ReportProductTrends:
		if err := h.aggregator.RecalculateTrending(ctx); err != nil {
			return nil, fmt.Errorf("recalculate trending: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown analytics report: %q", req.Report)
	}

	return map[string]string{"report": req.Report}, nil
}
