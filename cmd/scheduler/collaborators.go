package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/postwave/postwave/pkg/jobqueue"
	"github.com/postwave/postwave/pkg/postscheduler"
)

// templateCopyGenerator produces deterministic template-based copy. It
// stands in for the AI copywriting service when no provider is
// configured, so the worker remains fully operational.
type templateCopyGenerator struct{}

func (g *templateCopyGenerator) GenerateCopy(_ context.Context, req jobqueue.CopyRequest) (*jobqueue.CopyResult, error) {
	tone := req.Tone
	if tone == "" {
		tone = "neutral"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Check out product %s on %s!", req.ProductID, req.Platform)
	if req.IncludeEmojis {
		b.WriteString(" \U0001F525")
	}
	if req.IncludeTags {
		fmt.Fprintf(&b, " #%s #trending", req.Platform)
	}

	return &jobqueue.CopyResult{
		Copy:     b.String(),
		Metadata: map[string]string{"generator": "template", "tone": tone},
	}, nil
}

// redisCopyStore persists generated copy under copy:{id}.
type redisCopyStore struct {
	client goredis.UniversalClient
}

func (s *redisCopyStore) SaveCopy(ctx context.Context, record jobqueue.CopyRecord) error {
	return s.client.HSet(ctx, "copy:"+record.ID, map[string]any{
		"user_id":    record.UserID,
		"product_id": record.ProductID,
		"platform":   record.Platform,
		"tone":       record.Tone,
		"copy_text":  record.CopyText,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}).Err()
}

// passthroughImagePipeline accepts every source URL as-is. It stands in
// for the CDN download-and-optimize pipeline.
type passthroughImagePipeline struct{}

func (p *passthroughImagePipeline) ProcessImages(_ context.Context, _ string, urls []string) ([]jobqueue.ProcessedImage, error) {
	results := make([]jobqueue.ProcessedImage, 0, len(urls))
	for _, url := range urls {
		results = append(results, jobqueue.ProcessedImage{
			SourceURL: url,
			URL:       url,
			OK:        url != "",
		})
	}
	return results, nil
}

// redisProductStore writes the chosen main image onto the product hash.
type redisProductStore struct {
	client goredis.UniversalClient
}

func (s *redisProductStore) SetMainImage(ctx context.Context, productID, imageURL string) error {
	return s.client.HSet(ctx, "product:"+productID, "main_image", imageURL).Err()
}

// logEmailSender records outbound email instead of delivering it. Used
// until an SMTP or API provider is configured.
type logEmailSender struct {
	logger *slog.Logger
}

func (s *logEmailSender) SendEmail(_ context.Context, recipient, subject, _ string) error {
	s.logger.Info("email notification sent",
		slog.String("recipient", recipient),
		slog.String("subject", subject))
	return nil
}

// logPushSender records push notifications instead of delivering them.
type logPushSender struct {
	logger *slog.Logger
}

func (s *logPushSender) SendPush(_ context.Context, userID, title, _ string) error {
	s.logger.Info("push notification sent",
		slog.String("user_id", userID),
		slog.String("title", title))
	return nil
}

// redisStatsAggregator maintains the analytics counters in Redis.
type redisStatsAggregator struct {
	client goredis.UniversalClient
}

func (a *redisStatsAggregator) AggregateDailyStats(ctx context.Context) error {
	day := time.Now().UTC().Format("2006-01-02")

	pipe := a.client.TxPipeline()
	pipe.HIncrBy(ctx, "stats:daily:"+day, "aggregation_runs", 1)
	pipe.HSet(ctx, "stats:daily:"+day, "last_run", time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, "stats:daily:"+day, 90*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("aggregate daily stats: %w", err)
	}
	return nil
}

func (a *redisStatsAggregator) RecalculateTrending(ctx context.Context) error {
	if err := a.client.Set(ctx, "products:trending:last_recalc",
		time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("recalculate trending: %w", err)
	}
	return nil
}

// dryRunPublisher acknowledges publishes without calling a platform API.
// It keeps the full promotion/retry/DLQ machinery exercisable before the
// real platform clients are wired with credentials.
type dryRunPublisher struct {
	platform postscheduler.Platform
	logger   *slog.Logger
}

func (p *dryRunPublisher) Publish(_ context.Context, post *postscheduler.Post) (*postscheduler.PublishResult, error) {
	now := time.Now().UTC()
	p.logger.Info("post published (dry run)",
		slog.String("post_id", post.ID.String()),
		slog.String("account", post.AccountName))

	return &postscheduler.PublishResult{
		URL:         fmt.Sprintf("https://%s.example.com/p/%s", p.platform, post.ID),
		PlatformID:  fmt.Sprintf("dry-%s", post.ID),
		PublishedAt: now,
	}, nil
}
