package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/postwave/postwave/pkg/jobqueue"
)

// maintenance bundles the standing housekeeping jobs. Each method is a
// cron.HandlerFunc; failures surface to the cron scheduler, which owns
// retry and backoff.
type maintenance struct {
	client   goredis.UniversalClient
	enqueuer *jobqueue.Enqueuer
	logger   *slog.Logger
}

// RefreshProducts re-stamps the product catalog and queues a daily stats
// refresh so dashboards pick up catalog changes.
func (m *maintenance) RefreshProducts(ctx context.Context) error {
	count, err := m.countKeys(ctx, "product:*")
	if err != nil {
		return fmt.Errorf("scan products: %w", err)
	}

	if err := m.client.Set(ctx, "products:last_refresh",
		time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("stamp product refresh: %w", err)
	}

	if _, err := m.enqueuer.Enqueue(ctx, jobqueue.KindAnalytics,
		map[string]string{"report": jobqueue.ReportDailyStats}); err != nil {
		return fmt.Errorf("queue stats refresh: %w", err)
	}

	m.logger.Info("product catalog refreshed", slog.Int("products", count))
	return nil
}

// RefreshTrending queues a trending recalculation on the analytics worker.
func (m *maintenance) RefreshTrending(ctx context.Context) error {
	if _, err := m.enqueuer.Enqueue(ctx, jobqueue.KindAnalytics,
		map[string]string{"report": jobqueue.ReportProductTrends}); err != nil {
		return fmt.Errorf("queue trending refresh: %w", err)
	}
	return nil
}

// oldProductAge is how long an untouched product stays in the index.
const oldProductAge = 30 * 24 * time.Hour

// CleanupOldProducts drops products from the recency index that have not
// been updated within oldProductAge.
func (m *maintenance) CleanupOldProducts(ctx context.Context) error {
	cutoff := time.Now().Add(-oldProductAge).UnixMilli()

	removed, err := m.client.ZRemRangeByScore(ctx, "products:by_updated",
		"-inf", strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return fmt.Errorf("trim product recency index: %w", err)
	}

	m.logger.Info("old products cleaned up", slog.Int64("removed", removed))
	return nil
}

// CleanupExpiredCache deletes cache entries that were written without an
// expiry and therefore never age out on their own.
func (m *maintenance) CleanupExpiredCache(ctx context.Context) error {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := m.client.Scan(ctx, cursor, "cache:*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}

		for _, key := range keys {
			ttl, err := m.client.TTL(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("ttl of %q: %w", key, err)
			}
			if ttl == -1*time.Second {
				if err := m.client.Del(ctx, key).Err(); err != nil {
					return fmt.Errorf("delete %q: %w", key, err)
				}
				deleted++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	m.logger.Info("expired cache cleaned up", slog.Int("deleted", deleted))
	return nil
}

// licenseWarningWindow is how far ahead expiry notifications go out.
const licenseWarningWindow = 7 * 24 * time.Hour

// CheckLicenseExpiry queues an email notification for every license
// expiring within the warning window.
func (m *maintenance) CheckLicenseExpiry(ctx context.Context) error {
	deadline := time.Now().Add(licenseWarningWindow)

	var (
		cursor   uint64
		notified int
	)
	for {
		keys, next, err := m.client.Scan(ctx, cursor, "license:*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan licenses: %w", err)
		}

		for _, key := range keys {
			fields, err := m.client.HGetAll(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("load license %q: %w", key, err)
			}

			expiresAt, err := time.Parse(time.RFC3339, fields["expires_at"])
			if err != nil || expiresAt.After(deadline) || expiresAt.Before(time.Now()) {
				continue
			}

			if _, err := m.enqueuer.Enqueue(ctx, jobqueue.KindNotification, map[string]string{
				"channel":   "email",
				"recipient": fields["email"],
				"subject":   "Your license expires soon",
				"body": fmt.Sprintf("Your license expires on %s. Renew to keep publishing.",
					expiresAt.Format("2006-01-02")),
			}); err != nil {
				return fmt.Errorf("queue expiry notification: %w", err)
			}
			notified++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	m.logger.Info("license expiry check finished", slog.Int("notified", notified))
	return nil
}

func (m *maintenance) countKeys(ctx context.Context, pattern string) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := m.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
