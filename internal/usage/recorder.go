// Package usage records per-request statistics in redis and answers the
// reporting queries behind the /stats endpoints. Records are append-only.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abolsttar/school-management/internal/domain"
)

// Daily keys expire after a week. The recent-requests feed is capped by rank
// instead and never expires.
const dailyRetention = 7 * 24 * time.Hour

const recentRequestsKey = "usage:recent_requests"

func totalKey(day string) string         { return "usage:total:" + day }
func endpointsKey(day string) string     { return "usage:endpoints:" + day }
func responseTimesKey(day string) string { return "usage:response_times:" + day }
func statusCodesKey(day string) string   { return "usage:status_codes:" + day }
func ipsKey(day string) string           { return "usage:ips:" + day }

// dayOf formats a timestamp as the daily bucket identifier.
func dayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// RedisRecorder writes one RequestStat into the daily aggregates and the
// capped recent-requests feed, all in a single pipeline.
type RedisRecorder struct {
	client    *redis.Client
	maxRecent int64
}

func NewRedisRecorder(client *redis.Client, maxRecent int) *RedisRecorder {
	return &RedisRecorder{client: client, maxRecent: int64(maxRecent)}
}

func (r *RedisRecorder) Record(ctx context.Context, stat domain.RequestStat) error {
	day := dayOf(stat.Timestamp)
	endpoint := stat.Endpoint()

	member, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("marshal stat: %w", err)
	}

	pipe := r.client.Pipeline()

	pipe.Incr(ctx, totalKey(day))
	pipe.Expire(ctx, totalKey(day), dailyRetention)

	pipe.HIncrBy(ctx, endpointsKey(day), endpoint, 1)
	pipe.Expire(ctx, endpointsKey(day), dailyRetention)

	pipe.ZAdd(ctx, responseTimesKey(day), redis.Z{
		Score:  stat.DurationMS,
		Member: endpoint,
	})
	pipe.Expire(ctx, responseTimesKey(day), dailyRetention)

	pipe.HIncrBy(ctx, statusCodesKey(day), strconv.Itoa(stat.StatusCode), 1)
	pipe.Expire(ctx, statusCodesKey(day), dailyRetention)

	pipe.SAdd(ctx, ipsKey(day), stat.ClientIP)
	pipe.Expire(ctx, ipsKey(day), dailyRetention)

	pipe.ZAdd(ctx, recentRequestsKey, redis.Z{
		Score:  float64(stat.Timestamp.UnixMilli()),
		Member: string(member),
	})
	pipe.ZRemRangeByRank(ctx, recentRequestsKey, 0, -(r.maxRecent + 1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}
