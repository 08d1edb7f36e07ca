package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abolsttar/school-management/internal/domain"
)

// DailySummary is the /stats/today view.
type DailySummary struct {
	Date           string           `json:"date"`
	TotalRequests  int64            `json:"total_requests"`
	UniqueVisitors int64            `json:"unique_visitors"`
	StatusCodes    map[string]int64 `json:"status_codes"`
	TopEndpoints   []EndpointCount  `json:"top_endpoints"`
}

type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int64  `json:"count"`
}

// EndpointLatency is one row of the /stats/slowest view.
type EndpointLatency struct {
	Endpoint       string  `json:"endpoint"`
	ResponseTimeMS float64 `json:"response_time_ms"`
}

// EndpointBreakdown is the /stats/endpoints/{date} view.
type EndpointBreakdown struct {
	Date        string           `json:"date"`
	Endpoints   map[string]int64 `json:"endpoints"`
	StatusCodes map[string]int64 `json:"status_codes"`
}

// RedisReporter answers the reporting queries against the keys written by
// RedisRecorder.
type RedisReporter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisReporter(client *redis.Client) *RedisReporter {
	return &RedisReporter{client: client, now: time.Now}
}

// WithClock sets the time source. Used by tests.
func (r *RedisReporter) WithClock(now func() time.Time) *RedisReporter {
	r.now = now
	return r
}

// TodaySummary aggregates today's totals, status code counts, unique visitor
// count and the ten busiest endpoints.
func (r *RedisReporter) TodaySummary(ctx context.Context) (DailySummary, error) {
	day := dayOf(r.now())
	summary := DailySummary{
		Date:         day,
		StatusCodes:  make(map[string]int64),
		TopEndpoints: []EndpointCount{},
	}

	total, err := r.client.Get(ctx, totalKey(day)).Result()
	if err != nil && err != redis.Nil {
		return DailySummary{}, fmt.Errorf("get total: %w", err)
	}
	if total != "" {
		summary.TotalRequests, _ = strconv.ParseInt(total, 10, 64)
	}

	summary.UniqueVisitors, err = r.client.SCard(ctx, ipsKey(day)).Result()
	if err != nil {
		return DailySummary{}, fmt.Errorf("count unique ips: %w", err)
	}

	statusCodes, err := r.client.HGetAll(ctx, statusCodesKey(day)).Result()
	if err != nil {
		return DailySummary{}, fmt.Errorf("get status codes: %w", err)
	}
	for code, count := range statusCodes {
		n, _ := strconv.ParseInt(count, 10, 64)
		summary.StatusCodes[code] = n
	}

	endpoints, err := r.client.HGetAll(ctx, endpointsKey(day)).Result()
	if err != nil {
		return DailySummary{}, fmt.Errorf("get endpoints: %w", err)
	}
	summary.TopEndpoints = topEndpoints(endpoints, 10)

	return summary, nil
}

// topEndpoints ranks hit counts descending, breaking ties by endpoint name,
// and keeps at most n entries.
func topEndpoints(counts map[string]string, n int) []EndpointCount {
	ranked := make([]EndpointCount, 0, len(counts))
	for endpoint, count := range counts {
		c, _ := strconv.ParseInt(count, 10, 64)
		ranked = append(ranked, EndpointCount{Endpoint: endpoint, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Endpoint < ranked[j].Endpoint
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// SlowestEndpoints returns today's endpoints ordered by recorded response
// time, slowest first.
func (r *RedisReporter) SlowestEndpoints(ctx context.Context, limit int) ([]EndpointLatency, error) {
	day := dayOf(r.now())

	rows, err := r.client.ZRevRangeWithScores(ctx, responseTimesKey(day), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range response times: %w", err)
	}

	result := make([]EndpointLatency, 0, len(rows))
	for _, row := range rows {
		endpoint, ok := row.Member.(string)
		if !ok {
			continue
		}
		result = append(result, EndpointLatency{Endpoint: endpoint, ResponseTimeMS: row.Score})
	}
	return result, nil
}

// RecentRequests returns the newest recorded requests, newest first.
// Members that fail to decode are skipped.
func (r *RedisReporter) RecentRequests(ctx context.Context, limit int) ([]domain.RequestStat, error) {
	members, err := r.client.ZRevRange(ctx, recentRequestsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range recent requests: %w", err)
	}

	result := make([]domain.RequestStat, 0, len(members))
	for _, member := range members {
		var stat domain.RequestStat
		if err := json.Unmarshal([]byte(member), &stat); err != nil {
			continue
		}
		result = append(result, stat)
	}
	return result, nil
}

// EndpointsForDate returns the per-endpoint and per-status-code counts for an
// arbitrary day. Days outside the retention window come back empty.
func (r *RedisReporter) EndpointsForDate(ctx context.Context, date string) (EndpointBreakdown, error) {
	breakdown := EndpointBreakdown{
		Date:        date,
		Endpoints:   make(map[string]int64),
		StatusCodes: make(map[string]int64),
	}

	endpoints, err := r.client.HGetAll(ctx, endpointsKey(date)).Result()
	if err != nil {
		return EndpointBreakdown{}, fmt.Errorf("get endpoints: %w", err)
	}
	for endpoint, count := range endpoints {
		n, _ := strconv.ParseInt(count, 10, 64)
		breakdown.Endpoints[endpoint] = n
	}

	statusCodes, err := r.client.HGetAll(ctx, statusCodesKey(date)).Result()
	if err != nil {
		return EndpointBreakdown{}, fmt.Errorf("get status codes: %w", err)
	}
	for code, count := range statusCodes {
		n, _ := strconv.ParseInt(count, 10, 64)
		breakdown.StatusCodes[code] = n
	}

	return breakdown, nil
}
