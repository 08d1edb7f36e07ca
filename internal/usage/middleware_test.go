package usage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/abolsttar/school-management/internal/domain"
	"github.com/abolsttar/school-management/internal/testutil"
)

type fakeRecorder struct {
	mu    sync.Mutex
	stats []domain.RequestStat
	err   error
}

func (f *fakeRecorder) Record(ctx context.Context, stat domain.RequestStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stats = append(f.stats, stat)
	return nil
}

func (f *fakeRecorder) recorded() []domain.RequestStat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RequestStat(nil), f.stats...)
}

func TestMiddleware_RecordsOneStatPerRequest(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mw := NewMiddleware(recorder, handler, nil)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", nil)
		req.RemoteAddr = "203.0.113.9:54321"
		mw.ServeHTTP(rec, req)
	}

	stats := recorder.recorded()
	if len(stats) != 3 {
		t.Fatalf("recorded %d stats, want 3", len(stats))
	}
	for _, stat := range stats {
		if stat.Method != http.MethodPost || stat.Path != "/students" {
			t.Errorf("endpoint = %q, want %q", stat.Endpoint(), "POST /students")
		}
		if stat.StatusCode != http.StatusCreated {
			t.Errorf("status = %d, want 201", stat.StatusCode)
		}
		if stat.ClientIP != "203.0.113.9" {
			t.Errorf("ip = %q, want 203.0.113.9", stat.ClientIP)
		}
		if stat.ID == "" {
			t.Error("stat should carry a request id")
		}
	}
}

func TestMiddleware_UnwrittenStatusDefaultsTo200(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mw := NewMiddleware(recorder, handler, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health-ish", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	mw.ServeHTTP(rec, req)

	stats := recorder.recorded()
	if len(stats) != 1 {
		t.Fatalf("recorded %d stats, want 1", len(stats))
	}
	if stats[0].StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", stats[0].StatusCode)
	}
}

func TestMiddleware_MeasuresDuration(t *testing.T) {
	recorder := &fakeRecorder{}
	clock := testutil.NewFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clock.Advance(250 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	mw := NewMiddleware(recorder, handler, nil).WithClock(clock.Now)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	mw.ServeHTTP(rec, req)

	stats := recorder.recorded()
	if len(stats) != 1 {
		t.Fatalf("recorded %d stats, want 1", len(stats))
	}
	if stats[0].Duration != 250*time.Millisecond {
		t.Errorf("duration = %v, want 250ms", stats[0].Duration)
	}
	if stats[0].DurationMS != 250 {
		t.Errorf("duration_ms = %v, want 250", stats[0].DurationMS)
	}
}

func TestMiddleware_SkipPathsAreNotRecorded(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := NewMiddleware(recorder, handler, []string{"/health", "/readiness"})

	for _, path := range []string{"/health", "/readiness", "/students"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.9:54321"
		mw.ServeHTTP(rec, req)
	}

	stats := recorder.recorded()
	if len(stats) != 1 {
		t.Fatalf("recorded %d stats, want 1", len(stats))
	}
	if stats[0].Path != "/students" {
		t.Errorf("recorded path = %q, want /students", stats[0].Path)
	}
}

func TestMiddleware_RecorderFailureDoesNotFailRequest(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("redis down")}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mw := NewMiddleware(recorder, handler, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite recorder failure", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestDayOf(t *testing.T) {
	day := dayOf(time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC))
	if day != "2026-03-02" {
		t.Errorf("dayOf = %q, want 2026-03-02", day)
	}
}

func TestDailyKeys(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{totalKey("2026-03-02"), "usage:total:2026-03-02"},
		{endpointsKey("2026-03-02"), "usage:endpoints:2026-03-02"},
		{responseTimesKey("2026-03-02"), "usage:response_times:2026-03-02"},
		{statusCodesKey("2026-03-02"), "usage:status_codes:2026-03-02"},
		{ipsKey("2026-03-02"), "usage:ips:2026-03-02"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}
