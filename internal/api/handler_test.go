package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abolsttar/school-management/internal/domain"
	"github.com/abolsttar/school-management/internal/usage"
)

type mockStore struct {
	createStudentFn  func(ctx context.Context, student domain.Student) (domain.Student, error)
	getStudentFn     func(ctx context.Context, code string) (domain.Student, error)
	listStudentsFn   func(ctx context.Context) ([]domain.Student, error)
	updateStudentFn  func(ctx context.Context, code string, student domain.Student) (domain.Student, error)
	deleteStudentFn  func(ctx context.Context, code string) error
	markAttendanceFn func(ctx context.Context, record domain.AttendanceRecord) (domain.AttendanceRecord, error)
	listAttendanceFn func(ctx context.Context, date, studentID string) ([]domain.AttendanceRecord, error)
}

func (m *mockStore) CreateStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	return m.createStudentFn(ctx, student)
}

func (m *mockStore) GetStudent(ctx context.Context, code string) (domain.Student, error) {
	return m.getStudentFn(ctx, code)
}

func (m *mockStore) ListStudents(ctx context.Context) ([]domain.Student, error) {
	return m.listStudentsFn(ctx)
}

func (m *mockStore) UpdateStudent(ctx context.Context, code string, student domain.Student) (domain.Student, error) {
	return m.updateStudentFn(ctx, code, student)
}

func (m *mockStore) DeleteStudent(ctx context.Context, code string) error {
	return m.deleteStudentFn(ctx, code)
}

func (m *mockStore) MarkAttendance(ctx context.Context, record domain.AttendanceRecord) (domain.AttendanceRecord, error) {
	return m.markAttendanceFn(ctx, record)
}

func (m *mockStore) ListAttendance(ctx context.Context, date, studentID string) ([]domain.AttendanceRecord, error) {
	return m.listAttendanceFn(ctx, date, studentID)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deletes = append(c.deletes, k)
	}
	return nil
}

func doRequest(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.9:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateStudent(t *testing.T) {
	var created domain.Student
	store := &mockStore{
		createStudentFn: func(ctx context.Context, student domain.Student) (domain.Student, error) {
			created = student
			return student, nil
		},
	}
	h := NewHandler(store)

	rec := doRequest(h, http.MethodPost, "/students", StudentRequest{
		FirstName:   "Amina",
		LastName:    "Diallo",
		StudentCode: "stu001",
		Phone:       "+15550100",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if created.Code != "STU001" {
		t.Errorf("stored code = %q, want STU001 (normalized)", created.Code)
	}

	var resp domain.Student
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "STU001" || resp.FirstName != "Amina" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateStudent_DuplicateCodeIsConflict(t *testing.T) {
	store := &mockStore{
		createStudentFn: func(ctx context.Context, student domain.Student) (domain.Student, error) {
			return domain.Student{}, domain.ErrDuplicateStudentCode
		},
	}
	h := NewHandler(store)

	rec := doRequest(h, http.MethodPost, "/students", validStudentRequest())
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreateStudent_InvalidBody(t *testing.T) {
	h := NewHandler(&mockStore{})

	req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateStudent_BodyTooLarge(t *testing.T) {
	h := NewHandler(&mockStore{})

	big := strings.Repeat("a", maxRequestBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(big))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestGetStudent_NotFound(t *testing.T) {
	store := &mockStore{
		getStudentFn: func(ctx context.Context, code string) (domain.Student, error) {
			return domain.Student{}, domain.ErrStudentNotFound
		},
	}
	h := NewHandler(store)

	rec := doRequest(h, http.MethodGet, "/students/NOPE", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListStudents(t *testing.T) {
	store := &mockStore{
		listStudentsFn: func(ctx context.Context) ([]domain.Student, error) {
			return []domain.Student{
				{Code: "STU002", FirstName: "Binta", LastName: "Abara"},
				{Code: "STU001", FirstName: "Amina", LastName: "Diallo"},
			}, nil
		},
	}
	h := NewHandler(store)

	rec := doRequest(h, http.MethodGet, "/students", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var students []domain.Student
	if err := json.NewDecoder(rec.Body).Decode(&students); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("got %d students, want 2", len(students))
	}
}

func TestUpdateStudent(t *testing.T) {
	store := &mockStore{
		updateStudentFn: func(ctx context.Context, code string, student domain.Student) (domain.Student, error) {
			student.Code = code
			return student, nil
		},
	}
	h := NewHandler(store)

	req := validStudentRequest()
	req.Phone = "+15550199"
	rec := doRequest(h, http.MethodPut, "/students/STU001", req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var resp domain.Student
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "STU001" || resp.Phone != "+15550199" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestUpdateStudent_NotFound(t *testing.T) {
	store := &mockStore{
		updateStudentFn: func(ctx context.Context, code string, student domain.Student) (domain.Student, error) {
			return domain.Student{}, domain.ErrStudentNotFound
		},
	}
	h := NewHandler(store)

	rec := doRequest(h, http.MethodPut, "/students/NOPE", validStudentRequest())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteStudent(t *testing.T) {
	store := &mockStore{
		deleteStudentFn: func(ctx context.Context, code string) error { return nil },
	}
	h := NewHandler(store)

	rec := doRequest(h, http.MethodDelete, "/students/STU001", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestDeleteStudent_NotFound(t *testing.T) {
	store := &mockStore{
		deleteStudentFn: func(ctx context.Context, code string) error {
			return domain.ErrStudentNotFound
		},
	}
	h := NewHandler(store)

	rec := doRequest(h, http.MethodDelete, "/students/NOPE", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	h := NewHandler(&mockStore{})

	rec := doRequest(h, http.MethodGet, "/teachers", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "not found" {
		t.Errorf("error = %q, want not found", resp.Error)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := doRequest(h, http.MethodGet, "/health", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

// mockUsage backs the /stats endpoint tests.
type mockUsage struct {
	todayFn     func(ctx context.Context) (usage.DailySummary, error)
	slowestFn   func(ctx context.Context, limit int) ([]usage.EndpointLatency, error)
	recentFn    func(ctx context.Context, limit int) ([]domain.RequestStat, error)
	endpointsFn func(ctx context.Context, date string) (usage.EndpointBreakdown, error)
}

func (m *mockUsage) TodaySummary(ctx context.Context) (usage.DailySummary, error) {
	return m.todayFn(ctx)
}

func (m *mockUsage) SlowestEndpoints(ctx context.Context, limit int) ([]usage.EndpointLatency, error) {
	return m.slowestFn(ctx, limit)
}

func (m *mockUsage) RecentRequests(ctx context.Context, limit int) ([]domain.RequestStat, error) {
	return m.recentFn(ctx, limit)
}

func (m *mockUsage) EndpointsForDate(ctx context.Context, date string) (usage.EndpointBreakdown, error) {
	return m.endpointsFn(ctx, date)
}
