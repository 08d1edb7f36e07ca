// Package api exposes the school administration HTTP surface: student CRUD,
// attendance marking and the usage reporting endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abolsttar/school-management/internal/cache"
	"github.com/abolsttar/school-management/internal/domain"
	"github.com/abolsttar/school-management/internal/metrics"
	"github.com/abolsttar/school-management/internal/usage"
)

// Default limits for the stats views.
const (
	DefaultSlowestLimit = 10
	DefaultRecentLimit  = 20
	MaxStatsLimit       = 100
)

type Store interface {
	CreateStudent(ctx context.Context, student domain.Student) (domain.Student, error)
	GetStudent(ctx context.Context, code string) (domain.Student, error)
	ListStudents(ctx context.Context) ([]domain.Student, error)
	UpdateStudent(ctx context.Context, code string, student domain.Student) (domain.Student, error)
	DeleteStudent(ctx context.Context, code string) error
	MarkAttendance(ctx context.Context, record domain.AttendanceRecord) (domain.AttendanceRecord, error)
	ListAttendance(ctx context.Context, date, studentID string) ([]domain.AttendanceRecord, error)
}

// UsageReader answers the /stats views.
type UsageReader interface {
	TodaySummary(ctx context.Context) (usage.DailySummary, error)
	SlowestEndpoints(ctx context.Context, limit int) ([]usage.EndpointLatency, error)
	RecentRequests(ctx context.Context, limit int) ([]domain.RequestStat, error)
	EndpointsForDate(ctx context.Context, date string) (usage.EndpointBreakdown, error)
}

// Notifier fires the absence SMS after an absent mark.
type Notifier interface {
	NotifyAbsence(ctx context.Context, studentCode, date string)
}

// Pinger checks reachability of one collaborator for the health probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store    Store
	usage    UsageReader
	notifier Notifier
	cache    cache.Store
	cacheTTL time.Duration
	mongo    Pinger
	redis    Pinger
	sink     metrics.Sink
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, sink: metrics.NewNoopSink()}
}

// WithCache enables response caching for the read endpoints.
func (h *Handler) WithCache(store cache.Store, ttl time.Duration) *Handler {
	h.cache = store
	h.cacheTTL = ttl
	return h
}

// WithUsage enables the /stats endpoints.
func (h *Handler) WithUsage(reader UsageReader) *Handler {
	h.usage = reader
	return h
}

// WithNotifier enables the absence SMS.
func (h *Handler) WithNotifier(n Notifier) *Handler {
	h.notifier = n
	return h
}

// WithHealth sets the collaborator pingers for verbose /health and /readiness.
func (h *Handler) WithHealth(mongo, redis Pinger) *Handler {
	h.mongo = mongo
	h.redis = redis
	return h
}

// WithMetrics sets the metrics sink.
func (h *Handler) WithMetrics(sink metrics.Sink) *Handler {
	h.sink = sink
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/readiness" && r.Method == http.MethodGet:
		h.readiness(w, r)

	case path == "/students" && r.Method == http.MethodPost:
		h.createStudent(w, r)

	case path == "/students" && r.Method == http.MethodGet:
		h.listStudents(w, r)

	case strings.HasPrefix(path, "/students/") && r.Method == http.MethodGet:
		h.getStudent(w, r, studentCodeFromPath(path))

	case strings.HasPrefix(path, "/students/") && r.Method == http.MethodPut:
		h.updateStudent(w, r, studentCodeFromPath(path))

	case strings.HasPrefix(path, "/students/") && r.Method == http.MethodDelete:
		h.deleteStudent(w, r, studentCodeFromPath(path))

	case path == "/attendance/mark" && r.Method == http.MethodPost:
		h.markAttendance(w, r)

	case path == "/attendance" && r.Method == http.MethodGet:
		h.listAttendance(w, r)

	case path == "/stats/today" && r.Method == http.MethodGet:
		h.statsToday(w, r)

	case path == "/stats/slowest" && r.Method == http.MethodGet:
		h.statsSlowest(w, r)

	case path == "/stats/recent" && r.Method == http.MethodGet:
		h.statsRecent(w, r)

	case strings.HasPrefix(path, "/stats/endpoints/") && r.Method == http.MethodGet:
		h.statsEndpoints(w, r, strings.TrimPrefix(path, "/stats/endpoints/"))

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func studentCodeFromPath(path string) string {
	return strings.TrimPrefix(path, "/students/")
}

// Health endpoints

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || (h.mongo == nil && h.redis == nil) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.mongo != nil {
		if err := h.mongo.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["mongo"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["mongo"] = "healthy"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["redis"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := ReadinessResponse{}
	if h.mongo != nil && h.mongo.Ping(ctx) == nil {
		resp.Mongo = true
	}
	if h.redis != nil && h.redis.Ping(ctx) == nil {
		resp.Redis = true
	}
	resp.Ready = resp.Mongo && resp.Redis

	writeJSON(w, http.StatusOK, resp)
}

// Student endpoints

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) createStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	code, err := validateStudent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	student := domain.Student{
		Code:       code,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		GradeLevel: req.GradeLevel,
		Phone:      req.Phone,
		Email:      req.Email,
		ClassName:  req.ClassName,
	}

	created, err := h.store.CreateStudent(r.Context(), student)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateStudentCode) {
			writeError(w, http.StatusConflict, "student_code already exists")
			return
		}
		log.Printf("api: create student error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create student")
		return
	}

	h.invalidateStudent(r.Context(), code)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	key := cache.StudentsListKey()
	if h.serveCached(w, r, key) {
		return
	}

	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		log.Printf("api: list students error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	// The list is cached twice as long as single lookups.
	h.respondCached(w, r, key, students, 2*h.cacheTTL)
}

func (h *Handler) getStudent(w http.ResponseWriter, r *http.Request, code string) {
	key := cache.StudentKey(code)
	if h.serveCached(w, r, key) {
		return
	}

	student, err := h.store.GetStudent(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "student not found")
			return
		}
		log.Printf("api: get student error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get student")
		return
	}

	h.respondCached(w, r, key, student, h.cacheTTL)
}

func (h *Handler) updateStudent(w http.ResponseWriter, r *http.Request, code string) {
	var req StudentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := validateStudent(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	student := domain.Student{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		GradeLevel: req.GradeLevel,
		Phone:      req.Phone,
		Email:      req.Email,
		ClassName:  req.ClassName,
	}

	updated, err := h.store.UpdateStudent(r.Context(), code, student)
	if err != nil {
		if errors.Is(err, domain.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "student not found")
			return
		}
		log.Printf("api: update student error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update student")
		return
	}

	h.invalidateStudent(r.Context(), code)
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteStudent(w http.ResponseWriter, r *http.Request, code string) {
	if err := h.store.DeleteStudent(r.Context(), code); err != nil {
		if errors.Is(err, domain.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "student not found")
			return
		}
		log.Printf("api: delete student error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}

	h.invalidateStudent(r.Context(), code)
	w.WriteHeader(http.StatusNoContent)
}

// Attendance endpoints

func (h *Handler) markAttendance(w http.ResponseWriter, r *http.Request) {
	var req MarkAttendanceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateMarkAttendance(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	code := req.Code()
	record := domain.AttendanceRecord{
		StudentID:  code,
		Date:       req.Date,
		Status:     domain.AttendanceStatus(req.Status),
		Note:       req.Note,
		RecordedBy: req.RecordedBy,
	}

	stored, err := h.store.MarkAttendance(r.Context(), record)
	if err != nil {
		log.Printf("api: mark attendance error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to mark attendance")
		return
	}

	h.invalidateAttendance(r.Context(), code, req.Date)

	if stored.Status == domain.StatusAbsent && h.notifier != nil {
		// The request finishes without waiting on SMS delivery.
		go h.notifier.NotifyAbsence(context.Background(), code, req.Date)
	}

	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) listAttendance(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	studentID := r.URL.Query().Get("student_id")

	key := cache.AttendanceListKey(date, studentID)
	if h.serveCached(w, r, key) {
		return
	}

	records, err := h.store.ListAttendance(r.Context(), date, studentID)
	if err != nil {
		log.Printf("api: list attendance error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	h.respondCached(w, r, key, records, h.cacheTTL)
}

// Stats endpoints

func (h *Handler) statsToday(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not available")
		return
	}

	summary, err := h.usage.TodaySummary(r.Context())
	if err != nil {
		log.Printf("api: today stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) statsSlowest(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not available")
		return
	}

	limit, err := parseLimit(r, DefaultSlowestLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slowest, err := h.usage.SlowestEndpoints(r.Context(), limit)
	if err != nil {
		log.Printf("api: slowest stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, SlowestResponse{SlowestEndpoints: slowest})
}

func (h *Handler) statsRecent(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not available")
		return
	}

	limit, err := parseLimit(r, DefaultRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recent, err := h.usage.RecentRequests(r.Context(), limit)
	if err != nil {
		log.Printf("api: recent stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, RecentResponse{RecentRequests: recent})
}

func (h *Handler) statsEndpoints(w http.ResponseWriter, r *http.Request, date string) {
	if h.usage == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not available")
		return
	}

	if err := validateDate(date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	breakdown, err := h.usage.EndpointsForDate(r.Context(), date)
	if err != nil {
		log.Printf("api: endpoint stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// Response cache plumbing

// serveCached writes the cached body when the key is live. Cache errors
// degrade to a miss.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	if h.cache == nil {
		return false
	}

	body, ok, err := h.cache.Get(r.Context(), key)
	if err != nil {
		log.Printf("api: cache read error for %s: %v", key, err)
		h.sink.CacheLookup(false)
		return false
	}
	h.sink.CacheLookup(ok)
	if !ok {
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return true
}

// respondCached marshals v once, stores it under key with the given TTL and
// writes it as the response. Cache write failures only log.
func (h *Handler) respondCached(w http.ResponseWriter, r *http.Request, key string, v any, ttl time.Duration) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("api: json marshal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), key, body, ttl); err != nil {
			log.Printf("api: cache write error for %s: %v", key, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) invalidateStudent(ctx context.Context, code string) {
	if h.cache == nil {
		return
	}
	if err := cache.InvalidateStudent(ctx, h.cache, code); err != nil {
		log.Printf("api: cache invalidation error for student %s: %v", code, err)
	}
}

func (h *Handler) invalidateAttendance(ctx context.Context, code, date string) {
	if h.cache == nil {
		return
	}
	if err := cache.InvalidateAttendance(ctx, h.cache, code, date); err != nil {
		log.Printf("api: cache invalidation error for attendance %s/%s: %v", code, date, err)
	}
}

// Helpers

// decodeBody decodes the JSON request body into v, writing the error response
// itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseLimit(r *http.Request, def int) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > MaxStatsLimit {
		limit = MaxStatsLimit
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
