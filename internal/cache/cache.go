// Package cache provides the response cache for read endpoints: serialized
// response bodies stored under a TTL, keyed by endpoint identity and query
// parameters, with write-side invalidation of the affected keys.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value store for serialized response bodies.
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures so callers can degrade to a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// StudentKey is the cache key for a single student lookup.
func StudentKey(studentCode string) string {
	return "student:" + studentCode
}

// StudentsListKey is the cache key for the full students list.
func StudentsListKey() string {
	return "students:list"
}

// AttendanceListKey derives the cache key for an attendance listing from its
// filter combination. Each combination caches independently.
func AttendanceListKey(date, studentID string) string {
	switch {
	case date != "" && studentID != "":
		return "attendance:list:" + date + ":" + studentID
	case date != "":
		return "attendance:list:" + date
	case studentID != "":
		return "attendance:list:student:" + studentID
	default:
		return "attendance:list:all"
	}
}

// InvalidateStudent drops the cached entries affected by a write to the given
// student: the single-student key and the list key.
func InvalidateStudent(ctx context.Context, store Store, studentCode string) error {
	return store.Delete(ctx, StudentKey(studentCode), StudentsListKey())
}

// InvalidateAttendance drops the attendance list entries affected by a mark
// for the given student and date.
func InvalidateAttendance(ctx context.Context, store Store, studentCode, date string) error {
	keys := []string{AttendanceListKey("", "")}
	if date != "" {
		keys = append(keys, AttendanceListKey(date, ""))
	}
	if studentCode != "" {
		keys = append(keys, AttendanceListKey("", studentCode))
	}
	if date != "" && studentCode != "" {
		keys = append(keys, AttendanceListKey(date, studentCode))
	}
	return store.Delete(ctx, keys...)
}
