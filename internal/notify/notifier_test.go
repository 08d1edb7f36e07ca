package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abolsttar/school-management/internal/cache"
	"github.com/abolsttar/school-management/internal/circuitbreaker"
	"github.com/abolsttar/school-management/internal/domain"
	"github.com/abolsttar/school-management/internal/testutil"
)

type fakeStudents struct {
	students map[string]domain.Student
	calls    int
}

func (f *fakeStudents) GetStudent(ctx context.Context, code string) (domain.Student, error) {
	f.calls++
	s, ok := f.students[code]
	if !ok {
		return domain.Student{}, domain.ErrStudentNotFound
	}
	return s, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.entries, k)
	}
	return nil
}

func TestAbsenceNotifier_SendsMessage(t *testing.T) {
	students := &fakeStudents{students: map[string]domain.Student{
		"STU001": {Code: "STU001", FirstName: "Amina", LastName: "Diallo", Phone: "+15550100"},
	}}
	sender := &fakeSender{}
	notifier := NewAbsenceNotifier(students, sender)

	notifier.NotifyAbsence(testutil.TestContext(t), "STU001", "2026-03-02")

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "+15550100" {
		t.Errorf("To = %q, want +15550100", msg.To)
	}
	want := "Student Amina Diallo was absent on 2026-03-02."
	if msg.Body != want {
		t.Errorf("Body = %q, want %q", msg.Body, want)
	}
}

func TestAbsenceNotifier_SkipsStudentWithoutPhone(t *testing.T) {
	students := &fakeStudents{students: map[string]domain.Student{
		"STU001": {Code: "STU001", FirstName: "Amina", LastName: "Diallo"},
	}}
	sender := &fakeSender{}
	notifier := NewAbsenceNotifier(students, sender)

	notifier.NotifyAbsence(testutil.TestContext(t), "STU001", "2026-03-02")

	if len(sender.sent) != 0 {
		t.Fatalf("sent %d messages, want 0", len(sender.sent))
	}
}

func TestAbsenceNotifier_UnknownStudentIsSilent(t *testing.T) {
	students := &fakeStudents{students: map[string]domain.Student{}}
	sender := &fakeSender{}
	notifier := NewAbsenceNotifier(students, sender)

	notifier.NotifyAbsence(testutil.TestContext(t), "NOPE", "2026-03-02")

	if len(sender.sent) != 0 {
		t.Fatalf("sent %d messages, want 0", len(sender.sent))
	}
}

func TestAbsenceNotifier_SendFailureDoesNotPanic(t *testing.T) {
	students := &fakeStudents{students: map[string]domain.Student{
		"STU001": {Code: "STU001", FirstName: "Amina", LastName: "Diallo", Phone: "+15550100"},
	}}
	sender := &fakeSender{err: errors.New("provider down")}
	notifier := NewAbsenceNotifier(students, sender)

	notifier.NotifyAbsence(testutil.TestContext(t), "STU001", "2026-03-02")
}

func TestAbsenceNotifier_CacheHitSkipsStore(t *testing.T) {
	students := &fakeStudents{students: map[string]domain.Student{}}
	sender := &fakeSender{}
	store := newFakeCache()

	cached, _ := json.Marshal(domain.Student{
		Code: "STU001", FirstName: "Amina", LastName: "Diallo", Phone: "+15550100",
	})
	store.Set(context.Background(), cache.StudentKey("STU001"), cached, time.Minute)

	notifier := NewAbsenceNotifier(students, sender).WithCache(store, time.Minute)
	notifier.NotifyAbsence(testutil.TestContext(t), "STU001", "2026-03-02")

	if students.calls != 0 {
		t.Errorf("store lookups = %d, want 0 on cache hit", students.calls)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
}

func TestAbsenceNotifier_BreakerSuppressesFailingNumber(t *testing.T) {
	students := &fakeStudents{students: map[string]domain.Student{
		"STU001": {Code: "STU001", FirstName: "Amina", LastName: "Diallo", Phone: "+15550100"},
	}}
	sender := &fakeSender{err: errors.New("provider down")}
	notifier := NewAbsenceNotifier(students, sender).
		WithBreaker(circuitbreaker.New(2, time.Hour))
	ctx := testutil.TestContext(t)

	notifier.NotifyAbsence(ctx, "STU001", "2026-03-02")
	notifier.NotifyAbsence(ctx, "STU001", "2026-03-03")

	// Circuit is open now; the sender must not see further attempts.
	sender.err = nil
	notifier.NotifyAbsence(ctx, "STU001", "2026-03-04")

	if len(sender.sent) != 0 {
		t.Fatalf("sent %d messages, want 0 while circuit open", len(sender.sent))
	}
}

func TestAbsenceNotifier_CacheMissPopulatesCache(t *testing.T) {
	students := &fakeStudents{students: map[string]domain.Student{
		"STU001": {Code: "STU001", FirstName: "Amina", LastName: "Diallo", Phone: "+15550100"},
	}}
	sender := &fakeSender{}
	store := newFakeCache()

	notifier := NewAbsenceNotifier(students, sender).WithCache(store, time.Minute)
	notifier.NotifyAbsence(testutil.TestContext(t), "STU001", "2026-03-02")

	if students.calls != 1 {
		t.Errorf("store lookups = %d, want 1", students.calls)
	}
	if _, ok := store.entries[cache.StudentKey("STU001")]; !ok {
		t.Error("cache should hold the student after a miss")
	}
}
