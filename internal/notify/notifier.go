package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/abolsttar/school-management/internal/cache"
	"github.com/abolsttar/school-management/internal/circuitbreaker"
	"github.com/abolsttar/school-management/internal/domain"
	"github.com/abolsttar/school-management/internal/metrics"
)

// StudentGetter resolves a student by code.
type StudentGetter interface {
	GetStudent(ctx context.Context, code string) (domain.Student, error)
}

// AbsenceNotifier sends the guardian SMS after an absent mark. Lookups go
// through the response cache first when one is configured. Failures are
// logged and counted, never surfaced to the request that marked the absence.
type AbsenceNotifier struct {
	students StudentGetter
	sender   Sender
	cache    cache.Store
	cacheTTL time.Duration
	breaker  *circuitbreaker.CircuitBreaker
	sink     metrics.Sink
}

func NewAbsenceNotifier(students StudentGetter, sender Sender) *AbsenceNotifier {
	return &AbsenceNotifier{
		students: students,
		sender:   sender,
		sink:     metrics.NewNoopSink(),
	}
}

// WithCache makes student lookups cache-first and repopulates the cache on a
// miss.
func (n *AbsenceNotifier) WithCache(store cache.Store, ttl time.Duration) *AbsenceNotifier {
	n.cache = store
	n.cacheTTL = ttl
	return n
}

// WithBreaker guards delivery per recipient: a number that keeps failing
// stops receiving attempts until the breaker's cooldown passes.
func (n *AbsenceNotifier) WithBreaker(cb *circuitbreaker.CircuitBreaker) *AbsenceNotifier {
	n.breaker = cb
	return n
}

// WithMetrics sets the metrics sink.
func (n *AbsenceNotifier) WithMetrics(sink metrics.Sink) *AbsenceNotifier {
	n.sink = sink
	return n
}

// NotifyAbsence resolves the student and sends the absence message. Students
// without a phone number are skipped.
func (n *AbsenceNotifier) NotifyAbsence(ctx context.Context, studentCode, date string) {
	student, err := n.lookup(ctx, studentCode)
	if err != nil {
		log.Printf("notify: student lookup failed for %s: %v", studentCode, err)
		n.sink.SMSOutcome(n.sender.Name(), metrics.OutcomeSkipped)
		return
	}

	if student.Phone == "" {
		log.Printf("notify: no phone on file for %s, skipping absence SMS", studentCode)
		n.sink.SMSOutcome(n.sender.Name(), metrics.OutcomeSkipped)
		return
	}

	msg := Message{
		To:   student.Phone,
		Body: fmt.Sprintf("Student %s %s was absent on %s.", student.FirstName, student.LastName, date),
	}

	if n.breaker != nil {
		if err := n.breaker.Allow(msg.To); err != nil {
			log.Printf("notify: delivery to %s suppressed: %v", msg.To, err)
			n.sink.SMSOutcome(n.sender.Name(), metrics.OutcomeSkipped)
			return
		}
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		log.Printf("notify: SMS send failed via %s for %s: %v", n.sender.Name(), studentCode, err)
		if n.breaker != nil {
			n.breaker.RecordFailure(msg.To)
		}
		n.sink.SMSOutcome(n.sender.Name(), metrics.OutcomeFailed)
		return
	}

	if n.breaker != nil {
		n.breaker.RecordSuccess(msg.To)
	}
	n.sink.SMSOutcome(n.sender.Name(), metrics.OutcomeSuccess)
}

func (n *AbsenceNotifier) lookup(ctx context.Context, code string) (domain.Student, error) {
	if n.cache != nil {
		if body, ok, err := n.cache.Get(ctx, cache.StudentKey(code)); err == nil && ok {
			var student domain.Student
			if err := json.Unmarshal(body, &student); err == nil {
				return student, nil
			}
		}
	}

	student, err := n.students.GetStudent(ctx, code)
	if err != nil {
		return domain.Student{}, err
	}

	if n.cache != nil {
		if body, err := json.Marshal(student); err == nil {
			if err := n.cache.Set(ctx, cache.StudentKey(code), body, n.cacheTTL); err != nil {
				log.Printf("notify: cache write failed for %s: %v", code, err)
			}
		}
	}
	return student, nil
}
