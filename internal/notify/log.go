package notify

import (
	"context"
	"log"
)

// LogSender writes the message to the process log instead of delivering it.
// This is the default provider.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Name() string {
	return "log"
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	log.Printf("notify: SMS to %s: %s", msg.To, msg.Body)
	return nil
}
