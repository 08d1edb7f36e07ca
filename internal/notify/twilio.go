package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioSender delivers messages through the Twilio Messages REST endpoint.
type TwilioSender struct {
	client     *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	timeout    time.Duration
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		client:     &http.Client{},
		baseURL:    twilioBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		timeout:    10 * time.Second,
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (s *TwilioSender) WithBaseURL(base string) *TwilioSender {
	s.baseURL = base
	return s
}

func (s *TwilioSender) Name() string {
	return "twilio"
}

func (s *TwilioSender) Send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", s.from)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	ctxTimeout, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
