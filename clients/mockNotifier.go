package clients

import (
	"fmt"
	"net/http"
	"sync"
)

type (
	// MockNotifier records every email instead of sending it
	MockNotifier struct {
		mu         sync.Mutex
		sentEmails []EmailArgs
		failStatus int
	}

	EmailArgs struct {
		To      []string
		Subject string
		Msg     string
	}
)

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// FailWith makes Send report the given status, zero restores success.
// Failed emails are still recorded.
func (c *MockNotifier) FailWith(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failStatus = status
}

func (c *MockNotifier) Send(to []string, subject string, msg string) (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	details := fmt.Sprintf("Send message with subject[%s] to %v", subject, to)
	c.sentEmails = append(c.sentEmails, EmailArgs{To: to, Subject: subject, Msg: msg})
	if c.failStatus != 0 {
		return c.failStatus, "mock failure"
	}
	return http.StatusOK, details
}

func (c *MockNotifier) SentEmails() []EmailArgs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EmailArgs(nil), c.sentEmails...)
}

// LastEmail returns the most recent email, nil when none was sent
func (c *MockNotifier) LastEmail() *EmailArgs {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sentEmails) == 0 {
		return nil
	}
	last := c.sentEmails[len(c.sentEmails)-1]
	return &last
}

func (c *MockNotifier) GetLastEmailSubject() string {
	if last := c.LastEmail(); last != nil {
		return last.Subject
	}
	return ""
}
