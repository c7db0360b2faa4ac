// Package dummymail records outgoing mail in memory for tests.
package dummymail

import (
	"sync"

	"github.com/trezcool/darasa/core"
)

type Service struct {
	mu           sync.Mutex
	sentMessages []core.EmailMessage
}

var _ core.EmailService = (*Service)(nil)

func NewService() *Service {
	return &Service{}
}

// SendMessages records messages synchronously so tests can assert right after
// the call.
func (svc *Service) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		if msg.HasRecipients() && msg.HasContent() {
			svc.sentMessages = append(svc.sentMessages, *msg)
		}
	}
}

// SentMessages returns a copy of everything recorded so far.
func (svc *Service) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sent := make([]core.EmailMessage, len(svc.sentMessages))
	copy(sent, svc.sentMessages)
	return sent
}

// Reset clears the recorded messages.
func (svc *Service) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sentMessages = nil
}
