package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/railsched/core/mqtt"
)

// MockPublisher is an in-memory SchedulePublisher used in tests.
type MockPublisher struct {
	Messages   []coremqtt.ScheduleMessage
	FailIDs    map[string]bool // section ids whose publication fails
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// PublishSchedule records the message or returns an error if configured to
// fail for its section.
func (m *MockPublisher) PublishSchedule(msg coremqtt.ScheduleMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[msg.SectionID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Messages = append(m.Messages, msg)
	id := fmt.Sprintf("msg-%s", msg.RequestID)
	m.AckResults[id] = true
	return id, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(messageID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[messageID]
	m.mu.Unlock()
	if !exists {
		return false, coremqtt.ErrUnknownMessage
	}
	return ok, nil
}

// Published returns a copy of the recorded messages.
func (m *MockPublisher) Published() []coremqtt.ScheduleMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.ScheduleMessage(nil), m.Messages...)
}
