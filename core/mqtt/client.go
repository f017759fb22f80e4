package mqtt

import (
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// ScheduleMessage is a solved schedule announced to downstream consumers.
type ScheduleMessage struct {
	RequestID   string
	SectionID   string
	Status      model.Status
	Entries     []model.TrainScheduleEntry
	PublishedAt time.Time
}

// SchedulePublisher announces schedules and tracks their acknowledgment by
// consumers.
type SchedulePublisher interface {
	// PublishSchedule sends the schedule and returns the message identifier
	// used to track the acknowledgment.
	PublishSchedule(msg ScheduleMessage) (messageID string, err error)

	// WaitForAck waits for an acknowledgment of the message or until the
	// timeout expires.
	WaitForAck(messageID string, timeout time.Duration) (bool, error)
}
