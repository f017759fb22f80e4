package mqtt

import (
	"time"

	coremqtt "github.com/kilianp07/railsched/core/mqtt"
)

// SchedulePayload is the JSON document published for a schedule.
type SchedulePayload struct {
	MessageID   string         `json:"message_id"`
	RequestID   string         `json:"request_id"`
	SectionID   string         `json:"section_id"`
	Status      string         `json:"status"`
	PublishedAt time.Time      `json:"published_at"`
	Entries     []EntryPayload `json:"entries"`
}

// EntryPayload is one train of a published schedule.
type EntryPayload struct {
	TrainID      string    `json:"train_id"`
	Departure    time.Time `json:"departure"`
	Arrival      time.Time `json:"arrival"`
	Platform     int       `json:"platform"`
	Priority     string    `json:"priority"`
	DelayMinutes int       `json:"delay_minutes"`
}

// EncodeSchedule converts a schedule message to its wire form.
func EncodeSchedule(id string, msg coremqtt.ScheduleMessage) SchedulePayload {
	out := SchedulePayload{
		MessageID:   id,
		RequestID:   msg.RequestID,
		SectionID:   msg.SectionID,
		Status:      string(msg.Status),
		PublishedAt: msg.PublishedAt.UTC(),
		Entries:     make([]EntryPayload, 0, len(msg.Entries)),
	}
	for _, e := range msg.Entries {
		out.Entries = append(out.Entries, EntryPayload{
			TrainID:      e.TrainID,
			Departure:    e.Departure.UTC(),
			Arrival:      e.Arrival.UTC(),
			Platform:     e.Platform,
			Priority:     string(e.PriorityApplied),
			DelayMinutes: e.DelayMinutes,
		})
	}
	return out
}
