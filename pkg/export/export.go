// Package export renders optimized schedules for downstream tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// Formats lists the accepted values of Write.
var Formats = []string{"json", "csv"}

var header = []string{
	"train_id", "train_number", "platform", "departure", "arrival",
	"priority", "delay_minutes", "conflicts_resolved",
}

// WriteJSON writes the schedule entries to w in JSON format.
func WriteJSON(w io.Writer, entries []model.TrainScheduleEntry) error {
	enc := json.NewEncoder(w)
	return enc.Encode(entries)
}

// WriteCSV writes one row per train, ordered as given.
func WriteCSV(w io.Writer, entries []model.TrainScheduleEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.TrainID,
			strconv.Itoa(e.TrainNumber),
			strconv.Itoa(e.Platform),
			e.Departure.Format(time.RFC3339),
			e.Arrival.Format(time.RFC3339),
			string(e.PriorityApplied),
			strconv.Itoa(e.DelayMinutes),
			strings.Join(e.ConflictsResolved, ";"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format.
func Write(w io.Writer, format string, entries []model.TrainScheduleEntry) error {
	switch strings.ToLower(format) {
	case "json":
		return WriteJSON(w, entries)
	case "csv":
		return WriteCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}
