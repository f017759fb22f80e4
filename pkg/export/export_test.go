package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func sample() []model.TrainScheduleEntry {
	dep := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return []model.TrainScheduleEntry{
		{
			TrainID: "IC-1", TrainNumber: 101, Platform: 2,
			Departure: dep, Arrival: dep.Add(20 * time.Minute),
			PriorityApplied: model.PriorityExpress, DelayMinutes: 3,
			ConflictsResolved: []string{"IC-2", "R-7"},
		},
		{
			TrainID: "R-7", TrainNumber: 7, Platform: 1,
			Departure: dep.Add(5 * time.Minute), Arrival: dep.Add(30 * time.Minute),
			PriorityApplied: model.PriorityPassenger,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"IC-1", "101", "2", "2025-03-01T08:00:00Z", "2025-03-01T08:20:00Z", "EXPRESS", "3", "IC-2;R-7"}, rows[1])
	assert.Equal(t, "", rows[2][7])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))
	var out []model.TrainScheduleEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "R-7", out[1].TrainID)
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Write(&buf, "CSV", nil))
	assert.Error(t, Write(&buf, "xlsx", nil))
}
