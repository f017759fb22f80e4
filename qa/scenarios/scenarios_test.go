package scenarios

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob("*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		sc, err := Load(f)
		require.NoError(t, err, f)
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestTrainDefDefaults(t *testing.T) {
	e := TrainDef{ID: "X", DepartureOffset: 5, Priority: "FREIGHT"}.ToModel()
	assert.Equal(t, Reference.Add(5*time.Minute), e.Departure)
	assert.Equal(t, 10.0, e.Arrival.Sub(e.Departure).Minutes())
	assert.Equal(t, model.PriorityFreight, e.PriorityApplied)
	assert.Equal(t, model.PriorityPassenger, TrainDef{Priority: "VIP"}.ToModel().PriorityApplied)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load("no-file.yaml")
	assert.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(":"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	nameless := filepath.Join(dir, "nameless.yaml")
	require.NoError(t, os.WriteFile(nameless, []byte("trains: []\n"), 0o644))
	_, err = Load(nameless)
	assert.Error(t, err)
}
