package routine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYaml = `
routines:
  - id: wake
    title: Wake up
    kind: wake
    time: "07:00"
    days: [weekdays]
    duration: 15
  - id: gym
    title: Gym
    kind: exercise
    time: "18:30"
    days: [tue, Thursday, weekends]
    duration: 60
    validFrom: 2024-01-01
    enabled: false
`

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYaml), 0o600))

	rules, err := LoadSeedFile(path)

	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "wake", rules[0].ID)
	assert.Equal(t, weekdays, rules[0].DaysOfWeek)
	assert.True(t, rules[0].Enabled)
	assert.Equal(t, 7*60, rules[0].TimeOfDay.Minutes())

	assert.Equal(t, KindExercise, rules[1].Kind)
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Thursday, time.Saturday, time.Sunday}, rules[1].DaysOfWeek)
	assert.False(t, rules[1].Enabled)
	assert.Equal(t, "2024-01-01", rules[1].ValidFrom.Key())
}

func TestParseSeed_Errors(t *testing.T) {
	tests := map[string]string{
		"bad time":     "routines:\n  - {id: a, title: A, time: '7am', days: [mon], duration: 10}\n",
		"bad weekday":  "routines:\n  - {id: a, title: A, time: '07:00', days: [someday], duration: 10}\n",
		"duplicate id": "routines:\n  - {id: a, title: A, time: '07:00', days: [mon], duration: 10}\n  - {id: a, title: B, time: '08:00', days: [mon], duration: 10}\n",
		"no title":     "routines:\n  - {id: a, time: '07:00', days: [mon], duration: 10}\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeed([]byte(data))
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}

	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
