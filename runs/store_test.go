package runs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/apptrelay/models"
)

func finishedRun(id string, at time.Time) *models.Run {
	return &models.Run{ID: id, Status: models.RunCompleted, CreatedAt: at, FinishedAt: &at}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(10, time.Hour)
	s.Put(&models.Run{ID: "a", Status: models.RunQueued})

	got, ok := s.Get("a")
	require.True(t, ok)
	got.Status = models.RunFailed

	again, _ := s.Get("a")
	assert.Equal(t, models.RunQueued, again.Status)
}

func TestStore_Update(t *testing.T) {
	s := NewStore(10, time.Hour)
	s.Put(&models.Run{ID: "a", Status: models.RunQueued})

	assert.True(t, s.Update("a", func(r *models.Run) { r.Status = models.RunRunning }))
	assert.False(t, s.Update("missing", func(r *models.Run) {}))

	got, _ := s.Get("a")
	assert.Equal(t, models.RunRunning, got.Status)
}

func TestStore_EvictsOldestFinishedAtCapacity(t *testing.T) {
	base := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	s := NewStore(3, time.Hour)
	s.Put(finishedRun("old", base))
	s.Put(finishedRun("newer", base.Add(time.Minute)))
	s.Put(&models.Run{ID: "running", Status: models.RunRunning})

	s.Put(&models.Run{ID: "fresh", Status: models.RunQueued})

	_, ok := s.Get("old")
	assert.False(t, ok)
	for _, id := range []string{"newer", "running", "fresh"} {
		_, ok := s.Get(id)
		assert.True(t, ok, id)
	}
}

func TestStore_Sweep(t *testing.T) {
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	s := NewStore(10, time.Hour)
	s.Put(finishedRun("expired", now.Add(-2*time.Hour)))
	s.Put(finishedRun("recent", now.Add(-10*time.Minute)))
	s.Put(&models.Run{ID: "queued", Status: models.RunQueued, CreatedAt: now.Add(-3 * time.Hour)})

	assert.Equal(t, 1, s.Sweep(now))
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("expired")
	assert.False(t, ok)
}
