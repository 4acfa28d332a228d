package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klchiu/waops/action"
	"github.com/klchiu/waops/task"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	return s
}

func TestLoadTasksMissingFileCreatesEmptySnapshot(t *testing.T) {
	s := newTestStore(t)

	tasks, err := s.LoadTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)

	data, err := os.ReadFile(filepath.Join(s.dir, tasksFile))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestLoadRulesMissingFileCreatesEmptySnapshot(t *testing.T) {
	s := newTestStore(t)

	rules, err := s.LoadRules()
	require.NoError(t, err)
	assert.Empty(t, rules)

	data, err := os.ReadFile(filepath.Join(s.dir, rulesFile))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestTaskSnapshotRoundtrip(t *testing.T) {
	s := newTestStore(t)

	in := []task.Task{
		{
			ID:    "t-1",
			Title: "morning ping",
			Kind:  task.KindSendMessage,
			Mode:  task.ModeRepeat,
			Times: []string{"09:30"},
			Recurrence: task.Recurrence{
				Type: task.Weekly,
				Days: []int{1, 3, 5},
			},
			Target:  task.Target{Type: "user", ID: "15550001111", Name: "Ops"},
			Message: "good morning",
			Enabled: true,
		},
		{
			ID:      "t-2",
			Title:   "disk check",
			Kind:    task.KindRunCommand,
			Mode:    task.ModeOnce,
			Times:   []string{"23:15"},
			Target:  task.Target{Type: "group", ID: "12036304@g.us"},
			Command: "df -h /",
		},
	}
	require.NoError(t, s.SaveTasks(in))

	out, err := s.LoadTasks()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRuleSnapshotRoundtrip(t *testing.T) {
	s := newTestStore(t)

	in := []action.Rule{
		{
			ID:               "r-1",
			TriggerPattern:   "uptime",
			Source:           action.Source{Type: "user", ID: "15550001111"},
			Kind:             action.KindRunCommand,
			Command:          "uptime",
			ResponseTemplate: "{command_response_content}",
			Enabled:          true,
		},
	}
	require.NoError(t, s.SaveRules(in))

	out, err := s.LoadRules()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSaveOverwritesPrevious(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveTasks([]task.Task{{ID: "old"}}))
	require.NoError(t, s.SaveTasks([]task.Task{{ID: "new"}}))

	out, err := s.LoadTasks()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ID)

	// No temp files should survive a successful save.
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadCorruptSnapshotFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, tasksFile), []byte("{not json"), 0600))

	_, err := s.LoadTasks()
	assert.Error(t, err)
}

func TestNewCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	_, err := New(dir, zap.NewNop().Sugar())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
