// Package store persists the task and rule collections as whole-file
// JSON snapshots. Every save is an atomic overwrite of the full
// collection; there is no incremental log.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/klchiu/waops/action"
	"github.com/klchiu/waops/errors"
	"github.com/klchiu/waops/task"
)

// Snapshot file names inside the data directory.
const (
	tasksFile = "tasks.json"
	rulesFile = "actions.json"
)

// Store handles snapshot persistence of tasks and reply rules.
type Store struct {
	dir string
	log *zap.SugaredLogger
}

// New creates a store rooted at the given data directory, creating the
// directory when missing.
func New(dir string, log *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}
	return &Store{dir: dir, log: log}, nil
}

// LoadTasks reads the task snapshot. A missing file yields an empty
// collection and creates the file, matching first-run behavior.
func (s *Store) LoadTasks() ([]task.Task, error) {
	tasks := []task.Task{}
	found, err := s.load(tasksFile, &tasks)
	if err != nil {
		return nil, err
	}
	if !found {
		if err := s.SaveTasks(tasks); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// SaveTasks atomically overwrites the task snapshot.
func (s *Store) SaveTasks(tasks []task.Task) error {
	return s.save(tasksFile, tasks)
}

// LoadRules reads the reply-rule snapshot.
func (s *Store) LoadRules() ([]action.Rule, error) {
	rules := []action.Rule{}
	found, err := s.load(rulesFile, &rules)
	if err != nil {
		return nil, err
	}
	if !found {
		if err := s.SaveRules(rules); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// SaveRules atomically overwrites the reply-rule snapshot.
func (s *Store) SaveRules(rules []action.Rule) error {
	return s.save(rulesFile, rules)
}

func (s *Store) load(name string, v interface{}) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Infow("Snapshot file missing, starting empty", "file", name)
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to read %s", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "failed to parse %s", name)
	}
	return true, nil
}

// save writes to a temp file in the same directory and renames it over
// the target, so readers never observe a torn snapshot.
func (s *Store) save(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", name)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file for %s", name)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to write %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to close temp file for %s", name)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to replace %s", name)
	}
	return nil
}
