// Package store persists the project registry, per-task documents, and
// per-task history logs under a single data directory, the way the
// teacher's internal/config persists its JSON registries: whole-file
// rewrites guarded by a lock, tolerant reads.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/orangeerr"
)

// Store is the filesystem-backed state store rooted at a data directory.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) projectsPath() string { return filepath.Join(s.Dir, "projects.json") }
func (s *Store) projectsLockPath() string { return s.projectsPath() + ".lock" }

func (s *Store) taskDir(project, id string) string {
	return filepath.Join(s.Dir, "tasks", project, id)
}
func (s *Store) taskPath(project, id string) string {
	return filepath.Join(s.taskDir(project, id), "TASK.md")
}
func (s *Store) historyPath(project, id string) string {
	return filepath.Join(s.taskDir(project, id), "history.jsonl")
}

// WorkspacesDir returns D/workspaces, the root the pool creates slot
// directories under.
func (s *Store) WorkspacesDir() string { return filepath.Join(s.Dir, "workspaces") }

// ---- Projects ----

// withProjectsLock runs fn while holding an exclusive flock on
// projects.json.lock, serializing registry writes across processes.
func (s *Store) withProjectsLock(fn func() error) error {
	lock := flock.New(s.projectsLockPath())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking project registry: %w", err)
	}
	defer lock.Unlock()
	return fn()
}

// LoadProjects reads the full project registry. A missing file is treated
// as an empty registry.
func (s *Store) LoadProjects() ([]model.Project, error) {
	data, err := os.ReadFile(s.projectsPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading project registry: %w", err)
	}
	var projects []model.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parsing project registry: %w", err)
	}
	return projects, nil
}

func (s *Store) saveProjectsLocked(projects []model.Project) error {
	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project registry: %w", err)
	}
	tmp := s.projectsPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing project registry: %w", err)
	}
	return os.Rename(tmp, s.projectsPath())
}

// AddProject registers a new project. Fails with DuplicateProjectErr if the
// name or path is already registered.
func (s *Store) AddProject(p model.Project) error {
	return s.withProjectsLock(func() error {
		projects, err := s.LoadProjects()
		if err != nil {
			return err
		}
		for _, existing := range projects {
			if existing.Name == p.Name || existing.Path == p.Path {
				return &orangeerr.DuplicateProjectErr{Name: p.Name}
			}
		}
		if p.PoolSize <= 0 {
			p.PoolSize = model.DefaultPoolSize
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		projects = append(projects, p)
		return s.saveProjectsLocked(projects)
	})
}

// GetProject returns a project by name.
func (s *Store) GetProject(name string) (model.Project, error) {
	projects, err := s.LoadProjects()
	if err != nil {
		return model.Project{}, err
	}
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Project{}, &orangeerr.InvalidArgumentErr{Msg: "project not found: " + name}
}

// UpdateProject applies mutate to the named project and persists the
// result.
func (s *Store) UpdateProject(name string, mutate func(*model.Project)) error {
	return s.withProjectsLock(func() error {
		projects, err := s.LoadProjects()
		if err != nil {
			return err
		}
		for i := range projects {
			if projects[i].Name == name {
				mutate(&projects[i])
				return s.saveProjectsLocked(projects)
			}
		}
		return &orangeerr.InvalidArgumentErr{Msg: "project not found: " + name}
	})
}

// RemoveProject deletes a project from the registry. It never touches
// task documents or workspace directories.
func (s *Store) RemoveProject(name string) error {
	return s.withProjectsLock(func() error {
		projects, err := s.LoadProjects()
		if err != nil {
			return err
		}
		out := projects[:0]
		found := false
		for _, p := range projects {
			if p.Name == name {
				found = true
				continue
			}
			out = append(out, p)
		}
		if !found {
			return &orangeerr.InvalidArgumentErr{Msg: "project not found: " + name}
		}
		return s.saveProjectsLocked(out)
	})
}

// ---- Tasks ----

// SaveTask writes a task document atomically (write-to-temp, then rename
// within the task's own directory), so readers never observe a
// half-written frontmatter block.
func (s *Store) SaveTask(t *model.Task) error {
	dir := s.taskDir(t.Project, t.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating task directory: %w", err)
	}
	data, err := EncodeTask(t)
	if err != nil {
		return err
	}
	path := s.taskPath(t.Project, t.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing task document: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadTask reads and decodes one task document.
func (s *Store) LoadTask(project, id string) (*model.Task, error) {
	data, err := os.ReadFile(s.taskPath(project, id))
	if os.IsNotExist(err) {
		return nil, &orangeerr.TaskNotFoundErr{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading task document: %w", err)
	}
	return DecodeTask(data)
}

// DeleteTask removes a task's on-disk document and history directory. Callers
// are expected to have already checked the task is in a terminal status.
func (s *Store) DeleteTask(project, id string) error {
	if err := os.RemoveAll(s.taskDir(project, id)); err != nil {
		return fmt.Errorf("deleting task directory: %w", err)
	}
	return nil
}

// ListTasks returns tasks for a project (or all projects if project is
// ""), ordered by created_at descending. If all is false, terminal tasks
// (done, cancelled) are excluded.
func (s *Store) ListTasks(project string, all bool) ([]*model.Task, error) {
	root := filepath.Join(s.Dir, "tasks")
	var projectDirs []string
	if project != "" {
		projectDirs = []string{project}
	} else {
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				projectDirs = append(projectDirs, e.Name())
			}
		}
	}

	var tasks []*model.Task
	for _, proj := range projectDirs {
		entries, err := os.ReadDir(filepath.Join(root, proj))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing tasks for %s: %w", proj, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			t, err := s.LoadTask(proj, e.Name())
			if err != nil {
				continue // tolerant of a task directory without a valid TASK.md
			}
			if !all && t.Status.Terminal() {
				continue
			}
			tasks = append(tasks, t)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// ---- History ----

// AppendHistory appends one event to a task's history.jsonl, serialized by
// a flock so concurrent writers never interleave lines.
func (s *Store) AppendHistory(project, id string, ev model.Event) error {
	dir := s.taskDir(project, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating task directory: %w", err)
	}
	path := s.historyPath(project, id)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking history log: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening history log: %w", err)
	}
	defer f.Close()

	line, err := ev.MarshalLine()
	if err != nil {
		return fmt.Errorf("encoding history event: %w", err)
	}
	_, err = f.Write(line)
	return err
}

// ReadHistory reads all events for a task, in append order.
func (s *Store) ReadHistory(project, id string) ([]model.Event, error) {
	data, err := os.ReadFile(s.historyPath(project, id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history log: %w", err)
	}
	var events []model.Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var ev model.Event
		if err := dec.Decode(&ev); err != nil {
			break
		}
		events = append(events, ev)
	}
	return events, nil
}
