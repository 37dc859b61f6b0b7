// Package fs provides a filesystem-backed task store: one JSON document
// per task, addressable through any afs-supported URL scheme. It makes the
// ledger durable across restarts.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/service/dao"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// Service implements a filesystem-based task store.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

var _ dao.Service[string, task.Task] = (*Service)(nil)

// Save persists a task as JSON.
func (s *Service) Save(ctx context.Context, t *task.Task) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task %v: %w", t.ID, err)
	}
	location := s.taskURL(t.ID)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save task to %v: %w", location, err)
	}
	return nil
}

// Load retrieves a task by id.
func (s *Service) Load(ctx context.Context, id string) (*task.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	location := s.taskURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check task %v: %w", location, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read task %v: %w", location, err)
	}
	ret := &task.Task{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %v: %w", location, err)
	}
	return ret, nil
}

// Delete removes a task document.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.taskURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check task %v: %w", location, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, location)
}

// List returns all stored tasks.
func (s *Service) List(ctx context.Context) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks at %v: %w", s.baseURL, err)
	}
	var out []*task.Task
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.URL(), ".json") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to read task %v: %w", object.URL(), err)
		}
		ret := &task.Task{}
		if err = json.Unmarshal(data, ret); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %v: %w", object.URL(), err)
		}
		out = append(out, ret)
	}
	return out, nil
}

func (s *Service) taskURL(id string) string {
	return url.Join(s.baseURL, id+".json")
}

// New creates a filesystem task store rooted at baseURL.
func New(fs afs.Service, baseURL string) *Service {
	return &Service{fs: fs, baseURL: baseURL}
}
