// Package memory provides an in-memory task store for unit tests and
// single-instance deployments.
package memory

import (
	"context"
	"sync"

	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/service/dao"
)

// Service implements a thread-safe in-memory task store.
type Service struct {
	tasks map[string]*task.Task
	mux   sync.RWMutex
}

var _ dao.Service[string, task.Task] = (*Service)(nil)

func (s *Service) Save(_ context.Context, t *task.Task) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	s.tasks[t.ID] = t
	s.mux.Unlock()
	return nil
}

func (s *Service) Load(_ context.Context, id string) (*task.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	t, ok := s.tasks[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return t, nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Service) List(_ context.Context) ([]*task.Task, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

func New() *Service {
	return &Service{tasks: map[string]*task.Task{}}
}
