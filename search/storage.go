package search

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrUnknownStudy      = errors.New("study not found")
	ErrDirectionMismatch = errors.New("study exists with a different direction")
)

// Storage persists studies and their trials
type Storage interface {
	// CreateStudy creates the study, or resumes it when it exists with the same direction
	CreateStudy(ctx context.Context, name string, direction Direction) error
	// NextTrialNumber reserves the number of a new trial
	NextTrialNumber(ctx context.Context, study string) (int, error)
	SaveTrial(ctx context.Context, study string, trial FrozenTrial) error
	// Trials ordered by number
	Trials(ctx context.Context, study string) ([]FrozenTrial, error)
	Close() error
}

type memStudy struct {
	direction Direction
	trials    map[int]FrozenTrial
	next      int
}

// InMemoryStorage keeps studies for the lifetime of the process
type InMemoryStorage struct {
	studies map[string]*memStudy
	lock    *sync.Mutex
}

var _ Storage = &InMemoryStorage{}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		studies: make(map[string]*memStudy),
		lock:    new(sync.Mutex),
	}
}

func (s *InMemoryStorage) CreateStudy(_ context.Context, name string, direction Direction) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if st, ok := s.studies[name]; ok {
		if st.direction != direction {
			return errors.Wrap(ErrDirectionMismatch, name)
		}
		return nil
	}
	s.studies[name] = &memStudy{
		direction: direction,
		trials:    make(map[int]FrozenTrial),
	}
	return nil
}

func (s *InMemoryStorage) NextTrialNumber(_ context.Context, study string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	st, ok := s.studies[study]
	if !ok {
		return 0, errors.Wrap(ErrUnknownStudy, study)
	}
	n := st.next
	st.next++
	return n, nil
}

func (s *InMemoryStorage) SaveTrial(_ context.Context, study string, trial FrozenTrial) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	st, ok := s.studies[study]
	if !ok {
		return errors.Wrap(ErrUnknownStudy, study)
	}
	st.trials[trial.Number] = trial.Copy()
	return nil
}

func (s *InMemoryStorage) Trials(_ context.Context, study string) ([]FrozenTrial, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	st, ok := s.studies[study]
	if !ok {
		return nil, errors.Wrap(ErrUnknownStudy, study)
	}
	trials := make([]FrozenTrial, 0, len(st.trials))
	for _, t := range st.trials {
		trials = append(trials, t.Copy())
	}
	sort.Slice(trials, func(i, j int) bool { return trials[i].Number < trials[j].Number })
	return trials, nil
}

func (s *InMemoryStorage) Close() error { return nil }
