package backend

import (
	"context"
	"sync"
)

// Memory is an in-process Backend. It serves the bench setup without a
// broker and records everything published to it.
type Memory struct {
	mu       sync.Mutex
	state    State
	reps     []RepCount
	sets     []SetResult
	workouts []WorkoutSummary
}

func NewMemory() *Memory {
	return &Memory{state: State{Phase: PhaseIdle}}
}

// SetState changes what WorkoutState returns.
func (m *Memory) SetState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Memory) WorkoutState(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *Memory) PublishRepCount(_ context.Context, rc RepCount) error {
	m.mu.Lock()
	m.reps = append(m.reps, rc)
	m.mu.Unlock()
	return nil
}

func (m *Memory) PublishSet(_ context.Context, sr SetResult) error {
	m.mu.Lock()
	m.sets = append(m.sets, sr)
	m.mu.Unlock()
	return nil
}

func (m *Memory) PublishWorkout(_ context.Context, ws WorkoutSummary) error {
	m.mu.Lock()
	m.workouts = append(m.workouts, ws)
	m.mu.Unlock()
	return nil
}

func (m *Memory) RepCounts() []RepCount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RepCount(nil), m.reps...)
}

func (m *Memory) Sets() []SetResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SetResult(nil), m.sets...)
}

func (m *Memory) Workouts() []WorkoutSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WorkoutSummary(nil), m.workouts...)
}
