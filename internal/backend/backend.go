// Package backend is the device's view of the workout service: it reads the
// requested workout state and receives counts, set results and summaries.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lolzio5/PiTrainer/internal/features"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/segment"
)

// State strings exchanged with the service.
const (
	IdleState       = "Idle"
	PseudoIdleState = "Pseudo Idle"
)

// Phase is the decoded form of a state string.
type Phase int

const (
	// PhaseIdle ends the workout.
	PhaseIdle Phase = iota
	// PhasePseudoIdle ends the current set and keeps the workout open.
	PhasePseudoIdle
	// PhaseExercise starts or continues a set of State.Exercise.
	PhaseExercise
)

// State is the workout state requested by the service.
type State struct {
	Phase    Phase
	Exercise string
}

// ParseState decodes a raw state string. Anything that is not one of the
// two idle markers is taken as an exercise name.
func ParseState(raw string) State {
	s := strings.TrimSpace(raw)
	switch {
	case s == "" || strings.EqualFold(s, IdleState):
		return State{Phase: PhaseIdle}
	case strings.EqualFold(s, PseudoIdleState):
		return State{Phase: PhasePseudoIdle}
	}
	return State{Phase: PhaseExercise, Exercise: s}
}

func (s State) String() string {
	switch s.Phase {
	case PhasePseudoIdle:
		return PseudoIdleState
	case PhaseExercise:
		return s.Exercise
	}
	return IdleState
}

// Backend is implemented by the MQTT client and by Memory.
type Backend interface {
	WorkoutState(ctx context.Context) (State, error)
	PublishRepCount(ctx context.Context, rc RepCount) error
	PublishSet(ctx context.Context, sr SetResult) error
	PublishWorkout(ctx context.Context, ws WorkoutSummary) error
}

// RepCount is sent every time the live counter advances.
type RepCount struct {
	Device   string    `json:"device"`
	Session  string    `json:"session"`
	Exercise string    `json:"exercise"`
	Set      int       `json:"set"`
	Count    uint32    `json:"count"`
	Time     time.Time `json:"time"`
}

// FeatureRow is one repetition's feature vector. Statistics that are not
// finite are left out of Values and the axis is listed in Degenerate.
type FeatureRow struct {
	Window     segment.Window     `json:"window"`
	Values     map[string]float64 `json:"values"`
	Degenerate []string           `json:"degenerate,omitempty"`
}

// NewFeatureRow flattens a feature result for transport.
func NewFeatureRow(r features.Result) FeatureRow {
	row := FeatureRow{Window: r.Window}
	if r.Vector != nil {
		row.Values = r.Vector.Finite()
	}
	var de *features.DegenerateError
	if errors.As(r.Err, &de) {
		row.Degenerate = de.Axes
	}
	return row
}

// SetResult is the analysis of one finished set.
type SetResult struct {
	Device    string            `json:"device"`
	Session   string            `json:"session"`
	Exercise  string            `json:"exercise"`
	Set       int               `json:"set"`
	LiveCount uint32            `json:"live_count"`
	Report    quality.SetReport `json:"report"`
	Features  []FeatureRow      `json:"features"`
	Time      time.Time         `json:"time"`
}

// WorkoutSummary closes a workout.
type WorkoutSummary struct {
	Device   string           `json:"device"`
	Session  string           `json:"session"`
	Sets     int              `json:"sets"`
	Reps     uint32           `json:"reps"`
	Feedback quality.Feedback `json:"feedback"`
	Buckets  quality.Buckets  `json:"buckets"`
	Started  time.Time        `json:"started"`
	Ended    time.Time        `json:"ended"`
}
