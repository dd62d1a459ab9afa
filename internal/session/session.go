// Package session runs workouts: it ingests samples for the active set,
// counts repetitions live and hands finished sets to analysis.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/exercise"
	"github.com/lolzio5/PiTrainer/internal/filter"
	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/motion"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/repcount"
)

var (
	ErrSessionExists = errors.New("session already open")
	ErrNotCounting   = errors.New("no set in progress")
)

// Options are the runtime settings shared by every session of a device.
type Options struct {
	Device            string
	Interval          time.Duration
	MagEvery          int
	Noise             filter.Noise
	MagWindow         int
	ReferenceWindow   int
	InactivityTimeout time.Duration
	PollInterval      time.Duration
	AnalysisQueue     int
	RestartBackoff    time.Duration
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Device:   cfg.Device.ID,
		Interval: cfg.Sampling.Interval,
		MagEvery: cfg.Sampling.MagEvery,
		Noise: filter.Noise{
			AccelVariance:       cfg.Kalman.AccelVariance,
			MeasurementVariance: cfg.Kalman.MeasurementVariance,
			VelocityVariance:    cfg.Kalman.VelocityVariance,
			PositionVariance:    cfg.Kalman.PositionVariance,
		},
		MagWindow:         cfg.Magnetometer.SmoothingWindow,
		ReferenceWindow:   cfg.Analysis.ReferenceWindow,
		InactivityTimeout: cfg.Session.InactivityTimeout,
		PollInterval:      cfg.Backend.PollInterval,
		AnalysisQueue:     cfg.Session.AnalysisQueue,
		RestartBackoff:    cfg.Session.RestartBackoff,
	}
}

// DT is the sampling period in seconds.
func (o Options) DT() float64 { return o.Interval.Seconds() }

// FinishedSet is what a set leaves behind for analysis. The snapshot shares
// nothing with the live stream.
type FinishedSet struct {
	Session   string
	Device    string
	Exercise  exercise.Config
	Set       int
	LiveCount uint32
	Snapshot  motion.Snapshot
}

// Session is one workout on one device. It belongs to the ingestion
// goroutine and is not safe for concurrent use.
type Session struct {
	ID      string
	Device  string
	Started time.Time

	opts         Options
	tracker      *filter.Tracker
	stream       *motion.Stream
	counter      *repcount.Counter
	exercise     exercise.Config
	set          int
	reps         uint32
	lastActivity time.Time
}

// New opens a workout without starting a set.
func New(opts Options, now time.Time) (*Session, error) {
	tracker, err := filter.NewTracker(opts.DT(), opts.Noise, opts.MagWindow)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Session{
		ID:           uuid.NewString(),
		Device:       opts.Device,
		Started:      now,
		opts:         opts,
		tracker:      tracker,
		stream:       motion.NewStream(int(time.Minute / max(opts.Interval, time.Millisecond))),
		lastActivity: now,
	}, nil
}

// StartSet begins a new set of ex. The filters restart from rest.
func (s *Session) StartSet(ex exercise.Config, now time.Time) error {
	counter, err := repcount.New(ex.Counter)
	if err != nil {
		return fmt.Errorf("session: exercise %q: %w", ex.Name, err)
	}
	counter.Start()
	s.counter = counter
	s.exercise = ex
	s.set++
	s.stream.Reset()
	s.tracker.Reset()
	s.lastActivity = now
	return nil
}

// Counting reports whether a set is in progress.
func (s *Session) Counting() bool {
	return s.counter != nil && s.counter.State() == repcount.Counting
}

// Exercise is the exercise of the current or last set.
func (s *Session) Exercise() exercise.Config { return s.exercise }

// Set is the 1-based number of the current or last set.
func (s *Session) Set() int { return s.set }

// Count is the live count of the current or last set.
func (s *Session) Count() uint32 {
	if s.counter == nil {
		return 0
	}
	return s.counter.Count()
}

// TotalReps counts live repetitions over every finished set.
func (s *Session) TotalReps() uint32 { return s.reps }

// Ingest filters one sample into the stream and updates the counter. It
// reports whether the sample completed a repetition.
func (s *Session) Ingest(sample imu.Sample) (bool, uint32, error) {
	if !s.Counting() {
		return false, s.Count(), ErrNotCounting
	}
	p, err := s.tracker.Step(sample)
	if err != nil {
		return false, s.Count(), err
	}
	idx := s.stream.Append(p)
	counted, n := s.counter.Update(p.Time, p.Vel, p.Mag)
	if counted {
		if err := s.stream.MarkBoundary(idx); err != nil {
			return false, n, err
		}
		s.lastActivity = p.Time
	}
	return counted, n, nil
}

// EndSet stops counting and freezes the set for analysis.
func (s *Session) EndSet(now time.Time) (FinishedSet, error) {
	if !s.Counting() {
		return FinishedSet{}, ErrNotCounting
	}
	s.counter.Stop()
	s.reps += s.counter.Count()
	s.lastActivity = now
	fs := FinishedSet{
		Session:   s.ID,
		Device:    s.Device,
		Exercise:  s.exercise,
		Set:       s.set,
		LiveCount: s.counter.Count(),
		Snapshot:  s.stream.Snapshot(),
	}
	s.stream.Reset()
	return fs, nil
}

// Discard drops the set in progress without analysis.
func (s *Session) Discard() {
	if s.counter != nil {
		s.counter.Stop()
	}
	s.stream.Reset()
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) { s.lastActivity = now }

// Inactive reports whether nothing happened for longer than the
// configured timeout.
func (s *Session) Inactive(now time.Time) bool {
	return s.opts.InactivityTimeout > 0 && now.Sub(s.lastActivity) > s.opts.InactivityTimeout
}

// Workout accumulates set results into a workout summary. It belongs to
// the analysis goroutine.
type Workout struct {
	Session  string
	Device   string
	Sets     int
	Reps     uint32
	Feedback []quality.Feedback
	Buckets  quality.Buckets
}

// Add folds one analysed set in. Sets without scored reps still count as
// sets.
func (w *Workout) Add(liveCount uint32, report quality.SetReport) {
	w.Sets++
	w.Reps += liveCount
	if !report.NoReps {
		w.Feedback = append(w.Feedback, report.Feedback)
	}
	w.Buckets = w.Buckets.Add(report.Buckets)
}

// Summary is the workout-level feedback.
func (w *Workout) Summary() quality.Feedback {
	return quality.Aggregate(w.Feedback...)
}
