package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lolzio5/PiTrainer/internal/backend"
	"github.com/lolzio5/PiTrainer/internal/exercise"
	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/logger"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/recording"
)

var log = logger.New("session")

// publishTimeout bounds every call into the backend.
const publishTimeout = 5 * time.Second

// Display shows progress on the device. It is called from both the
// sampling and the analysis goroutine. Implementations log their own
// errors.
type Display interface {
	ShowCount(exercise string, set int, reps uint32)
	ShowFeedback(exercise string, fb quality.Feedback)
	ShowIdle()
}

// Runner drives one device: it polls the backend for the workout state,
// samples the sensor on a ticker and analyses finished sets on a second
// goroutine.
type Runner struct {
	opts     Options
	sensor   imu.Sensor
	backend  backend.Backend
	catalog  *exercise.Catalog
	registry *Registry
	scorer   *quality.Scorer

	// Optional collaborators, set before Run.
	Recorder *recording.Recorder
	Display  Display

	now  func() time.Time
	jobs chan job

	tick       int
	sensorErrs int
	lastState  string
	// stale is a state that timed out; it is ignored until the backend
	// moves on.
	stale string

	workouts map[string]*Workout // analysis goroutine only
}

type job struct {
	set *FinishedSet
	end *workoutEnd
}

type workoutEnd struct {
	session string
	device  string
	started time.Time
	ended   time.Time
}

func NewRunner(opts Options, sensor imu.Sensor, be backend.Backend, catalog *exercise.Catalog, registry *Registry) (*Runner, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("session: sampling interval must be positive, got %s", opts.Interval)
	}
	if opts.MagEvery < 1 {
		opts.MagEvery = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.AnalysisQueue < 1 {
		opts.AnalysisQueue = 1
	}
	scorer, err := quality.NewScorer(quality.Config{ReferenceWindow: opts.ReferenceWindow, DT: opts.DT()})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Runner{
		opts:     opts,
		sensor:   sensor,
		backend:  be,
		catalog:  catalog,
		registry: registry,
		scorer:   scorer,
		now:      time.Now,
		jobs:     make(chan job, opts.AnalysisQueue),
		workouts: make(map[string]*Workout),
	}, nil
}

// Run blocks until ctx is cancelled. A failing or panicking loop ends the
// workout in progress and starts over from Idle after the back-off.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.analysisLoop()
	}()

	for {
		err := r.loop(ctx)
		if ctx.Err() != nil {
			break
		}
		log.Errorf("device %s: %v; restarting in %s", r.opts.Device, err, r.opts.RestartBackoff)
		r.endWorkout(false)

		select {
		case <-ctx.Done():
		case <-time.After(r.opts.RestartBackoff):
		}
		if ctx.Err() != nil {
			break
		}
	}

	r.endWorkout(true)
	close(r.jobs)
	wg.Wait()
	log.Infof("device %s: stopped", r.opts.Device)
	return nil
}

func (r *Runner) loop(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	sample := time.NewTicker(r.opts.Interval)
	defer sample.Stop()
	poll := time.NewTicker(r.opts.PollInterval)
	defer poll.Stop()

	if err := r.poll(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
			if err := r.poll(ctx); err != nil {
				return err
			}
		case <-sample.C:
			if err := r.step(ctx); err != nil {
				return err
			}
		}
	}
}

// poll applies the workout state requested by the backend. Backend errors
// are logged and retried on the next poll.
func (r *Runner) poll(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	state, err := r.backend.WorkoutState(pctx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("device %s: workout state: %v", r.opts.Device, err)
		}
		return nil
	}
	r.lastState = state.String()

	if r.stale != "" {
		if r.lastState == r.stale {
			return nil
		}
		r.stale = ""
	}

	now := r.now()
	s, open := r.registry.Get(r.opts.Device)

	switch state.Phase {
	case backend.PhaseIdle:
		if open {
			r.endWorkout(true)
		}
	case backend.PhasePseudoIdle:
		if open && s.Counting() {
			r.endSet(s, now)
		}
	case backend.PhaseExercise:
		ex, err := r.catalog.Resolve(state.Exercise)
		if err != nil {
			log.Warnf("device %s: %v", r.opts.Device, err)
			return nil
		}
		if !open {
			if s, err = r.registry.Open(r.opts, now); err != nil {
				return err
			}
			log.Infof("device %s: workout %s started", r.opts.Device, s.ID)
		}
		if s.Counting() && s.Exercise().Name == ex.Name {
			return nil
		}
		if s.Counting() {
			r.endSet(s, now)
		}
		if err := s.StartSet(ex, now); err != nil {
			return err
		}
		r.tick = 0
		log.Infof("device %s: set %d of %s started", r.opts.Device, s.Set(), ex.Name)
		if r.Display != nil {
			r.Display.ShowCount(ex.Name, s.Set(), 0)
		}
	}
	return nil
}

// step takes one sample. Bus faults skip the tick; anything else ends the
// loop.
func (r *Runner) step(ctx context.Context) error {
	s, open := r.registry.Get(r.opts.Device)
	if !open {
		return nil
	}
	now := r.now()
	if s.Inactive(now) {
		log.Warnf("device %s: no activity for %s, back to idle", r.opts.Device, r.opts.InactivityTimeout)
		r.stale = r.lastState
		r.endWorkout(false)
		return nil
	}
	if !s.Counting() {
		return nil
	}

	r.tick++
	accel, err := r.sensor.ReadAcceleration()
	switch {
	case errors.Is(err, imu.ErrNoSample):
		return nil
	case errors.Is(err, imu.ErrSensorIO):
		r.sensorFault(err)
		return nil
	case err != nil:
		return err
	}
	sample := imu.Sample{Time: now, Accel: accel}
	healthy := true

	if r.tick%r.opts.MagEvery == 0 {
		mag, err := r.sensor.ReadMagneticField()
		switch {
		case err == nil:
			sample.Mag = mag
			sample.HasMag = true
		case errors.Is(err, imu.ErrNoSample):
		case errors.Is(err, imu.ErrSensorIO):
			// The sample still counts; the field is carried forward.
			r.sensorFault(err)
			healthy = false
		default:
			return err
		}
	}
	if healthy && r.sensorErrs > 0 {
		log.Infof("device %s: sensor recovered after %d failed reads", r.opts.Device, r.sensorErrs)
		r.sensorErrs = 0
	}

	counted, n, err := s.Ingest(sample)
	if err != nil {
		return fmt.Errorf("device %s: %w", r.opts.Device, err)
	}
	if !counted {
		return nil
	}

	ex := s.Exercise().Name
	pctx, cancel := context.WithTimeout(ctx, r.opts.PollInterval)
	defer cancel()
	err = r.backend.PublishRepCount(pctx, backend.RepCount{
		Device:   r.opts.Device,
		Session:  s.ID,
		Exercise: ex,
		Set:      s.Set(),
		Count:    n,
		Time:     now,
	})
	if err != nil {
		log.Warnf("device %s: publish rep %d: %v", r.opts.Device, n, err)
	}
	if r.Display != nil {
		r.Display.ShowCount(ex, s.Set(), n)
	}
	return nil
}

func (r *Runner) sensorFault(err error) {
	r.sensorErrs++
	if r.sensorErrs == 1 || r.sensorErrs%100 == 0 {
		log.Warnf("device %s: skipping tick (%d failed reads): %v", r.opts.Device, r.sensorErrs, err)
	}
}

// endSet freezes the set in progress and queues it for analysis.
func (r *Runner) endSet(s *Session, now time.Time) {
	fs, err := s.EndSet(now)
	if err != nil {
		return
	}
	log.Infof("device %s: set %d of %s ended with %d reps (%d samples)",
		r.opts.Device, fs.Set, fs.Exercise.Name, fs.LiveCount, fs.Snapshot.Len())
	r.jobs <- job{set: &fs}
}

// endWorkout closes the device's session. With analyse set, a set in
// progress is analysed first; otherwise it is discarded.
func (r *Runner) endWorkout(analyse bool) {
	s, ok := r.registry.Close(r.opts.Device)
	if !ok {
		return
	}
	now := r.now()
	if analyse {
		r.endSet(s, now)
	} else {
		s.Discard()
	}
	log.Infof("device %s: workout %s ended after %d sets", r.opts.Device, s.ID, s.Set())
	r.jobs <- job{end: &workoutEnd{session: s.ID, device: s.Device, started: s.Started, ended: now}}
}
