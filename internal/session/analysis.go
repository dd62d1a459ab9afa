package session

import (
	"context"
	"errors"

	"github.com/lolzio5/PiTrainer/internal/backend"
	"github.com/lolzio5/PiTrainer/internal/features"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/segment"
)

// SetAnalysis is the offline result of one set.
type SetAnalysis struct {
	Windows  []segment.Window
	Features []features.Result
	Report   quality.SetReport
}

// Analyse segments a finished set, extracts the features of every
// repetition and scores them. Repetitions with a degenerate signal are
// excluded from scoring. It never fails: a set that cannot be segmented is
// reported with no reps.
func Analyse(fs FinishedSet, scorer *quality.Scorer) SetAnalysis {
	var windows []segment.Window
	seg, err := segment.New(fs.Exercise.Segment)
	if err == nil {
		windows, err = seg.Segment(fs.Snapshot, fs.Exercise.Counter.VelocityAxis)
	}
	if err != nil {
		log.Warnf("set %d of %s: segmentation: %v", fs.Set, fs.Exercise.Name, err)
	}

	results := features.ExtractAll(fs.Snapshot, windows)
	var degenerate []int
	for i, res := range results {
		if res.Err == nil {
			continue
		}
		log.Warnf("set %d rep %d [%d,%d): %v", fs.Set, i+1, res.Window.Start, res.Window.End, res.Err)
		if errors.Is(res.Err, features.ErrDegenerateSignal) {
			degenerate = append(degenerate, i)
		}
	}
	return SetAnalysis{
		Windows:  windows,
		Features: results,
		Report:   scorer.ScoreSet(fs.Snapshot, windows, degenerate...),
	}
}

func (r *Runner) analysisLoop() {
	for j := range r.jobs {
		switch {
		case j.set != nil:
			r.analyse(*j.set)
		case j.end != nil:
			r.finishWorkout(*j.end)
		}
	}
}

func (r *Runner) analyse(fs FinishedSet) {
	a := Analyse(fs, r.scorer)

	w, ok := r.workouts[fs.Session]
	if !ok {
		w = &Workout{Session: fs.Session, Device: fs.Device}
		r.workouts[fs.Session] = w
	}
	w.Add(fs.LiveCount, a.Report)

	log.Infof("device %s: set %d of %s: %d live reps, %d segmented, %s",
		fs.Device, fs.Set, fs.Exercise.Name, fs.LiveCount, len(a.Windows), a.Report.Feedback.Summary())

	rows := make([]backend.FeatureRow, 0, len(a.Features))
	for _, res := range a.Features {
		rows = append(rows, backend.NewFeatureRow(res))
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := r.backend.PublishSet(ctx, backend.SetResult{
		Device:    fs.Device,
		Session:   fs.Session,
		Exercise:  fs.Exercise.Name,
		Set:       fs.Set,
		LiveCount: fs.LiveCount,
		Report:    a.Report,
		Features:  rows,
		Time:      r.now(),
	})
	if err != nil {
		log.Errorf("device %s: publish set %d: %v", fs.Device, fs.Set, err)
	}

	if r.Recorder != nil {
		if err := r.Recorder.SaveSet(fs.Session, fs.Exercise.Name, fs.Set, fs.Snapshot, a.Features, a.Report); err != nil {
			log.Errorf("device %s: record set %d: %v", fs.Device, fs.Set, err)
		}
	}
	if r.Display != nil {
		r.Display.ShowFeedback(fs.Exercise.Name, a.Report.Feedback)
	}
}

func (r *Runner) finishWorkout(end workoutEnd) {
	w, ok := r.workouts[end.session]
	if !ok {
		w = &Workout{Session: end.session, Device: end.device}
	}
	delete(r.workouts, end.session)

	fb := w.Summary()
	log.Infof("device %s: workout %s: %d sets, %d reps, %s", end.device, end.session, w.Sets, w.Reps, fb.Summary())

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := r.backend.PublishWorkout(ctx, backend.WorkoutSummary{
		Device:   end.device,
		Session:  end.session,
		Sets:     w.Sets,
		Reps:     w.Reps,
		Feedback: fb,
		Buckets:  w.Buckets,
		Started:  end.started,
		Ended:    end.ended,
	})
	if err != nil {
		log.Errorf("device %s: publish workout: %v", end.device, err)
	}
	if r.Display != nil {
		r.Display.ShowIdle()
	}
}
