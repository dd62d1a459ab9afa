// Copyright (c) 2026 The PiTrainer Authors
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/exercise"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/recording"
	"github.com/lolzio5/PiTrainer/internal/session"
)

// AnalyzeOptions select what RunAnalyze replays and how it reports.
type AnalyzeOptions struct {
	Exercise string
	// JSON prints the full report instead of the text summary.
	JSON bool
	// FeaturesPath, when set, receives the labelled features as JSON lines.
	FeaturesPath string
}

// RunAnalyze replays recorded sets through segmentation, feature
// extraction and scoring.
func RunAnalyze(cfg *config.Config, paths []string, opts AnalyzeOptions, out io.Writer) error {
	catalog, err := exercise.NewCatalog(cfg.Exercises)
	if err != nil {
		return err
	}
	ex, err := catalog.Resolve(opts.Exercise)
	if err != nil {
		return err
	}
	scorer, err := quality.NewScorer(quality.Config{
		ReferenceWindow: cfg.Analysis.ReferenceWindow,
		DT:              cfg.Sampling.DT(),
	})
	if err != nil {
		return err
	}

	var fw *recording.FeatureWriter
	if opts.FeaturesPath != "" {
		if fw, err = recording.NewFeatureWriter(opts.FeaturesPath); err != nil {
			return err
		}
		defer fw.Close()
	}

	var sets []quality.Feedback
	for i, path := range paths {
		snap, err := recording.LoadSet(path)
		if err != nil {
			return err
		}
		fs := session.FinishedSet{
			Session:   "replay",
			Exercise:  ex,
			Set:       i + 1,
			LiveCount: uint32(len(snap.Boundaries)),
			Snapshot:  snap,
		}
		a := session.Analyse(fs, scorer)
		if !a.Report.NoReps {
			sets = append(sets, a.Report.Feedback)
		}

		if fw != nil {
			for _, rec := range recording.Labelled(fs.Session, ex.Name, fs.Set, a.Features, a.Report) {
				if err := fw.Write(rec); err != nil {
					return err
				}
			}
		}

		if opts.JSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(a.Report); err != nil {
				return err
			}
			continue
		}
		printReport(out, path, snap.Len(), fs.LiveCount, a)
	}

	if len(paths) > 1 && !opts.JSON {
		fmt.Fprintf(out, "\nall sets: %s\n", quality.Aggregate(sets...).Summary())
	}
	return nil
}

func printReport(out io.Writer, path string, samples int, live uint32, a session.SetAnalysis) {
	r := a.Report
	fmt.Fprintf(out, "%s: %d samples, %d live boundaries, %d reps segmented\n", path, samples, live, len(a.Windows))
	if r.NoReps {
		fmt.Fprintf(out, "  %s\n", r.Feedback.DistanceText)
		return
	}
	for i, rep := range r.Reps {
		fmt.Fprintf(out, "  rep %2d [%5d,%5d)  overall %5.1f  range %5.1f  pace %5.1f  smooth %5.1f\n",
			i+1, rep.Window.Start, rep.Window.End, rep.Overall, rep.Distance, rep.Time, rep.Shakiness)
	}
	if len(r.Excluded) > 0 {
		fmt.Fprintf(out, "  excluded windows: %v\n", r.Excluded)
	}
	fb := r.Feedback
	fmt.Fprintf(out, "  %s\n  %s\n  %s\n  %s\n", fb.Summary(), fb.DistanceText, fb.TimeText, fb.ShakinessText)
	b := r.Buckets
	fmt.Fprintf(out, "  perfect=%d good=%d fair=%d poor=%d\n", b.Perfect, b.Good, b.Fair, b.Poor)
}
