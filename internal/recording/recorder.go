package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lolzio5/PiTrainer/internal/features"
	"github.com/lolzio5/PiTrainer/internal/motion"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/segment"
)

// FeatureRecord is one labelled training row.
type FeatureRecord struct {
	Session  string             `json:"session"`
	Exercise string             `json:"exercise"`
	Set      int                `json:"set"`
	Rep      int                `json:"rep"`
	Window   segment.Window     `json:"window"`
	Features map[string]float64 `json:"features"`
	// Score is the overall quality of the rep, -1 when it was excluded
	// from scoring.
	Score float64 `json:"score"`
}

// FeatureWriter appends FeatureRecords as JSON lines.
type FeatureWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	rows uint64
}

// NewFeatureWriter opens path for appending, creating it if needed.
func NewFeatureWriter(path string) (*FeatureWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("features open %s: %w", path, err)
	}
	return &FeatureWriter{file: f, enc: json.NewEncoder(f)}, nil
}

func (w *FeatureWriter) Write(rec FeatureRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("features write: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of records written.
func (w *FeatureWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

func (w *FeatureWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Labelled joins feature results with the scores of the same windows.
func Labelled(session, exercise string, set int, results []features.Result, report quality.SetReport) []FeatureRecord {
	scores := make(map[segment.Window]float64, len(report.Reps))
	for _, r := range report.Reps {
		scores[r.Window] = r.Overall
	}
	out := make([]FeatureRecord, 0, len(results))
	for i, r := range results {
		if r.Vector == nil {
			continue
		}
		score, ok := scores[r.Window]
		if !ok {
			score = -1
		}
		out = append(out, FeatureRecord{
			Session:  session,
			Exercise: exercise,
			Set:      set,
			Rep:      i + 1,
			Window:   r.Window,
			Features: r.Vector.Finite(),
			Score:    score,
		})
	}
	return out
}

// Recorder lays sets out under <dir>/<session>/.
type Recorder struct {
	dir string
}

func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recording dir %s: %w", dir, err)
	}
	return &Recorder{dir: dir}, nil
}

// SetPaths returns the motion and boundary files of one set.
func (r *Recorder) SetPaths(session string, set int, exercise string) (data, reps string) {
	base := filepath.Join(r.dir, session, fmt.Sprintf("set-%02d-%s", set, slug(exercise)))
	return base + ".csv", base + ".reps"
}

// SaveSet writes the set's motion, its live boundaries and its labelled
// features.
func (r *Recorder) SaveSet(session, exercise string, set int, snap motion.Snapshot, results []features.Result, report quality.SetReport) error {
	if err := os.MkdirAll(filepath.Join(r.dir, session), 0o755); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	dataPath, repsPath := r.SetPaths(session, set, exercise)

	if err := writeFile(dataPath, func(f *os.File) error { return WriteCSV(f, snap) }); err != nil {
		return err
	}
	if err := writeFile(repsPath, func(f *os.File) error { return WriteBoundaries(f, snap.Boundaries) }); err != nil {
		return err
	}

	fw, err := NewFeatureWriter(filepath.Join(r.dir, session, "features.jsonl"))
	if err != nil {
		return err
	}
	defer fw.Close()
	for _, rec := range Labelled(session, exercise, set, results, report) {
		if err := fw.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// LoadSet reads a recorded set with its boundaries. A missing boundary
// file gives a set without boundaries.
func LoadSet(dataPath string) (motion.Snapshot, error) {
	f, err := os.Open(dataPath)
	if err != nil {
		return motion.Snapshot{}, fmt.Errorf("recording open %s: %w", dataPath, err)
	}
	defer f.Close()
	snap, err := ReadCSV(f)
	if err != nil {
		return motion.Snapshot{}, fmt.Errorf("%s: %w", dataPath, err)
	}

	rf, err := os.Open(strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".reps")
	if os.IsNotExist(err) {
		return snap, nil
	}
	if err != nil {
		return motion.Snapshot{}, err
	}
	defer rf.Close()
	boundaries, err := ReadBoundaries(rf)
	if err != nil {
		return motion.Snapshot{}, err
	}
	return WithBoundaries(snap, boundaries)
}

func writeFile(path string, fill func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recording create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("recording write %s: %w", path, err)
	}
	return f.Close()
}

func slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}
