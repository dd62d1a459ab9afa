// Package recording stores finished sets on disk so they can be replayed
// through the analysis, and exports labelled features for training.
package recording

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	"github.com/lolzio5/PiTrainer/internal/motion"
)

var ErrMalformed = errors.New("malformed recording")

// Header is the column layout of a set recording. Time is in seconds from
// the first sample.
var Header = []string{
	"time",
	"accel_x", "accel_y", "accel_z",
	"vel_x", "vel_y", "vel_z",
	"pos_x", "pos_y", "pos_z",
	"mag_x", "mag_y", "mag_z",
}

// Epoch is the time base given to replayed recordings.
var Epoch = time.Unix(0, 0).UTC()

// WriteCSV writes every point of snap, header first.
func WriteCSV(w io.Writer, snap motion.Snapshot) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	secs := snap.Seconds()
	row := make([]string, len(Header))
	for i, p := range snap.Points {
		row[0] = formatFloat(secs[i])
		col := 1
		for _, q := range motion.Quantities {
			v := p.Vector(q)
			row[col] = formatFloat(v.X)
			row[col+1] = formatFloat(v.Y)
			row[col+2] = formatFloat(v.Z)
			col += 3
		}
		_ = cw.Write(row) // error is buffered; checked on Flush
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return bw.Flush()
}

// ReadCSV reads a recording back. A header row is optional.
func ReadCSV(r io.Reader) (motion.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true

	stream := motion.NewStream(0)
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return motion.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line++
		if line == 1 && rec[0] == Header[0] {
			continue
		}
		var vals [13]float64
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return motion.Snapshot{}, fmt.Errorf("%w: line %d column %s: %v", ErrMalformed, line, Header[i], err)
			}
			vals[i] = v
		}
		stream.Append(motion.Point{
			Time:  Epoch.Add(time.Duration(math.Round(vals[0] * float64(time.Second)))),
			Accel: r3.Vector{X: vals[1], Y: vals[2], Z: vals[3]},
			Vel:   r3.Vector{X: vals[4], Y: vals[5], Z: vals[6]},
			Pos:   r3.Vector{X: vals[7], Y: vals[8], Z: vals[9]},
			Mag:   r3.Vector{X: vals[10], Y: vals[11], Z: vals[12]},
		})
	}
	return stream.Snapshot(), nil
}

// WriteBoundaries writes the live rep boundaries as space separated indices.
func WriteBoundaries(w io.Writer, boundaries []int) error {
	parts := make([]string, len(boundaries))
	for i, b := range boundaries {
		parts[i] = strconv.Itoa(b)
	}
	_, err := io.WriteString(w, strings.Join(parts, " ")+"\n")
	return err
}

// ReadBoundaries parses what WriteBoundaries wrote.
func ReadBoundaries(r io.Reader) ([]int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(raw))
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: boundary %q", ErrMalformed, f)
		}
		out = append(out, v)
	}
	return out, nil
}

// WithBoundaries marks boundaries on a copy of snap, checking the same
// ordering rules as a live stream.
func WithBoundaries(snap motion.Snapshot, boundaries []int) (motion.Snapshot, error) {
	s := motion.NewStream(snap.Len())
	for _, p := range snap.Points {
		s.Append(p)
	}
	for _, b := range boundaries {
		if err := s.MarkBoundary(b); err != nil {
			return motion.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return s.Snapshot(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
