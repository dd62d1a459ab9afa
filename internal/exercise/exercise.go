// Package exercise resolves exercise names to their counting and
// segmentation tuning.
package exercise

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/repcount"
	"github.com/lolzio5/PiTrainer/internal/segment"
)

var ErrUnknownExercise = errors.New("unknown exercise")

// Exercise is the closed set of movements the device knows about.
// Entries added through the config file are Custom.
type Exercise int

const (
	Custom Exercise = iota
	Rows
	LatPulldown
	TricepsExtension
)

func (e Exercise) String() string {
	switch e {
	case Rows:
		return "Rows"
	case LatPulldown:
		return "Lat Pulldowns"
	case TricepsExtension:
		return "Triceps Extension"
	}
	return "Custom"
}

// Config is everything a session needs to know about one exercise.
type Config struct {
	Exercise Exercise
	Name     string
	Counter  repcount.Config
	Segment  segment.Config
}

func (c Config) Validate() error {
	if err := c.Counter.Validate(); err != nil {
		return fmt.Errorf("exercise %q: %w", c.Name, err)
	}
	if err := c.Segment.Validate(); err != nil {
		return fmt.Errorf("exercise %q: %w", c.Name, err)
	}
	return nil
}

func builtin() []struct {
	cfg     Config
	aliases []string
} {
	rowsSeg := segment.DefaultConfig()
	rowsSeg.MinPeakHeight = 0.02
	pulldownSeg := segment.DefaultConfig()
	pulldownSeg.MinPeakHeight = 0.125

	return []struct {
		cfg     Config
		aliases []string
	}{
		{
			cfg: Config{
				Exercise: Rows,
				Name:     Rows.String(),
				Counter: repcount.Config{
					VelocityAxis:      imu.X,
					MagAxis:           imu.Z,
					VelocityThreshold: 0.325,
					MagThreshold:      -40,
					Debounce:          1250 * time.Millisecond,
				},
				Segment: rowsSeg,
			},
			aliases: []string{"Seated Cable Rows"},
		},
		{
			cfg: Config{
				Exercise: LatPulldown,
				Name:     LatPulldown.String(),
				Counter: repcount.Config{
					VelocityAxis:      imu.X,
					MagAxis:           imu.X,
					VelocityThreshold: 0.75,
					Debounce:          time.Second,
				},
				Segment: pulldownSeg,
			},
			aliases: []string{"Lat Pulldown"},
		},
		{
			cfg: Config{
				Exercise: TricepsExtension,
				Name:     TricepsExtension.String(),
				Counter: repcount.Config{
					VelocityAxis:      imu.Z,
					MagAxis:           imu.Z,
					VelocityThreshold: 0.5,
					Debounce:          time.Second,
				},
				Segment: segment.DefaultConfig(),
			},
			aliases: []string{"Triceps Extensions"},
		},
	}
}

// Catalog maps exercise names and aliases, case-insensitively, to configs.
type Catalog struct {
	byName map[string]Config
}

// NewCatalog holds the built-in exercises plus the configured ones. A
// configured entry with a built-in name replaces it.
func NewCatalog(entries []config.ExerciseConfig) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Config)}
	for _, b := range builtin() {
		c.add(b.cfg, b.aliases)
	}
	for _, e := range entries {
		cfg, err := fromConfig(e)
		if err != nil {
			return nil, err
		}
		if existing, ok := c.byName[key(e.Name)]; ok {
			cfg.Exercise = existing.Exercise
		}
		c.add(cfg, e.Aliases)
	}
	return c, nil
}

func (c *Catalog) add(cfg Config, aliases []string) {
	c.byName[key(cfg.Name)] = cfg
	for _, a := range aliases {
		c.byName[key(a)] = cfg
	}
}

// Resolve looks an exercise up by name or alias.
func (c *Catalog) Resolve(name string) (Config, error) {
	cfg, ok := c.byName[key(name)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownExercise, name)
	}
	return cfg, nil
}

// Names lists every canonical exercise name, sorted.
func (c *Catalog) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, cfg := range c.byName {
		if !seen[cfg.Name] {
			seen[cfg.Name] = true
			names = append(names, cfg.Name)
		}
	}
	sort.Strings(names)
	return names
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func fromConfig(e config.ExerciseConfig) (Config, error) {
	velAxis, err := axisOrDefault(e.VelocityAxis, imu.X)
	if err != nil {
		return Config{}, fmt.Errorf("exercise %q velocity_axis: %w", e.Name, err)
	}
	magAxis, err := axisOrDefault(e.MagAxis, velAxis)
	if err != nil {
		return Config{}, fmt.Errorf("exercise %q mag_axis: %w", e.Name, err)
	}

	seg := segment.DefaultConfig()
	overlay(&seg.SmoothWindow, e.Segment.SmoothWindow)
	overlay(&seg.MinPeakHeight, e.Segment.MinPeakHeight)
	overlay(&seg.PositiveK, e.Segment.PositiveK)
	overlay(&seg.NegativeK, e.Segment.NegativeK)
	overlay(&seg.CeilingRatio, e.Segment.CeilingRatio)
	overlay(&seg.DedupWindow, e.Segment.DedupWindow)

	cfg := Config{
		Exercise: Custom,
		Name:     strings.TrimSpace(e.Name),
		Counter: repcount.Config{
			VelocityAxis:      velAxis,
			MagAxis:           magAxis,
			VelocityThreshold: e.VelocityThreshold,
			MagThreshold:      e.MagThreshold,
			Debounce:          e.Debounce,
		},
		Segment: seg,
	}
	if cfg.Counter.Debounce == 0 {
		cfg.Counter.Debounce = time.Second
	}
	return cfg, cfg.Validate()
}

func overlay[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func axisOrDefault(s string, def imu.Axis) (imu.Axis, error) {
	if s == "" {
		return def, nil
	}
	return imu.ParseAxis(s)
}
