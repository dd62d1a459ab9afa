// Package display shows the live count and set feedback on the SSD1306
// OLED mounted on the rig.
package display

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/logger"
	"github.com/lolzio5/PiTrainer/internal/quality"
)

var log = logger.New("display")

const (
	width  = 128
	height = 64
	// Characters per line in the 7x13 face.
	lineChars = width / 7
)

type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

type mode int

const (
	modeIdle mode = iota
	modeCount
	modeFeedback
)

type screen struct {
	mode     mode
	exercise string
	set      int
	reps     uint32
	feedback quality.Feedback
}

// RepDisplay keeps the latest screen and redraws it on a ticker when it
// changed. Show methods are safe for concurrent use.
type RepDisplay struct {
	dev     panel
	bus     i2c.BusCloser
	refresh time.Duration

	mu    sync.Mutex
	cur   screen
	dirty bool

	// drawMu serialises panel access between Run and Close.
	drawMu sync.Mutex
	closed bool
}

// Open initialises the panel on the configured bus and shows the splash.
func Open(cfg config.DisplayConfig) (*RepDisplay, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Infof("SSD1306 initialized on bus %s", cfg.I2CBus)

	d := newRepDisplay(dev, cfg.Refresh)
	d.bus = bus
	return d, nil
}

func newRepDisplay(dev panel, refresh time.Duration) *RepDisplay {
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	return &RepDisplay{dev: dev, refresh: refresh, cur: screen{mode: modeIdle}, dirty: true}
}

func (d *RepDisplay) ShowCount(exercise string, set int, reps uint32) {
	d.set(screen{mode: modeCount, exercise: exercise, set: set, reps: reps})
}

func (d *RepDisplay) ShowFeedback(exercise string, fb quality.Feedback) {
	d.set(screen{mode: modeFeedback, exercise: exercise, feedback: fb})
}

func (d *RepDisplay) ShowIdle() {
	d.set(screen{mode: modeIdle})
}

func (d *RepDisplay) set(s screen) {
	d.mu.Lock()
	d.cur = s
	d.dirty = true
	d.mu.Unlock()
}

// Run redraws until ctx is cancelled.
func (d *RepDisplay) Run(ctx context.Context) {
	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()

	log.Infof("starting update loop")
	for {
		if err := d.flush(); err != nil {
			log.Warnf("error updating display: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// flush draws the current screen if it changed since the last draw.
// Nothing is drawn once the display is closed.
func (d *RepDisplay) flush() error {
	d.drawMu.Lock()
	defer d.drawMu.Unlock()
	if d.closed {
		return nil
	}

	d.mu.Lock()
	s, dirty := d.cur, d.dirty
	d.dirty = false
	d.mu.Unlock()
	if !dirty {
		return nil
	}
	return d.dev.Draw(d.dev.Bounds(), render(lines(s)), image.Point{})
}

// Close blanks the panel and releases the bus. A Run still in progress
// stops drawing.
func (d *RepDisplay) Close() error {
	d.drawMu.Lock()
	defer d.drawMu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if err := d.dev.Draw(d.dev.Bounds(), render(nil), image.Point{}); err != nil {
		log.Warnf("error blanking display: %v", err)
	}
	if d.bus != nil {
		return d.bus.Close()
	}
	return nil
}

func lines(s screen) []string {
	switch s.mode {
	case modeCount:
		return []string{
			clip(s.exercise),
			fmt.Sprintf("Set %d", s.set),
			"",
			fmt.Sprintf("Reps: %d", s.reps),
		}
	case modeFeedback:
		fb := s.feedback
		return []string{
			clip(s.exercise),
			fmt.Sprintf("Score %.0f", fb.Overall),
			clip(fb.Rating),
			fmt.Sprintf("R%.0f P%.0f S%.0f", fb.Distance, fb.Time, fb.Shakiness),
		}
	}
	return []string{"PiTrainer", "", "Waiting for", "workout..."}
}

func clip(s string) string {
	if len(s) > lineChars {
		return s[:lineChars]
	}
	return s
}

// render draws up to four lines of text on a blank frame.
func render(text []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, width, height))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range text {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}
