package sensors

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/golang/geo/r3"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/imu"
)

// A microcontroller wired to the same sensors can stream them over a serial
// line as NMEA-framed sentences:
//
//	$TRACC,<ax>,<ay>,<az>*hh   acceleration in g
//	$TRMFD,<mx>,<my>,<mz>*hh   magnetic field in sensor counts
const (
	TypeACC = "ACC"
	TypeMFD = "MFD"
)

// ACC is one acceleration sentence.
type ACC struct {
	nmea.BaseSentence
	X, Y, Z float64
}

// MFD is one magnetic-field sentence.
type MFD struct {
	nmea.BaseSentence
	X, Y, Z float64
}

func init() {
	nmea.MustRegisterParser(TypeACC, func(s nmea.BaseSentence) (nmea.Sentence, error) {
		p := nmea.NewParser(s)
		return ACC{
			BaseSentence: s,
			X:            p.Float64(0, "x"),
			Y:            p.Float64(1, "y"),
			Z:            p.Float64(2, "z"),
		}, p.Err()
	})
	nmea.MustRegisterParser(TypeMFD, func(s nmea.BaseSentence) (nmea.Sentence, error) {
		p := nmea.NewParser(s)
		return MFD{
			BaseSentence: s,
			X:            p.Float64(0, "x"),
			Y:            p.Float64(1, "y"),
			Z:            p.Float64(2, "z"),
		}, p.Err()
	})
}

// reconnectBackoff is the pause between attempts to reopen a failed port.
const reconnectBackoff = 2 * time.Second

// SerialSensor keeps the latest sentence of each kind. Every reading is
// handed out once; later reads get imu.ErrNoSample until a new one
// arrives. While the port is down reads fail with imu.ErrSensorIO.
type SerialSensor struct {
	reopen  func() (io.ReadCloser, error)
	backoff time.Duration

	mu         sync.Mutex
	port       io.ReadCloser
	accel      r3.Vector
	accelFresh bool
	mag        r3.Vector
	magFresh   bool
	err        error
	closed     bool

	stop chan struct{}
	done chan struct{}
}

// OpenSerial opens the configured port and starts decoding it. A port that
// fails later is reopened with the same options.
func OpenSerial(cfg config.SensorsConfig) (*SerialSensor, error) {
	opts := serial.OpenOptions{
		PortName:              cfg.SerialPort,
		BaudRate:              cfg.SerialBaud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	open := func() (io.ReadCloser, error) {
		port, err := serial.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("sensors: open serial %s: %w", cfg.SerialPort, err)
		}
		return port, nil
	}
	port, err := open()
	if err != nil {
		return nil, err
	}
	log.Infof("serial bridge opened on %s at %d baud", opts.PortName, opts.BaudRate)
	return NewSerialSensor(port, open), nil
}

// NewSerialSensor decodes sentences from port until it is closed. When
// the port fails and reopen is not nil, reopen is retried with back-off.
func NewSerialSensor(port io.ReadCloser, reopen func() (io.ReadCloser, error)) *SerialSensor {
	return newSerialSensor(port, reopen, reconnectBackoff)
}

func newSerialSensor(port io.ReadCloser, reopen func() (io.ReadCloser, error), backoff time.Duration) *SerialSensor {
	s := &SerialSensor{
		reopen:  reopen,
		backoff: backoff,
		port:    port,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run(port)
	return s
}

func (s *SerialSensor) run(port io.ReadCloser) {
	defer close(s.done)
	for {
		err := s.decode(port)
		port.Close()
		s.fail(err)
		if s.reopen == nil {
			return
		}

		for {
			select {
			case <-s.stop:
				return
			case <-time.After(s.backoff):
			}
			p, err := s.reopen()
			if err != nil {
				s.fail(err)
				continue
			}
			if !s.attach(p) {
				p.Close()
				return
			}
			port = p
			log.Infof("serial bridge reconnected")
			break
		}
	}
}

// decode handles lines until the port fails.
func (s *SerialSensor) decode(port io.Reader) error {
	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			s.handle(line)
		}
		if err != nil {
			return err
		}
	}
}

func (s *SerialSensor) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.err == nil {
		log.Warnf("serial bridge down: %v", err)
	}
	s.err = err
	s.accelFresh = false
	s.magFresh = false
}

func (s *SerialSensor) attach(port io.ReadCloser) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.port = port
	s.err = nil
	return true
}

func (s *SerialSensor) handle(line string) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		// Line noise and partial sentences are expected after connect.
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m := sentence.(type) {
	case ACC:
		s.accel = r3.Vector{X: m.X, Y: m.Y, Z: m.Z}
		s.accelFresh = true
	case MFD:
		s.mag = r3.Vector{X: m.X, Y: m.Y, Z: m.Z}
		s.magFresh = true
	}
}

func (s *SerialSensor) ReadAcceleration() (r3.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.downLocked(); err != nil {
		return r3.Vector{}, err
	}
	if !s.accelFresh {
		return r3.Vector{}, imu.ErrNoSample
	}
	s.accelFresh = false
	return s.accel, nil
}

func (s *SerialSensor) ReadMagneticField() (r3.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.downLocked(); err != nil {
		return r3.Vector{}, err
	}
	if !s.magFresh {
		return r3.Vector{}, imu.ErrNoSample
	}
	s.magFresh = false
	return s.mag, nil
}

func (s *SerialSensor) downLocked() error {
	switch {
	case s.closed:
		return fmt.Errorf("serial bridge: %w: closed", imu.ErrSensorIO)
	case s.err != nil:
		return fmt.Errorf("serial bridge: %w: %v", imu.ErrSensorIO, s.err)
	}
	return nil
}

// Close stops reconnecting, closes the port and waits for the decoder.
func (s *SerialSensor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	port := s.port
	s.mu.Unlock()

	close(s.stop)
	err := port.Close()
	<-s.done
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
