package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration values.
type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	Sensors      SensorsConfig      `yaml:"sensors"`
	Sampling     SamplingConfig     `yaml:"sampling"`
	Kalman       KalmanConfig       `yaml:"kalman"`
	Magnetometer MagnetometerConfig `yaml:"magnetometer"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	Session      SessionConfig      `yaml:"session"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Backend      BackendConfig      `yaml:"backend"`
	Display      DisplayConfig      `yaml:"display"`
	Web          WebConfig          `yaml:"web"`
	Recording    RecordingConfig    `yaml:"recording"`
	Exercises    []ExerciseConfig   `yaml:"exercises"`
}

type DeviceConfig struct {
	ID string `yaml:"id"`
}

// SensorsConfig selects where samples come from: the LIS3DH/MLX90393 pair
// on I2C, a microcontroller streaming over a serial line, or a synthetic
// rowing motion.
type SensorsConfig struct {
	Driver               string `yaml:"driver"`
	I2CBus               string `yaml:"i2c_bus"`
	AccelAddress         uint16 `yaml:"accel_address"`
	AccelFallbackAddress uint16 `yaml:"accel_fallback_address"`
	MagAddress           uint16 `yaml:"mag_address"`
	SerialPort           string `yaml:"serial_port"`
	SerialBaud           uint   `yaml:"serial_baud"`
}

type SamplingConfig struct {
	Interval time.Duration `yaml:"interval"`
	// MagEvery reads the magnetometer on one tick out of MagEvery.
	MagEvery int `yaml:"mag_every"`
}

// DT is the sampling period in seconds.
func (s SamplingConfig) DT() float64 { return s.Interval.Seconds() }

type KalmanConfig struct {
	AccelVariance       float64 `yaml:"accel_variance"`
	MeasurementVariance float64 `yaml:"measurement_variance"`
	VelocityVariance    float64 `yaml:"velocity_variance"`
	PositionVariance    float64 `yaml:"position_variance"`
}

type MagnetometerConfig struct {
	SmoothingWindow int `yaml:"smoothing_window"`
}

type AnalysisConfig struct {
	ReferenceWindow int `yaml:"reference_window"`
}

type SessionConfig struct {
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	AnalysisQueue     int           `yaml:"analysis_queue"`
	RestartBackoff    time.Duration `yaml:"restart_backoff"`
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	ClientIDTrainer string `yaml:"client_id_trainer"`
	ClientIDWeb     string `yaml:"client_id_web"`
	ClientIDConsole string `yaml:"client_id_console"`
	TopicPrefix     string `yaml:"topic_prefix"`
}

type BackendConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type DisplayConfig struct {
	Enabled bool          `yaml:"enabled"`
	I2CBus  string        `yaml:"i2c_bus"`
	Refresh time.Duration `yaml:"refresh"`
}

type WebConfig struct {
	Listen    string `yaml:"listen"`
	StaticDir string `yaml:"static_dir"`
}

type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// ExerciseConfig adds or overrides one entry of the exercise catalogue.
// Omitted segmentation fields keep their defaults; an explicit zero is kept.
type ExerciseConfig struct {
	Name              string        `yaml:"name"`
	Aliases           []string      `yaml:"aliases"`
	VelocityAxis      string        `yaml:"velocity_axis"`
	MagAxis           string        `yaml:"mag_axis"`
	VelocityThreshold float64       `yaml:"velocity_threshold"`
	MagThreshold      float64       `yaml:"mag_threshold"`
	Debounce          time.Duration `yaml:"debounce"`
	Segment           SegmentConfig `yaml:"segment"`
}

// SegmentConfig fields are nil when the file leaves them out.
type SegmentConfig struct {
	SmoothWindow  *int           `yaml:"smooth_window"`
	MinPeakHeight *float64       `yaml:"min_peak_height"`
	PositiveK     *float64       `yaml:"positive_k"`
	NegativeK     *float64       `yaml:"negative_k"`
	CeilingRatio  *float64       `yaml:"ceiling_ratio"`
	DedupWindow   *time.Duration `yaml:"dedup_window"`
}

// Package-level unexported variables for the singleton:
//   - globalConfig can only be set through InitGlobal and read through Get.
//   - configOnce makes InitGlobal idempotent.
//   - configMu lets many readers call Get concurrently.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for every key the file omits.
func Default() Config {
	return Config{
		Device: DeviceConfig{ID: "pitrainer"},
		Sensors: SensorsConfig{
			Driver:               "i2c",
			I2CBus:               "1",
			AccelAddress:         0x18,
			AccelFallbackAddress: 0x19,
			MagAddress:           0x0C,
			SerialPort:           "/dev/ttyUSB0",
			SerialBaud:           115200,
		},
		Sampling: SamplingConfig{Interval: 10 * time.Millisecond, MagEvery: 2},
		Kalman: KalmanConfig{
			AccelVariance:       0.1,
			MeasurementVariance: 0.1,
		},
		Magnetometer: MagnetometerConfig{SmoothingWindow: 50},
		Analysis:     AnalysisConfig{ReferenceWindow: 100},
		Session: SessionConfig{
			InactivityTimeout: 5 * time.Minute,
			AnalysisQueue:     4,
			RestartBackoff:    2 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://localhost:1883",
			ClientIDTrainer: "pitrainer-trainer",
			ClientIDWeb:     "pitrainer-web",
			ClientIDConsole: "pitrainer-console",
			TopicPrefix:     "pitrainer",
		},
		Backend:   BackendConfig{PollInterval: time.Second},
		Display:   DisplayConfig{I2CBus: "1", Refresh: 250 * time.Millisecond},
		Web:       WebConfig{Listen: ":8080", StaticDir: "web"},
		Recording: RecordingConfig{Dir: "recordings"},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(raw)
}

// Parse is Load without the file.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Sensors.Driver {
	case "i2c", "serial", "mock":
	default:
		return fmt.Errorf("%w: sensors.driver must be i2c, serial or mock, got %q", ErrInvalid, c.Sensors.Driver)
	}
	if c.Device.ID == "" {
		return fmt.Errorf("%w: device.id is required", ErrInvalid)
	}
	if c.Sensors.Driver == "serial" && (c.Sensors.SerialPort == "" || c.Sensors.SerialBaud == 0) {
		return fmt.Errorf("%w: sensors.serial_port and sensors.serial_baud are required for the serial driver", ErrInvalid)
	}
	if c.Sampling.Interval <= 0 {
		return fmt.Errorf("%w: sampling.interval must be positive", ErrInvalid)
	}
	if c.Sampling.MagEvery < 1 {
		return fmt.Errorf("%w: sampling.mag_every must be at least 1, got %d", ErrInvalid, c.Sampling.MagEvery)
	}
	if c.Magnetometer.SmoothingWindow < 1 {
		return fmt.Errorf("%w: magnetometer.smoothing_window must be at least 1", ErrInvalid)
	}
	if c.Analysis.ReferenceWindow < 1 {
		return fmt.Errorf("%w: analysis.reference_window must be at least 1", ErrInvalid)
	}
	if c.Session.InactivityTimeout <= 0 {
		return fmt.Errorf("%w: session.inactivity_timeout must be positive", ErrInvalid)
	}
	if c.Session.AnalysisQueue < 1 {
		return fmt.Errorf("%w: session.analysis_queue must be at least 1", ErrInvalid)
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("%w: mqtt.broker is required", ErrInvalid)
	}
	if c.Backend.PollInterval <= 0 {
		return fmt.Errorf("%w: backend.poll_interval must be positive", ErrInvalid)
	}
	if c.Display.Enabled && c.Display.Refresh <= 0 {
		return fmt.Errorf("%w: display.refresh must be positive", ErrInvalid)
	}
	if c.Recording.Enabled && c.Recording.Dir == "" {
		return fmt.Errorf("%w: recording.dir is required when recording is enabled", ErrInvalid)
	}
	for i, ex := range c.Exercises {
		if ex.Name == "" {
			return fmt.Errorf("%w: exercises[%d].name is required", ErrInvalid, i)
		}
		if ex.VelocityThreshold == 0 && ex.MagThreshold == 0 {
			return fmt.Errorf("%w: exercise %q needs a velocity or magnetic threshold", ErrInvalid, ex.Name)
		}
	}
	return nil
}

// InitGlobal loads the configuration once. Later calls return the first
// call's error and do not reload.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
