// Package config loads the node-level YAML configuration (spec §6): GNSS
// enablement and clock-sync mode, camera/IMU topic names, and the window
// size and visual/IMU time offset the estimator starts with.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// GNSSConfig controls whether GNSS is ingested at all and how the
// GNSS<->local offset Δ is obtained.
type GNSSConfig struct {
	Enable          bool    `yaml:"enable"`
	LocalOnlineSync bool    `yaml:"local_online_sync"`
	LocalTimeDiff   float64 `yaml:"local_time_diff"`
}

// TopicsConfig names the transport topics the sensor callbacks subscribe
// to. The core never inspects these; they are passed through to whatever
// wires up the transport layer (out of scope per spec §1).
type TopicsConfig struct {
	IMU       string `yaml:"imu"`
	Feature   string `yaml:"feature"`
	GNSSObs   string `yaml:"gnss_obs"`
	Ephemeris string `yaml:"ephemeris"`
	IonoParam string `yaml:"iono_param"`
	Pulse     string `yaml:"time_pulse"`
	Trigger   string `yaml:"time_trigger"`
}

// RecorderConfig controls the optional flight-recorder sink (a supplemented
// feature, not part of spec.md's core).
type RecorderConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// Config is the top-level node configuration.
type Config struct {
	NumCam     int            `yaml:"num_cam"`
	WindowSize int            `yaml:"window_size"`
	TD         float64        `yaml:"td"`
	GNSS       GNSSConfig     `yaml:"gnss"`
	Topics     TopicsConfig   `yaml:"topics"`
	Recorder   RecorderConfig `yaml:"recorder"`
}

// Load reads and parses a node configuration file, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read node config")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse node config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports descriptive errors for any field the core cannot safely
// start without.
func (c *Config) Validate() error {
	if c.NumCam <= 0 {
		return errors.New("num_cam must be a positive integer")
	}
	if c.WindowSize <= 0 {
		return errors.New("window_size must be a positive integer")
	}
	if c.GNSS.Enable && !c.GNSS.LocalOnlineSync && c.GNSS.LocalTimeDiff == 0 {
		return errors.New("gnss.local_time_diff must be set when gnss.local_online_sync is false")
	}
	if c.Recorder.Enable && c.Recorder.Path == "" {
		return errors.New("recorder.path is required when recorder.enable is true")
	}
	return nil
}
