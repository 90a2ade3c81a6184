package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func writeTempConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
num_cam: 2
window_size: 10
td: 0.0
gnss:
  enable: true
  local_online_sync: true
topics:
  imu: /imu
  feature: /feature
`)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.NumCam, test.ShouldEqual, 2)
	test.That(t, cfg.GNSS.Enable, test.ShouldBeTrue)
	test.That(t, cfg.Topics.IMU, test.ShouldEqual, "/imu")
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cfg := &Config{NumCam: 0, WindowSize: 10}
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidateRequiresOfflineTimeDiff(t *testing.T) {
	cfg := &Config{NumCam: 1, WindowSize: 10, GNSS: GNSSConfig{Enable: true, LocalOnlineSync: false}}
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)

	cfg.GNSS.LocalTimeDiff = 0.01
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}
