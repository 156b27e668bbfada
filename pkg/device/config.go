package device

import (
	"time"

	"github.com/OverviewCorporation/aravis/internal/applog"
	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// Config holds the session tunables that would otherwise be compiled-in
// constants; it is overlaid onto compiled-in defaults from the "device"
// section of the process configuration file. Durations are expressed in
// the YAML file as plain milliseconds.
type Config struct {
	NRetries          int `yaml:"gvcp-n-retries"`
	TimeoutMS         int `yaml:"gvcp-timeout-ms"`
	HeartbeatPeriodMS int `yaml:"heartbeat-period-ms"`
	BufferSize        int `yaml:"buffer-size"`
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c Config) HeartbeatPeriod() time.Duration {
	return time.Duration(c.HeartbeatPeriodMS) * time.Millisecond
}

// DefaultConfig returns the compiled-in tunables from the protocol
// defaults in package gvcp.
func DefaultConfig() Config {
	return Config{
		NRetries:          gvcp.DefaultNRetries,
		TimeoutMS:         int(gvcp.DefaultTimeout / time.Millisecond),
		HeartbeatPeriodMS: int(gvcp.DefaultHeartbeatPeriod / time.Millisecond),
		BufferSize:        gvcp.BufferSizeMax,
	}
}

// LoadConfig reads the "device" section of the process configuration
// file over the compiled-in defaults.
func LoadConfig() Config {
	file := struct {
		Device Config `yaml:"device"`
	}{Device: DefaultConfig()}
	applog.LoadConfig(&file)
	return file.Device
}

var log = applog.For("gvdevice")
