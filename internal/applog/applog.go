// Package applog sets up process-wide structured logging and the on-disk
// configuration file that GVCP session defaults are read from.
package applog

import (
	"flag"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Init parses -config (default "aravis.yaml"), configures the process
// logger from its "log" section, and stashes the raw file so LoadConfig
// can decode the rest of it later. Safe to call once, from main.
func Init() {
	config := flag.String("config", "aravis.yaml", "Path to configuration file")
	flag.Parse()

	data, _ = os.ReadFile(*config)

	var cfg struct {
		Log map[string]string `yaml:"log"`
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			println("ERROR: " + err.Error())
		}
	}

	var writer io.Writer = os.Stdout
	if cfg.Log["format"] != "json" {
		writer = zerolog.ConsoleWriter{
			Out: writer, TimeFormat: "15:04:05.000",
			NoColor: writer != os.Stdout || cfg.Log["format"] == "text",
		}
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	lvl, err := zerolog.ParseLevel(cfg.Log["level"])
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	log = zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
	modules = cfg.Log

	path, _ := os.Getwd()
	log.Debug().Str("os", runtime.GOOS).Str("arch", runtime.GOARCH).
		Str("cwd", path).Int("conf_size", len(data)).Msg("[app] started")
}

// LoadConfig decodes the raw configuration file into v. Missing sections
// are left untouched so callers can pre-populate defaults.
func LoadConfig(v interface{}) {
	if data == nil {
		return
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Msg("[app] read config")
	}
}

// For returns a logger scoped to module, honoring a per-module level
// override under the "log" section of the configuration file.
func For(module string) zerolog.Logger {
	if s, ok := modules[module]; ok {
		if lvl, err := zerolog.ParseLevel(s); err == nil {
			return log.Level(lvl)
		}
	}
	return log
}

var data []byte
var log = zerolog.New(os.Stderr).With().Timestamp().Logger()
var modules map[string]string
