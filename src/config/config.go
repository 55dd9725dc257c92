// Package config loads the TOML configuration of a render application.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

type Config struct {
	App    App    `toml:"app"`
	Window Window `toml:"window"`
	Log    Log    `toml:"log"`
	Device Device `toml:"device"`
}

type App struct {
	Name       string `toml:"name"`
	Validation bool   `toml:"validation"`
}

type Window struct {
	Title          string `toml:"title"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	FramesInFlight int    `toml:"frames_in_flight"`
	// ClearColor is the background colour, RGBA in [0, 1].
	ClearColor [4]float32 `toml:"clear_color"`
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Device lists capabilities requested on top of what the extensions
// declare.
type Device struct {
	APIVersion         string   `toml:"api_version"`
	ValidationLayers   []string `toml:"validation_layers"`
	InstanceExtensions []string `toml:"instance_extensions"`
	DeviceExtensions   []string `toml:"device_extensions"`
	Features           []string `toml:"features"`
}

func Default() Config {
	return Config{
		App: App{Name: "LovelyVulkan"},
		Window: Window{
			Title:          "LovelyVulkan",
			Width:          1280,
			Height:         768,
			FramesInFlight: 2,
			ClearColor:     [4]float32{0.05, 0.05, 0.1, 1},
		},
		Log:    Log{Level: "info"},
		Device: Device{APIVersion: "1.1"},
	}
}

// Open reads filename on top of the defaults.
func Open(filename string) (Config, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return Config{}, err
	}
	defer fp.Close()
	cfg, err := Read(bufio.NewReader(fp))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Read decodes r on top of the defaults. Unknown keys are an error.
func Read(r io.Reader) (Config, error) {
	cfg := Default()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", render.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	w := c.Window
	switch {
	case w.Width <= 0 || w.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", render.ErrInvalidConfig, w.Width, w.Height)
	case w.FramesInFlight < 1:
		return fmt.Errorf("%w: frames_in_flight %d", render.ErrInvalidConfig, w.FramesInFlight)
	}
	for _, v := range w.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: clear_color %v out of range", render.ErrInvalidConfig, w.ClearColor)
		}
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := c.Device.Version(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", render.ErrInvalidConfig, c.Log.Level)
	}
	return l, nil
}

// Version parses APIVersion ("1.2") into the packed form used by
// render.Requirements. An empty version is 0.
func (d Device) Version() (uint32, error) {
	if d.APIVersion == "" {
		return 0, nil
	}
	var major, minor uint32
	if _, err := fmt.Sscanf(strings.TrimSpace(d.APIVersion), "%d.%d", &major, &minor); err != nil {
		return 0, fmt.Errorf("%w: api_version %q", render.ErrInvalidConfig, d.APIVersion)
	}
	return major<<22 | minor<<12, nil
}

// Requirements returns the capabilities requested by the configuration.
// Validate must have succeeded.
func (c Config) Requirements() render.Requirements {
	v, _ := c.Device.Version()
	return render.Requirements{
		APIVersion:         v,
		ValidationLayers:   c.Device.ValidationLayers,
		InstanceExtensions: c.Device.InstanceExtensions,
		DeviceExtensions:   c.Device.DeviceExtensions,
		Features:           c.Device.Features,
	}
}

// RenderInfo returns the context info of the configuration.
func (c Config) RenderInfo() render.Info {
	return render.Info{AppName: c.App.Name, Requirements: c.Requirements()}
}

// WindowInfo returns the window info of the configuration.
func (c Config) WindowInfo() render.WindowInfo {
	return render.WindowInfo{
		Title:          c.Window.Title,
		Width:          c.Window.Width,
		Height:         c.Window.Height,
		FramesInFlight: c.Window.FramesInFlight,
	}
}
