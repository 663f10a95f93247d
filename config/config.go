// Package config holds the emulator settings. Settings come from a JSON
// file, and command-line flags override the file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all application configuration.
type Config struct {
	Video  VideoConfig  `json:"video"`
	Audio  AudioConfig  `json:"audio"`
	Input  InputConfig  `json:"input"`
	Server ServerConfig `json:"server"`
	Paths  PathsConfig  `json:"paths"`

	Verbose bool `json:"verbose"`
	// Statsview is the listen address of the runtime stats viewer.
	// Empty disables it.
	Statsview string `json:"statsview"`
}

type VideoConfig struct {
	Scale     int  `json:"scale"` // window size as a multiple of 256x240
	Scanlines bool `json:"scanlines"`
}

type AudioConfig struct {
	Enabled    bool `json:"enabled"`
	SampleRate int  `json:"sample_rate"`
}

// InputConfig maps keyboard keys to the first controller. Key names are
// ebiten key names.
type InputConfig struct {
	Player1 KeyMapping `json:"player1"`
	// Record, when set, is the input script file written while playing.
	Record string `json:"record"`
}

// KeyMapping represents keyboard key mappings for a controller.
type KeyMapping struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Select string `json:"select"`
	Start  string `json:"start"`
	Up     string `json:"up"`
	Down   string `json:"down"`
	Left   string `json:"left"`
	Right  string `json:"right"`
}

// Keys returns the key names in controller button order.
func (k KeyMapping) Keys() [8]string {
	return [8]string{k.A, k.B, k.Select, k.Start, k.Up, k.Down, k.Left, k.Right}
}

type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type PathsConfig struct {
	States      string `json:"states"`
	Screenshots string `json:"screenshots"`
	Recordings  string `json:"recordings"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Video: VideoConfig{
			Scale:     3,
			Scanlines: true,
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
		},
		Input: InputConfig{
			Player1: KeyMapping{
				A:      "Z",
				B:      "X",
				Select: "Shift",
				Start:  "Enter",
				Up:     "ArrowUp",
				Down:   "ArrowDown",
				Left:   "ArrowLeft",
				Right:  "ArrowRight",
			},
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "localhost:50051",
		},
		Paths: PathsConfig{
			States:      ".",
			Screenshots: ".",
			Recordings:  ".",
		},
	}
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if c.Video.Scale < 1 || c.Video.Scale > 8 {
		return fmt.Errorf("video scale %d out of range 1-8", c.Video.Scale)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.Audio.SampleRate)
	}
	return nil
}

// Load reads the JSON file at path over the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// RegisterFlags binds command-line flags to c's fields, using the
// current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Video.Scale, "scale", c.Video.Scale, "window scale factor")
	fs.BoolVar(&c.Video.Scanlines, "scanlines", c.Video.Scanlines, "draw a scanline overlay")
	fs.BoolVar(&c.Audio.Enabled, "audio", c.Audio.Enabled, "enable sound")
	fs.StringVar(&c.Input.Record, "record", c.Input.Record, "record controller input to this script file")
	fs.BoolVar(&c.Server.Enabled, "grpc", c.Server.Enabled, "serve the debugger API")
	fs.StringVar(&c.Server.Addr, "grpc-addr", c.Server.Addr, "debugger API listen address")
	fs.StringVar(&c.Paths.States, "states", c.Paths.States, "save state directory")
	fs.StringVar(&c.Paths.Screenshots, "screenshots", c.Paths.Screenshots, "screenshot directory")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "verbose logging")
	fs.StringVar(&c.Statsview, "statsview", c.Statsview, "serve runtime stats on this address")
}

// Parse registers a -config flag plus the RegisterFlags set on fs, parses
// args, then loads the named file. Flags given explicitly win over the
// file.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	path := fs.String("config", "", "JSON config file")
	c := Default()
	c.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *path == "" {
		return c, c.Validate()
	}

	file, err := Load(*path)
	if err != nil {
		return nil, err
	}
	over := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
	file.RegisterFlags(over)
	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if over.Lookup(f.Name) == nil || setErr != nil {
			return
		}
		setErr = over.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return nil, setErr
	}
	return file, file.Validate()
}
