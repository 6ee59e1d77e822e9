package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig is the optional TOML configuration file. Unset keys leave the
// defaults alone; flags and environment variables override it.
//
//	data-file = "game/game.slg"
//	timeout = 30
//	log-level = "debug"
//	headless = true
//	language = 33
//	save-dir = "saves"
//	fps = 25
type FileConfig struct {
	DataFile string `toml:"data-file"`
	Timeout  int    `toml:"timeout"`
	LogLevel string `toml:"log-level"`
	Headless *bool  `toml:"headless"`
	Console  *bool  `toml:"console"`
	Language *int   `toml:"language"`
	SaveDir  string `toml:"save-dir"`
	FPS      int    `toml:"fps"`
}

// LoadFile parses a configuration file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c FileConfig
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}
	return &c, nil
}
