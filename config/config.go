package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/mpymake/target"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Environment variables use the MPYMAKE_ prefix with dashes folded to
// underscores, e.g. MPYMAKE_MPY_CROSS and MPYMAKE_MOUNT.
const EnvPrefix = "MPYMAKE"

// Defaults mirror the original project layout: the cross-compiler lives
// in a sibling circuitpython checkout and artifacts sync to a mounted
// CIRCUITPY volume.
const (
	DefaultMpyCross   = "../circuitpython/mpy-cross/build/mpy-cross"
	DefaultMount      = "/Volumes/CIRCUITPY"
	DefaultDriver     = "grove_vision_ai_v2.py"
	DefaultExample    = "examples/human_follower.py"
	DefaultDocsDir    = "docs"
	DefaultTargetFile = "mpymake.star"
)

type Config struct {
	MpyCross   string // cross-compiler executable for the .py -> .mpy rule
	Mount      string // destination directory for sync
	Driver     string // driver module source
	Example    string // example script source
	DocsDir    string
	TargetFile string
}

// Init registers defaults and environment bindings on the shared viper
// instance. Called once before flags are bound.
func Init() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mpy-cross", DefaultMpyCross)
	viper.SetDefault("mount", DefaultMount)
	viper.SetDefault("driver", DefaultDriver)
	viper.SetDefault("example", DefaultExample)
	viper.SetDefault("docs-dir", DefaultDocsDir)
	viper.SetDefault("file", DefaultTargetFile)
}

// Load snapshots the effective configuration from defaults, environment
// and any bound flags.
func Load() Config {
	return Config{
		MpyCross:   viper.GetString("mpy-cross"),
		Mount:      viper.GetString("mount"),
		Driver:     viper.GetString("driver"),
		Example:    viper.GetString("example"),
		DocsDir:    viper.GetString("docs-dir"),
		TargetFile: viper.GetString("file"),
	}
}

// ArtifactPath returns the compiled artifact path for a source file,
// alongside the source.
func ArtifactPath(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + ".mpy"
}

// Targets returns the built-in target table and pattern rules for the
// configuration. When the target file exists, targets defined there
// override or extend the built-ins.
func (c Config) Targets() (map[string]*target.Target, []target.PatternRule, error) {
	driverOut := ArtifactPath(c.Driver)
	exampleOut := ArtifactPath(c.Example)

	targets := map[string]*target.Target{
		"docs": {
			Name:  "docs",
			Phony: true,
			Dir:   c.DocsDir,
			Cmd:   "sphinx-build -E -W -b html . _build/html",
		},
		"compile": {
			Name:    "compile",
			Phony:   true,
			Prereqs: []string{driverOut, exampleOut},
		},
		"sync": {
			Name:     "sync",
			Phony:    true,
			Prereqs:  []string{"compile"},
			Copies:   []string{driverOut, exampleOut},
			CopyDest: c.Mount,
		},
		"clean": {
			Name:    "clean",
			Phony:   true,
			Removes: []string{driverOut, exampleOut, filepath.Join(c.DocsDir, "_build")},
		},
	}

	patterns := []target.PatternRule{
		{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: c.MpyCross},
	}

	if _, err := os.Stat(c.TargetFile); err != nil {
		if os.IsNotExist(err) {
			return targets, patterns, nil
		}
		return nil, nil, errors.Wrapf(err, "checking target file %s", c.TargetFile)
	}

	extra, err := ParseTargetFile(c.TargetFile)
	if err != nil {
		return nil, nil, err
	}
	for name, t := range extra {
		targets[name] = t
	}

	return targets, patterns, nil
}
