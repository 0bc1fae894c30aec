// Package config registers the binder command-line flags and layers them
// over environment variables, an optional config file and built-in defaults.
//
// Precedence, highest first: flags, BINDER_* environment variables, the
// config file, defaults. The config file is $XDG_CONFIG_HOME/binder/config.*
// (any format viper reads) unless --config names one explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TortugaLabs/ashlib/internal/gitmeta"
	"github.com/TortugaLabs/ashlib/internal/walk"
)

const (
	// AppName names the config directory.
	AppName = "binder"
	// EnvPrefix prefixes every environment variable read.
	EnvPrefix = "BINDER"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// DefaultBackup is the backup suffix used when -b has no value.
	DefaultBackup = "~"
)

// Config is the fully resolved run configuration.
type Config struct {
	Include   []string `mapstructure:"include"`
	Path      string   `mapstructure:"path"`
	StdPath   string   `mapstructure:"std-path"`
	NoStdPath bool     `mapstructure:"no-std-path"`
	Defines   []string `mapstructure:"define"`

	DryRun bool   `mapstructure:"dry-run"`
	Force  bool   `mapstructure:"force"`
	Unbind bool   `mapstructure:"unbind"`
	Doc    bool   `mapstructure:"doc"`
	Backup string `mapstructure:"backup"`
	Meta   string `mapstructure:"meta"`

	Recursive        bool     `mapstructure:"recursive"`
	FollowSymlinks   bool     `mapstructure:"follow-symlinks"`
	NoFollowSymlinks bool     `mapstructure:"no-follow-symlinks"`
	DirConfig        string   `mapstructure:"pattern-dircfg"`
	WithoutDirConfig bool     `mapstructure:"without-dircfg"`
	ResetStdPatterns bool     `mapstructure:"reset-std-patterns"`
	PatternFiles     []string `mapstructure:"pattern-file"`
	Patterns         []string `mapstructure:"pattern"`
	PatternTest      bool     `mapstructure:"pattern-test"`
	ReportBinary     bool     `mapstructure:"report-binary"`
	Gitignore        bool     `mapstructure:"gitignore"`

	CheckSyntax bool `mapstructure:"check-syntax"`
	DumpStack   bool `mapstructure:"dump-stack"`
	Verbose     bool `mapstructure:"verbose"`
}

// Flags registers every binder flag on fs.
func Flags(fs *pflag.FlagSet) {
	fs.Bool("dry-run", false, "do not modify files")
	fs.StringArrayP("include", "I", nil, "add `dir` (or scope=dir) to the snippet search path")
	fs.String("std-path", "", "standard snippet library `dir`")
	fs.Bool("no-std-path", false, "do not use the standard snippet library")
	fs.StringArrayP("define", "D", nil, "text token override `NAME=VALUE`")

	fs.StringP("backup", "b", "", "keep a backup of changed files with this `suffix`")
	fs.Lookup("backup").NoOptDefVal = DefaultBackup
	fs.StringP("meta", "M", "", "add provenance metadata using this `format`")
	fs.Lookup("meta").NoOptDefVal = gitmeta.DefaultFormat
	fs.BoolP("force", "f", false, "write files even when nothing changed")
	fs.BoolP("unbind", "u", false, "collapse bound snippets back to include directives")
	fs.BoolP("doc", "d", false, "keep embedded documentation")

	fs.BoolP("recursive", "R", false, "recurse into directories")
	fs.Bool("follow-symlinks", true, "follow symlinks when recursing")
	fs.Bool("no-follow-symlinks", false, "do not follow symlinks when recursing")
	fs.Bool("without-dircfg", false, "ignore per-directory rules files")
	fs.String("pattern-dircfg", walk.DefaultDirConfig, "per-directory rules file `name`")
	fs.Lookup("pattern-dircfg").NoOptDefVal = walk.DefaultDirConfig
	fs.Bool("reset-std-patterns", false, "drop the built-in filter rules")
	fs.StringArray("pattern-file", nil, "read filter rules from `file`")
	fs.StringArray("pattern", nil, "add a filter `rule`")
	fs.Bool("pattern-test", false, "print filter decisions instead of binding")
	fs.Bool("report-binary", false, "report binary files that were skipped")
	fs.Bool("gitignore", false, "also skip files ignored by the top .gitignore")

	fs.Bool("check-syntax", false, "parse bound files and report syntax problems")
	fs.Bool("dump-stack", false, "print stack traces with errors")
	fs.BoolP("verbose", "v", false, "verbose logging")
	fs.String("config", "", "config `file`")
	fs.BoolP("version", "V", false, "show version and exit")
}

// Load resolves the configuration from the parsed flag set fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("follow-symlinks", true)
	v.SetDefault("pattern-dircfg", walk.DefaultDirConfig)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("path", EnvPrefix+"_PATH"); err != nil {
		return nil, fmt.Errorf("binding environment: %w", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	file, _ := fs.GetString("config")
	if err := readConfigFile(v, file); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.NoFollowSymlinks {
		cfg.FollowSymlinks = false
	}
	if cfg.WithoutDirConfig {
		cfg.DirConfig = ""
	}
	if cfg.StdPath == "" {
		cfg.StdPath = DefaultStdPath()
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", file, err)
		}
		return nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return nil
	}
	v.SetConfigName(ConfigFileName)
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// ConfigDir returns $XDG_CONFIG_HOME/binder, or ~/.config/binder.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("finding home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// DefaultStdPath is the directory holding the binder executable, where the
// standard snippet library is installed.
func DefaultStdPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// Tokens parses the NAME=VALUE defines into a text token table.
func (c *Config) Tokens() (map[string]string, error) {
	tokens := make(map[string]string, len(c.Defines))
	for _, d := range c.Defines {
		name, value, ok := strings.Cut(d, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid define %q: want NAME=VALUE", d)
		}
		tokens[name] = value
	}
	return tokens, nil
}
