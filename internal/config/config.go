package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

// Koanf key names. The storage section keeps the option names used by
// Radicale's radicale-remind plugin so existing setups translate 1:1.
const (
	KeyListen           = "server.listen"
	KeyBaseURI          = "server.base_uri"
	KeyRealm            = "server.realm"
	KeyFilesystemFolder = "storage.filesystem_folder"
	KeyRemindFile       = "storage.remind_file"
	KeyRemindTimezone   = "storage.remind_timezone"
	KeyAbookFile        = "storage.abook_file"
	KeyTaskFolder       = "storage.task_folder"
	KeyAuthUsers        = "auth.users"
	KeyLogLevel         = "log.level"
	KeyMetricsEnabled   = "metrics.enabled"

	envPrefix = "REMDAV_"
)

// Config is the fully resolved server configuration.
type Config struct {
	Listen  string
	BaseURI string
	Realm   string

	// FilesystemFolder is the base directory against which relative
	// adapter paths resolve.
	FilesystemFolder string
	RemindFile       string
	RemindTimezone   *time.Location
	AbookFile        string
	TaskFolder       string

	// Users maps username to password. Empty means anonymous access.
	Users map[string]string

	LogLevel       string
	MetricsEnabled bool
}

// Flags returns the command line flag set understood by Load.
func Flags() *flag.FlagSet {
	f := flag.NewFlagSet("remdav", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: remdav [flags]")
		fmt.Fprintln(os.Stderr, f.FlagUsages())
	}
	f.String("config", "", "path to YAML config file")
	f.String(KeyListen, ":5232", "listen address")
	f.String(KeyBaseURI, "/", "URI prefix the DAV tree is served under")
	f.String(KeyRealm, "remdav", "basic auth realm")
	f.String(KeyFilesystemFolder, "", "base directory for relative storage paths")
	f.String(KeyRemindFile, "", "path to the Remind calendar file")
	f.String(KeyRemindTimezone, "", "IANA timezone of the Remind file")
	f.String(KeyAbookFile, "", "path to the Abook addressbook file")
	f.String(KeyTaskFolder, "", "path to the Taskwarrior data directory")
	f.String(KeyLogLevel, "info", "log level")
	f.Bool(KeyMetricsEnabled, false, "expose Prometheus metrics on /metrics")
	return f
}

// Load resolves configuration from the config file, REMDAV_* environment
// variables and command line flags, strongest last.
func Load(f *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	cfg := &Config{
		Listen:           k.String(KeyListen),
		BaseURI:          k.String(KeyBaseURI),
		Realm:            k.String(KeyRealm),
		FilesystemFolder: k.String(KeyFilesystemFolder),
		RemindFile:       k.String(KeyRemindFile),
		AbookFile:        k.String(KeyAbookFile),
		TaskFolder:       k.String(KeyTaskFolder),
		Users:            k.StringMap(KeyAuthUsers),
		LogLevel:         k.String(KeyLogLevel),
		MetricsEnabled:   k.Bool(KeyMetricsEnabled),
	}

	cfg.RemindFile = cfg.resolve(cfg.RemindFile)
	cfg.AbookFile = cfg.resolve(cfg.AbookFile)
	cfg.TaskFolder = cfg.resolve(cfg.TaskFolder)

	if tz := k.String(KeyRemindTimezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", KeyRemindTimezone, tz, err)
		}
		cfg.RemindTimezone = loc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.FilesystemFolder == "" {
		return path
	}
	return filepath.Join(c.FilesystemFolder, path)
}

// Validate checks the invariants Load promises to its callers.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%s must not be empty", KeyListen)
	}
	if !strings.HasPrefix(c.BaseURI, "/") {
		return fmt.Errorf("%s must start with /", KeyBaseURI)
	}
	if c.RemindFile == "" && c.AbookFile == "" && c.TaskFolder == "" {
		return fmt.Errorf("no storage source configured: set one of %s, %s, %s",
			KeyRemindFile, KeyAbookFile, KeyTaskFolder)
	}
	if c.RemindFile != "" && c.RemindTimezone == nil {
		return fmt.Errorf("%s is required when %s is set", KeyRemindTimezone, KeyRemindFile)
	}
	if c.TaskFolder != "" {
		info, err := os.Stat(c.TaskFolder)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyTaskFolder, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s: %s is not a directory", KeyTaskFolder, c.TaskFolder)
		}
	}
	return nil
}
