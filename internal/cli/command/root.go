package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/cli/config"
	"github.com/yndnr/snapkeep/internal/cli/output"
	"github.com/yndnr/snapkeep/internal/infra/buildinfo"
	"github.com/yndnr/snapkeep/internal/storage/snapshot"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
)

const (
	metaConfig = "config"
	metaLogger = "logger"
)

// flagKeys maps global flags to configuration keys. Only flags set on the
// command line or through their environment variable override the file.
var flagKeys = map[string]string{
	"base-dir":   "store.base_dir",
	"serializer": "store.serializer",
	"passphrase": "store.passphrase",
	"journal":    "store.journal",
	"catalog":    "catalog.enabled",
	"output":     "output",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "snapkeep",
		Usage:   "Snapshot store with retention policies",
		Version: buildinfo.Get().Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			KeyhashCommand(),
			HistoryCommand(),
			ShowCommand(),
			KeysCommand(),
			VerifyCommand(),
			JournalCommand(),
			CatalogCommand(),
			SimulateCommand(),
			FollowCommand(),
			VersionCommand(),
			ConfigCommand(),
		},
		Before: before,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (default ./snapkeep.yaml, then the user config dir)",
			EnvVars: []string{"SNAPKEEP_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "base-dir",
			Aliases: []string{"d"},
			Usage:   "Directory holding one subdirectory per key",
		},
		&cli.StringFlag{
			Name:  "serializer",
			Usage: "Snapshot format: json, yaml, msgpack",
		},
		&cli.StringFlag{
			Name:    "passphrase",
			Usage:   "Seal snapshot files with a key derived from this passphrase",
			EnvVars: []string{"SNAPKEEP_PASSPHRASE"},
		},
		&cli.BoolFlag{
			Name:  "journal",
			Usage: "Journal every save attempt so serials survive discards",
		},
		&cli.BoolFlag{
			Name:  "catalog",
			Usage: "Index streams in the catalog under the base directory",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json",
		},
	}
}

// before loads the configuration and installs the logger.
func before(c *cli.Context) error {
	flags := make(map[string]any)
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		switch name {
		case "journal", "catalog":
			flags[key] = c.Bool(name)
		default:
			flags[key] = c.String(name)
		}
	}

	cfg, err := config.Load(c.String("config"), flags)
	if err != nil {
		return err
	}

	log, err := cfg.NewLogger(c.App.ErrWriter)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLogger] = log
	return nil
}

func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func appLogger(c *cli.Context) logger.Logger {
	if l, ok := c.App.Metadata[metaLogger].(logger.Logger); ok {
		return l
	}
	return logger.Default()
}

// printResult writes data in the configured output format.
func printResult(c *cli.Context, data any) error {
	format, err := output.ParseFormat(appConfig(c).Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(c.App.Writer, data)
}

// parseKey reads a key argument as JSON, or as a plain string when it is
// not valid JSON.
func parseKey(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// formatKey renders a key for display.
func formatKey(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Sprint(key)
	}
	return string(data)
}

func keyhashFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "keyhash",
		Usage: "Select the stream by keyhash instead of KEY",
	}
}

// stream identifies a key directory under the base directory.
type stream struct {
	keyhash string
	key     any
	dir     string
}

// resolveStream reads the stream from the KEY argument or the --keyhash
// flag. key is nil when only the keyhash is known.
func resolveStream(c *cli.Context) (*stream, error) {
	cfg := appConfig(c)

	if h := strings.TrimSpace(c.String("keyhash")); h != "" {
		if h != filepath.Base(h) || strings.HasPrefix(h, ".") {
			return nil, fmt.Errorf("invalid keyhash %q", h)
		}
		return &stream{keyhash: h, dir: filepath.Join(cfg.Store.BaseDir, h)}, nil
	}

	if c.NArg() < 1 {
		return nil, errors.New("KEY argument or --keyhash is required")
	}
	key := parseKey(c.Args().First())
	hash, err := snapshot.KeyHash(key)
	if err != nil {
		return nil, err
	}
	return &stream{keyhash: hash, key: key, dir: filepath.Join(cfg.Store.BaseDir, hash)}, nil
}

// openStore creates a store for key configured from the app configuration.
func openStore(c *cli.Context, key any, opts ...snapshot.Option) (*snapshot.Store, error) {
	cfg := appConfig(c)

	ser, err := cfg.NewSerializer()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.NewPolicy()
	if err != nil {
		return nil, err
	}

	opts = append([]snapshot.Option{snapshot.WithLogger(appLogger(c))}, opts...)
	store := snapshot.New(opts...)
	if err := store.Configure(snapshot.Config{
		Key:        key,
		Serializer: ser,
		Policy:     policy,
		BaseDir:    cfg.Store.BaseDir,
	}); err != nil {
		return nil, err
	}
	return store, nil
}
