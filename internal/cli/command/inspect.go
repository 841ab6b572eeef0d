package command

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/cli/output"
	"github.com/yndnr/snapkeep/internal/retention"
	"github.com/yndnr/snapkeep/internal/storage/catalog"
	"github.com/yndnr/snapkeep/internal/storage/serializer"
	"github.com/yndnr/snapkeep/internal/storage/snapshot"
)

// KeyhashCommand prints the directory name of a key.
func KeyhashCommand() *cli.Command {
	return &cli.Command{
		Name:      "keyhash",
		Usage:     "Print the keyhash of KEY",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("exactly one KEY argument is required")
			}
			s, err := resolveStream(c)
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(appConfig(c).Output)
			if err != nil {
				return err
			}
			if format == output.FormatTable {
				fmt.Fprintln(c.App.Writer, s.keyhash)
				return nil
			}
			return printResult(c, map[string]any{
				"key":     s.key,
				"keyhash": s.keyhash,
				"dir":     s.dir,
			})
		},
	}
}

// historyRow is one retained snapshot.
type historyRow struct {
	Serial   uint64    `json:"serial"`
	Run      uint32    `json:"run"`
	Filename string    `json:"filename"`
	Time     time.Time `json:"time"`
	Fullpath string    `json:"fullpath" table:"wide"`
}

func newHistoryRow(e retention.Entry) historyRow {
	sec, frac := math.Modf(e.Timestamp)
	return historyRow{
		Serial:   e.Serial,
		Run:      e.Run,
		Filename: e.Filename,
		Time:     time.Unix(int64(sec), int64(frac*1e9)).UTC(),
		Fullpath: e.Fullpath,
	}
}

// readStreamMetadata reads the metadata of a stream, reporting a missing
// stream by name.
func readStreamMetadata(s *stream) (*snapshot.Metadata, error) {
	meta, err := snapshot.ReadMetadata(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no snapshots for keyhash %s", s.keyhash)
	}
	return meta, err
}

// HistoryCommand lists the retained snapshots of a stream.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List the retained snapshots of KEY",
		ArgsUsage: "KEY",
		Flags:     []cli.Flag{keyhashFlag()},
		Action: func(c *cli.Context) error {
			s, err := resolveStream(c)
			if err != nil {
				return err
			}
			meta, err := readStreamMetadata(s)
			if err != nil {
				return err
			}

			rows := make([]historyRow, 0, len(meta.History))
			for _, e := range meta.History {
				rows = append(rows, newHistoryRow(e))
			}
			return printResult(c, rows)
		},
	}
}

// ShowCommand prints the values of a snapshot.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the values of the latest snapshot of KEY",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			keyhashFlag(),
			&cli.Uint64Flag{
				Name:  "serial",
				Usage: "Show a retained snapshot instead of the latest",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := resolveStream(c)
			if err != nil {
				return err
			}
			ser, err := appConfig(c).NewSerializer()
			if err != nil {
				return err
			}

			path := snapshot.LatestPath(s.dir, ser)
			if c.IsSet("serial") {
				if path, err = retainedPath(s, ser, c.Uint64("serial")); err != nil {
					return err
				}
			}

			values, err := serializer.LoadFile(path, ser)
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("no %s snapshot at %s", ser.Name(), path)
			}
			if err != nil {
				return err
			}
			return printResult(c, values)
		},
	}
}

// retainedPath returns the file of a retained serial.
func retainedPath(s *stream, ser serializer.Serializer, serial uint64) (string, error) {
	meta, err := readStreamMetadata(s)
	if err != nil {
		return "", err
	}
	for _, e := range meta.History {
		if e.Serial != serial {
			continue
		}
		if ext := ser.Extension(""); !strings.HasSuffix(e.Filename, ext) {
			return "", fmt.Errorf("snapshot %s was not written by the %s serializer", e.Filename, ser.Name())
		}
		return filepath.Join(s.dir, e.Filename), nil
	}
	return "", fmt.Errorf("serial %d is not retained", serial)
}

// keyRow summarizes one stream.
type keyRow struct {
	Keyhash  string `json:"keyhash"`
	Key      string `json:"key"`
	Serial   uint64 `json:"serial"`
	Runs     uint32 `json:"runs"`
	Retained int    `json:"retained"`
	Latest   string `json:"latest"`
	Dir      string `json:"dir" table:"wide"`
}

// KeysCommand lists the streams under the base directory.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "List the keys stored under the base directory",
		Action: func(c *cli.Context) error {
			cfg := appConfig(c)

			var rows []keyRow
			var err error
			if cfg.Catalog.Enabled {
				rows, err = catalogKeys(c)
			} else {
				rows, err = scanKeys(c, cfg.Store.BaseDir)
			}
			if err != nil {
				return err
			}
			return printResult(c, rows)
		},
	}
}

func catalogKeys(c *cli.Context) ([]keyRow, error) {
	cat, err := openCatalog(c)
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	records, err := cat.List(commandContext(c))
	if err != nil {
		return nil, err
	}
	rows := make([]keyRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, keyRow{
			Keyhash:  rec.Keyhash,
			Key:      formatKey(rec.Key),
			Serial:   rec.Serial,
			Runs:     rec.Runs,
			Retained: rec.Retained,
			Latest:   rec.Latest,
			Dir:      rec.Dir,
		})
	}
	return rows, nil
}

// scanKeys reads the metadata of every key directory under base.
func scanKeys(c *cli.Context, base string) ([]keyRow, error) {
	entries, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return []keyRow{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows := make([]keyRow, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(base, entry.Name())
		meta, err := snapshot.ReadMetadata(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			appLogger(c).Warn("skipping unreadable stream", "dir", dir, "error", err)
			continue
		}

		row := keyRow{
			Keyhash:  entry.Name(),
			Key:      formatKey(meta.Key),
			Serial:   meta.Serial,
			Runs:     meta.NumRuns,
			Retained: len(meta.History),
			Dir:      dir,
		}
		if n := len(meta.History); n > 0 {
			row.Latest = meta.History[n-1].Filename
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// openCatalog opens the catalog for a one-shot command, without the
// background GC loop.
func openCatalog(c *cli.Context) (*catalog.Catalog, error) {
	cc := appConfig(c).CatalogConfig()
	cc.GCInterval = 0
	return catalog.Open(cc, appLogger(c))
}

func commandContext(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
