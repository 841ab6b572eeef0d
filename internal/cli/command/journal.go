package command

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/storage/journal"
)

// journalRow is one save attempt.
type journalRow struct {
	Serial   uint64    `json:"serial"`
	Run      uint32    `json:"run"`
	Outcome  string    `json:"outcome"`
	Filename string    `json:"filename"`
	Evicted  []uint64  `json:"evicted"`
	Time     time.Time `json:"time"`
	ID       string    `json:"id" table:"wide"`
}

// JournalCommand prints or compacts the decision journal of a stream.
func JournalCommand() *cli.Command {
	return &cli.Command{
		Name:      "journal",
		Usage:     "Show the save attempts journaled for KEY",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			keyhashFlag(),
			&cli.IntFlag{
				Name:  "compact",
				Usage: "Rewrite the journal keeping only the newest N records",
			},
			&cli.IntFlag{
				Name:  "tail",
				Usage: "Show only the newest N records",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := resolveStream(c)
			if err != nil {
				return err
			}
			path := filepath.Join(s.dir, journal.FileName)

			if c.IsSet("compact") {
				dropped, err := journal.Compact(path, c.Int("compact"))
				if err != nil {
					return err
				}
				appLogger(c).Info("journal compacted", "path", path, "dropped", dropped)
				fmt.Fprintf(c.App.Writer, "dropped %d records\n", dropped)
				return nil
			}

			records, err := journal.ReadAll(path)
			if err != nil {
				return err
			}
			if n := c.Int("tail"); n > 0 && len(records) > n {
				records = records[len(records)-n:]
			}

			rows := make([]journalRow, 0, len(records))
			for _, rec := range records {
				rows = append(rows, journalRow{
					Serial:   rec.Serial,
					Run:      rec.Run,
					Outcome:  rec.Type.String(),
					Filename: rec.Filename,
					Evicted:  rec.Evicted,
					Time:     rec.Time().UTC(),
					ID:       rec.ID.String(),
				})
			}
			return printResult(c, rows)
		},
	}
}

// CatalogCommand groups catalog maintenance.
func CatalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Catalog maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show catalog size and record count",
				Action: func(c *cli.Context) error {
					cat, err := openCatalog(c)
					if err != nil {
						return err
					}
					defer cat.Close()

					stats, err := cat.Stats(commandContext(c))
					if err != nil {
						return err
					}
					return printResult(c, stats)
				},
			},
			{
				Name:  "prune",
				Usage: "Remove records whose key directory no longer exists",
				Action: func(c *cli.Context) error {
					cat, err := openCatalog(c)
					if err != nil {
						return err
					}
					defer cat.Close()

					removed, err := cat.Prune(commandContext(c))
					if err != nil {
						return err
					}
					if removed == nil {
						removed = []string{}
					}
					return printResult(c, removed)
				},
			},
			{
				Name:  "gc",
				Usage: "Run value log garbage collection",
				Action: func(c *cli.Context) error {
					cat, err := openCatalog(c)
					if err != nil {
						return err
					}
					defer cat.Close()

					n, err := cat.GC(commandContext(c))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "rewrote %d value log files\n", n)
					return nil
				},
			},
		},
	}
}
