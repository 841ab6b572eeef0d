package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/cli/output"
	"github.com/yndnr/snapkeep/internal/infra/confloader"
	"github.com/yndnr/snapkeep/internal/infra/shutdown"
	"github.com/yndnr/snapkeep/internal/retention"
	"github.com/yndnr/snapkeep/internal/storage/snapshot"
)

// followEvent reports a snapshot entering or leaving the history.
type followEvent struct {
	Event    string    `json:"event" yaml:"event"`
	Serial   uint64    `json:"serial" yaml:"serial"`
	Run      uint32    `json:"run" yaml:"run"`
	Filename string    `json:"filename" yaml:"filename"`
	Time     time.Time `json:"time" yaml:"time"`
}

// follower prints history changes of one stream.
type follower struct {
	dir    string
	w      io.Writer
	format output.Format

	mu       sync.Mutex
	retained map[uint64]retention.Entry
	stopped  bool
}

// FollowCommand prints retained snapshots as they are written.
func FollowCommand() *cli.Command {
	return &cli.Command{
		Name:      "follow",
		Usage:     "Print snapshots of KEY as they are retained or culled",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			keyhashFlag(),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print the current history first",
			},
		},
		Action: followAction,
	}
}

func followAction(c *cli.Context) error {
	s, err := resolveStream(c)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(appConfig(c).Output)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	f := &follower{
		dir:      s.dir,
		w:        c.App.Writer,
		format:   format,
		retained: make(map[uint64]retention.Entry),
	}
	if meta, err := snapshot.ReadMetadata(s.dir); err == nil {
		for _, e := range meta.History {
			f.retained[e.Serial] = e
			if c.Bool("all") {
				f.print("retained", e)
			}
		}
	}

	log := appLogger(c)
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := watcher.Watch(filepath.Join(s.dir, snapshot.MetadataFile)); err != nil {
		watcher.Stop()
		return err
	}
	watcher.OnChange(func(string) { f.refresh() })
	watcher.StartAsync()
	log.Info("following stream", "keyhash", s.keyhash, "dir", s.dir)

	ctx, stop := shutdown.WithSignals(commandContext(c))
	defer stop()
	<-ctx.Done()

	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return watcher.Stop()
}

// refresh rereads the metadata and prints the difference.
func (f *follower) refresh() {
	meta, err := snapshot.ReadMetadata(f.dir)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}

	current := make(map[uint64]retention.Entry, len(meta.History))
	for _, e := range meta.History {
		current[e.Serial] = e
	}
	for _, serial := range retention.Serials(meta.History) {
		if _, ok := f.retained[serial]; ok {
			continue
		}
		f.print("retained", current[serial])
	}

	culled := retention.NewSerialSet()
	for serial := range f.retained {
		if _, ok := current[serial]; !ok {
			culled[serial] = struct{}{}
		}
	}
	for _, serial := range culled.Sorted() {
		f.print("culled", f.retained[serial])
	}
	f.retained = current
}

// print writes one event line. Callers hold f.mu or own f exclusively.
func (f *follower) print(event string, e retention.Entry) {
	row := newHistoryRow(e)
	ev := followEvent{Event: event, Serial: row.Serial, Run: row.Run, Filename: row.Filename, Time: row.Time}
	switch f.format {
	case output.FormatJSON:
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintln(f.w, string(data))
	case output.FormatYAML:
		fmt.Fprintln(f.w, "---")
		_ = (&output.YAMLFormatter{}).Format(f.w, ev)
	default:
		fmt.Fprintf(f.w, "%-8s %9d run=%d %s\n", event, e.Serial, e.Run, e.Filename)
	}
}
