package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// VerifyCommand checks a stream directory against its metadata.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check the snapshot files of KEY against its history",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			keyhashFlag(),
			&cli.BoolFlag{
				Name:  "repair",
				Usage: "Drop dangling entries, delete orphan files and re-point latest",
			},
		},
		Action: verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	s, err := resolveStream(c)
	if err != nil {
		return err
	}

	key := s.key
	if key == nil {
		meta, err := readStreamMetadata(s)
		if err != nil {
			return err
		}
		key = meta.Key
	}

	store, err := openStore(c, key)
	if err != nil {
		return err
	}
	if store.Keyhash() != s.keyhash {
		return fmt.Errorf("stored key hashes to %s, not %s", store.Keyhash(), s.keyhash)
	}

	verify := store.Verify
	if c.Bool("repair") {
		verify = store.Repair
	}
	rep, err := verify()
	if err != nil {
		return err
	}
	if err := printResult(c, rep); err != nil {
		return err
	}

	if !rep.Clean() && !rep.Repaired {
		return fmt.Errorf("stream %s has %d dangling entries and %d orphan files (stale latest: %t)",
			s.keyhash, len(rep.Dangling), len(rep.Orphans), rep.StaleLatest)
	}
	return nil
}
