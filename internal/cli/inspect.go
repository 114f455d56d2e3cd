package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/eunmann/rangeagg/internal/logctx"
	"github.com/eunmann/rangeagg/pkg/humanfmt"
	"github.com/eunmann/rangeagg/pkg/snapshot"
)

func runInspect(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	snapDir := fs.String("snapshot", "", "snapshot directory")
	verify := fs.Bool("verify", true, "verify file checksums")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag("snapshot", *snapDir); err != nil {
		return err
	}

	snap, err := snapshot.Open(*snapDir)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()

	m := snap.Manifest()
	fmt.Fprintf(stdout, "snapshot:      %s\n", *snapDir)
	fmt.Fprintf(stdout, "version:       %d\n", m.Version)
	fmt.Fprintf(stdout, "created:       %s\n", m.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(stdout, "length:        %d\n", m.Length)
	fmt.Fprintf(stdout, "total:         %d\n", m.Total)
	fmt.Fprintf(stdout, "distinct sums: %d\n", m.DistinctSums)

	names := make([]string, 0, len(m.Files))
	var size int64
	for name, info := range m.Files {
		names = append(names, name)
		size += info.Size
	}
	slices.Sort(names)
	fmt.Fprintf(stdout, "files:         %d (%s)\n", len(names), humanfmt.Bytes(size))
	for _, name := range names {
		fmt.Fprintf(stdout, "  %-18s %10s\n", name, humanfmt.Bytes(m.Files[name].Size))
	}

	if !*verify {
		return nil
	}
	start := time.Now()
	if err := snap.Verify(); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	log := logctx.FromContext(ctx)
	log.Debug().Dur("elapsed", time.Since(start)).Msg("checksums verified")
	fmt.Fprintln(stdout, "checksums:     ok")
	return nil
}
