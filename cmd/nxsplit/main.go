// Command nxsplit splits a NeXus/HDF5 master file into N files, each
// holding an equal share of the frames as a virtual dataset over the
// original block files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/robert-malhotra/nxsplit/internal/cli"
	"github.com/robert-malhotra/nxsplit/internal/config"
	"github.com/robert-malhotra/nxsplit/split"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, shouldExit, err := cli.Parse(args, stderr, config.Environ())
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(stderr, exitErr.Message)
			return exitErr.Code
		}
		fmt.Fprintln(stderr, err)
		return 1
	}
	if shouldExit {
		return 0
	}

	log := cfg.Logger(stderr)
	res, err := split.New(cfg.SplitOptions(log)...).Run(ctx, cfg.Input, cfg.Partitions)
	if res != nil && cfg.DryRun {
		printPlan(stdout, res)
	}
	if err != nil {
		fmt.Fprintf(stderr, "nxsplit: %v\n", err)
		return 1
	}
	if !cfg.DryRun {
		for _, out := range res.Outputs {
			fmt.Fprintln(stdout, out)
		}
	}
	return 0
}

// printPlan writes each output with its frame range and the block ranges
// it is assembled from.
func printPlan(w io.Writer, res *split.Result) {
	t := res.Table
	fmt.Fprintf(w, "%s: %d frames in %d blocks, frame shape %v\n", res.Input, t.TotalFrames(), len(t.Blocks), t.FrameShape)
	for j, p := range res.Partitions {
		fmt.Fprintf(w, "%s  frames [%d, %d)\n", res.Outputs[j], p.Start, p.End)
		for _, s := range p.Segments {
			b := t.Blocks[s.Block]
			fmt.Fprintf(w, "  %s:%s [%d, %d)\n", b.File, b.Dataset, s.Start, s.End)
		}
	}
}
