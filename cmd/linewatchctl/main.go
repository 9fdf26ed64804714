// Package main provides linewatchctl, an operator tool that validates
// topology files, lists the sampled stations and computes one snapshot
// against the live upstream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/linewatch/linewatch/internal/app"
	"github.com/linewatch/linewatch/internal/config"
	"github.com/linewatch/linewatch/internal/topology"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "linewatchctl",
		Usage:   "inspect the LineWatch topology and snapshot pipeline",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "topology",
				Aliases: []string{"t"},
				Usage:   "topology file, overrides TOPOLOGY_FILE and forces the file source",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log pipeline activity to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "topology",
				Usage: "topology commands",
				Subcommands: []*cli.Command{
					{
						Name:   "validate",
						Usage:  "load the topology and print a summary per line",
						Action: validateTopology,
					},
					{
						Name:  "targets",
						Usage: "print the stations the sampler would query",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "mode", Usage: "strategic or exhaustive, overrides SAMPLER_MODE"},
							&cli.IntFlag{Name: "stride", Usage: "strategic stride, overrides SAMPLER_STRIDE"},
						},
						Action: listTargets,
					},
				},
			},
			{
				Name:  "snapshot",
				Usage: "compute one snapshot against the upstream API and print it as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "line", Usage: "only print vehicles of this line"},
					&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "overall deadline"},
				},
				Action: printSnapshot,
			},
		},
	}
}

// loadConfig reads the environment and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if file := c.String("topology"); file != "" {
		cfg.Topology.Source = config.TopologySourceFile
		cfg.Topology.File = file
	}

	level := zerolog.WarnLevel
	if c.Bool("verbose") {
		level = cfg.LogLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: c.App.ErrWriter}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return cfg, logger, nil
}

func validateTopology(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	repo, err := app.LoadTopology(c.Context, cfg, logger)
	if err != nil {
		return err
	}

	w := c.App.Writer
	for _, line := range repo.AllLines() {
		fmt.Fprintf(w, "%-6s %-24s %3d stations  %s -> %s\n",
			line.ID, line.Name, len(line.Stations),
			line.Stations[0].Name, line.Stations[line.LastIndex()].Name)
	}
	fmt.Fprintf(w, "ok: %d lines, %d stations\n", repo.LineCount(), repo.StationCount())
	return nil
}

func listTargets(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	if mode := c.String("mode"); mode != "" {
		cfg.Sampler.Mode = mode
	}
	if stride := c.Int("stride"); stride > 0 {
		cfg.Sampler.Stride = stride
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	repo, err := app.LoadTopology(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	targets, err := cfg.Sampler.Targets(repo)
	if err != nil {
		return err
	}
	return writeTargets(c.App.Writer, repo, targets)
}

func writeTargets(w io.Writer, repo *topology.Repository, targets []topology.StationRef) error {
	for _, ref := range targets {
		name := ""
		if st, ok := repo.GetStation(ref.LineID, ref.StationCode); ok {
			name = st.Name
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", ref, name); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d targets\n", len(targets))
	return err
}

func printSnapshot(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	// One-shot runs never share a snapshot.
	cfg.Cache.Backend = config.CacheBackendMemory

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	pipeline, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	snap, err := pipeline.Service.Refresh(ctx)
	if err != nil {
		return err
	}

	lineID := c.String("line")
	if lineID != "" {
		if _, ok := pipeline.Topology.GetLine(lineID); !ok {
			return fmt.Errorf("%w: %s", topology.ErrLineNotFound, lineID)
		}
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"computedAt": snap.ComputedAt.UTC().Format(time.RFC3339),
		"vehicles":   snap.Filter(lineID),
	})
}
