package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flywave/go-mxs/config"
	"github.com/flywave/go-mxs/export"
	"github.com/flywave/go-mxs/runlog"
	"github.com/flywave/go-mxs/scene"
)

func exportCommand() *cobra.Command {
	var (
		configFile string
		flags      config.Flags
	)
	cmd := &cobra.Command{
		Use:   "export SCENE",
		Short: "Export a scene snapshot (yaml, json, gltf or glb) into a manifest and binary containers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			opts := config.Defaults()
			if configFile != "" {
				var err error
				if opts, err = config.Load(configFile); err != nil {
					return err
				}
			}
			flags.LogLevel = logLevel
			opts.Resolve(flags)
			if opts.OutputDir == "" {
				opts.OutputDir = strings.TrimSuffix(path, filepath.Ext(path)) + "_mxs"
			}
			if err := opts.Expand(); err != nil {
				return err
			}

			l := runlog.New(opts.Level())
			log, err := newLogger(l, opts.LogLevel)
			if err != nil {
				return err
			}
			s, err := scene.Load(path)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			rep, err := export.Run(ctx, s, export.Options{
				Options:  opts,
				AssetDir: filepath.Dir(path),
				Log:      log,
				Progress: func(done, total int) {
					log.WithField("done", done).WithField("total", total).Debug("progress")
				},
			})
			if err != nil {
				return err
			}
			withCounts(log, l).WithField("dir", rep.Dir).Info("done")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "options file (yaml, toml or json)")
	f.StringVarP(&flags.OutputDir, "output", "o", "", "output directory")
	f.BoolVar(&flags.Overwrite, "overwrite", false, "write into an existing output directory")
	f.BoolVar(&flags.NoInstances, "no-instances", false, "export every mesh with its own geometry")
	f.BoolVar(&flags.Wireframe, "wireframe", false, "add the wireframe overlay")
	f.BoolVar(&flags.Preview, "preview", false, "write preview.glb")
	return cmd
}
