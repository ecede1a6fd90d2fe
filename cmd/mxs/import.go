package main

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flywave/go-mxs/importer"
	"github.com/flywave/go-mxs/runlog"
	"github.com/flywave/go-mxs/scene"
)

func importCommand() *cobra.Command {
	var (
		output string
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "import DIR",
		Short: "Rebuild a scene snapshot from an export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = "info"
			}
			l := runlog.New(logrus.WarnLevel)
			log, err := newLogger(l, level)
			if err != nil {
				return err
			}
			s, err := importer.Import(args[0], importer.Options{Verify: verify, Log: log})
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(args[0], "scene.yaml")
			}
			if err := scene.Save(output, s); err != nil {
				return err
			}
			withCounts(log, l).WithField("scene", output).Info("imported")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "scene file to write, yaml or json (default DIR/scene.yaml)")
	cmd.Flags().BoolVar(&verify, "verify", true, "check container checksums")
	return cmd
}
