// The mxs command exports scene snapshots into renderer manifests and binary
// containers, and reads them back.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flywave/go-mxs/runlog"
)

var logLevel string

func newLogger(l *runlog.Log, level string) (*logrus.Logger, error) {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := runlog.Attach(l, os.Stderr, lv)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger, nil
}

// withCounts adds the warning and error totals collected in l.
func withCounts(log logrus.FieldLogger, l *runlog.Log) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"warnings": l.Count(runlog.Warning),
		"errors":   l.Count(runlog.Error),
	})
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mxs",
		Short:         "Serialize scenes for the renderer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.AddCommand(exportCommand(), importCommand(), dumpCommand(), gltfCommand())
	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mxs:", err)
		os.Exit(1)
	}
}
