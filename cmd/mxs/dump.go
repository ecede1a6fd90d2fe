package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/record"
)

func container(k mxs.Kind) mxs.Container {
	switch k {
	case mxs.KindMesh:
		return &mxs.BinMesh{}
	case mxs.KindHair:
		return &mxs.BinHair{}
	case mxs.KindParticles:
		return &mxs.BinParticles{}
	}
	return &mxs.BinWire{}
}

func dumpCommand() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print a decoded container or manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			cfg := spew.ConfigState{Indent: "  ", MaxDepth: depth, SortKeys: true, DisablePointerAddresses: true}
			out := cmd.OutOrStdout()
			if strings.EqualFold(filepath.Ext(path), ".json") {
				m, err := record.ReadFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "manifest %s run %s scene %q\n", m.Version, m.RunID, m.Scene)
				cfg.Fdump(out, m.Files, m.Records)
				return nil
			}
			k, order, err := mxs.Peek(path)
			if err != nil {
				return err
			}
			c := container(k)
			if err := mxs.ReadFrom(path, c); err != nil {
				return err
			}
			fi, err := os.Stat(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s %d bytes\n", k, order, fi.Size())
			cfg.Fdump(out, c)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum nesting depth, 0 for no limit")
	return cmd
}
