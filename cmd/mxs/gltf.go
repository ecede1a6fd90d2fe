package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/export"
	"github.com/flywave/go-mxs/record"
)

func gltfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gltf DIR OUT.glb",
		Short: "Build a glTF preview from an export directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			m, err := record.ReadFile(filepath.Join(dir, export.MANIFEST_FILE))
			if err != nil {
				return err
			}
			meshes := make(map[string]*mxs.BinMesh)
			var errs mxs.Errors
			for _, r := range m.ByType(mxs.MESH) {
				meshes[r.Header().Name], err = readMesh(dir, r.(*record.Mesh))
				errs = errs.Append(err)
			}
			for _, r := range m.ByType(mxs.BASE_INSTANCE) {
				meshes[r.Header().Name], err = readMesh(dir, r.(*record.Mesh))
				errs = errs.Append(err)
			}
			if err := errs.Return(); err != nil {
				return err
			}
			data, err := export.Preview(m, func(name string) *mxs.BinMesh { return meshes[name] })
			if err != nil {
				return err
			}
			return mxs.WriteFileAtomic(args[1], data)
		},
	}
}

func readMesh(dir string, r *record.Mesh) (*mxs.BinMesh, error) {
	bm := &mxs.BinMesh{}
	if err := mxs.ReadFrom(filepath.Join(dir, filepath.FromSlash(r.File)), bm); err != nil {
		return nil, err
	}
	return bm, nil
}
