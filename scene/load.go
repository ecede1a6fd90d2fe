package scene

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	mxs "github.com/flywave/go-mxs"
)

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Load reads a scene snapshot from a YAML or JSON file and prepares it.
// glTF and GLB files are converted with LoadGLTF.
func Load(path string) (*Scene, error) {
	if isGLTF(path) {
		return LoadGLTF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Scene{}
	if isJSON(path) {
		err = json.Unmarshal(data, s)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(s)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode scene %s", filepath.Base(path))
	}
	if err := s.Prepare(); err != nil {
		return nil, errors.Wrapf(err, "scene %s", filepath.Base(path))
	}
	return s, nil
}

// Save writes s to path as YAML or JSON according to the extension.
func Save(path string, s *Scene) error {
	var data []byte
	var err error
	if isJSON(path) {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		buf := &bytes.Buffer{}
		enc := yaml.NewEncoder(buf)
		enc.SetIndent(2)
		if err = enc.Encode(s); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	}
	if err != nil {
		return errors.Wrap(err, "encode scene")
	}
	return mxs.WriteFileAtomic(path, data)
}
