package record

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	mxs "github.com/flywave/go-mxs"
)

// FormatVersion is the manifest layout written by this package.
const FormatVersion = "1.1.0"

// readable accepts every manifest of the current major version.
var readable = mustConstraint("^1.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

var (
	ErrVersion  = errors.New("unsupported manifest version")
	ErrChecksum = errors.New("container checksum mismatch")
)

// File describes one container written next to the manifest.
type File struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Size     int64  `json:"size"`
	Checksum string `json:"blake2b"`
}

// Sum returns the hex encoded BLAKE2b-256 digest of data.
func Sum(data []byte) string {
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Describe computes the entry of the container at dir/rel.
func Describe(dir, rel string, k mxs.Kind) (File, error) {
	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		return File{}, err
	}
	return File{Path: filepath.ToSlash(rel), Kind: k.Magic(), Size: int64(len(data)), Checksum: Sum(data)}, nil
}

// Verify checks the container below dir against its entry.
func (f File) Verify(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f.Path)))
	if err != nil {
		return err
	}
	if int64(len(data)) != f.Size || Sum(data) != f.Checksum {
		return errors.Wrap(ErrChecksum, f.Path)
	}
	return nil
}

type Header struct {
	Version *semver.Version
	RunID   uuid.UUID
	Scene   string
}

// Manifest is the ordered record list of one export run.
type Manifest struct {
	Header
	Files   []File
	Records []Record
}

func NewManifest(scene string) *Manifest {
	return &Manifest{
		Header: Header{
			Version: semver.MustParse(FormatVersion),
			RunID:   uuid.New(),
			Scene:   scene,
		},
	}
}

func (m *Manifest) Add(r Record) { m.Records = append(m.Records, r) }

// Find returns the record named name.
func (m *Manifest) Find(name string) Record {
	for _, r := range m.Records {
		if r.Header().Name == name {
			return r
		}
	}
	return nil
}

// ByType returns the records of type t in manifest order.
func (m *Manifest) ByType(t mxs.ExportType) []Record {
	var out []Record
	for _, r := range m.Records {
		if r.Type() == t {
			out = append(out, r)
		}
	}
	return out
}

func writeObject(buf *bytes.Buffer, fs []Field) error {
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Key)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return nil
}

// MarshalRecord encodes r as a JSON object whose keys follow the field table,
// preceded by its type.
func MarshalRecord(r Record) ([]byte, error) {
	t := r.Type()
	fs := append([]Field{{"type", &t}}, r.Fields()...)
	buf := &bytes.Buffer{}
	if err := writeObject(buf, fs); err != nil {
		return nil, errors.Wrapf(err, "record %s", r.Header().Name)
	}
	return buf.Bytes(), nil
}

// UnmarshalRecord decodes a record written by MarshalRecord. Keys missing
// from data keep their zero value, unknown keys are an error.
func UnmarshalRecord(data []byte) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var t mxs.ExportType
	tv, ok := raw["type"]
	if !ok {
		return nil, errors.New("record without type")
	}
	if err := json.Unmarshal(tv, &t); err != nil {
		return nil, err
	}
	delete(raw, "type")
	r, err := New(t)
	if err != nil {
		return nil, err
	}
	for _, f := range r.Fields() {
		v, ok := raw[f.Key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.Value); err != nil {
			return nil, errors.Wrapf(err, "%s field %s", t, f.Key)
		}
		delete(raw, f.Key)
	}
	if len(raw) > 0 {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, errors.Errorf("%s record has unknown fields %q", t, keys)
	}
	return r, nil
}

type header struct {
	Version string `json:"version"`
	RunID   string `json:"run_id"`
	Scene   string `json:"scene"`
}

type document struct {
	Header  header            `json:"header"`
	Files   []File            `json:"files"`
	Records []json.RawMessage `json:"records"`
}

func (m *Manifest) Marshal() ([]byte, error) {
	doc := document{
		Header: header{Version: m.Version.String(), RunID: m.RunID.String(), Scene: m.Scene},
		Files:  m.Files,
	}
	if doc.Files == nil {
		doc.Files = []File{}
	}
	doc.Records = make([]json.RawMessage, 0, len(m.Records))
	for _, r := range m.Records {
		b, err := MarshalRecord(r)
		if err != nil {
			return nil, err
		}
		doc.Records = append(doc.Records, b)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (m *Manifest) Write(w io.Writer) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// WriteFile writes the manifest atomically.
func (m *Manifest) WriteFile(path string) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	return mxs.WriteFileAtomic(path, b)
}

func Read(rd io.Reader) (*Manifest, error) {
	var doc document
	if err := json.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	v, err := semver.NewVersion(doc.Header.Version)
	if err != nil {
		return nil, errors.Wrapf(ErrVersion, "%q", doc.Header.Version)
	}
	if !readable.Check(v) {
		return nil, errors.Wrapf(ErrVersion, "%s", v)
	}
	m := &Manifest{
		Header: Header{Version: v, Scene: doc.Header.Scene},
		Files:  doc.Files,
	}
	if doc.Header.RunID != "" {
		if m.RunID, err = uuid.Parse(doc.Header.RunID); err != nil {
			return nil, errors.Wrap(err, "run id")
		}
	}
	for i, raw := range doc.Records {
		r, err := UnmarshalRecord(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
		m.Records = append(m.Records, r)
	}
	return m, nil
}

func ReadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
