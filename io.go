package mxs

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/anaminus/parse"
	"github.com/pkg/errors"
)

// Container is one of the binary container records.
type Container interface {
	Kind() Kind
	marshal(w *writer) bool
	unmarshal(r *reader) bool
}

type writer struct {
	fw    *parse.BinaryWriter
	order binary.ByteOrder
}

func newWriter(wt io.Writer, order binary.ByteOrder) *writer {
	return &writer{fw: parse.NewBinaryWriter(wt), order: order}
}

func (w *writer) fail(err error) bool {
	return w.fw.Add(0, err)
}

func (w *writer) header(k Kind) bool {
	var b [8]byte
	w.order.PutUint64(b[:], k.Signature())
	return w.fw.Bytes(b[:])
}

func (w *writer) int32(v int32) bool {
	var b [4]byte
	w.order.PutUint32(b[:], uint32(v))
	return w.fw.Bytes(b[:])
}

func (w *writer) count(n int) bool {
	if n < 0 || n > math.MaxInt32 {
		return w.fail(errors.Wrapf(ErrCount, "count %d", n))
	}
	return w.int32(int32(n))
}

func (w *writer) float64s(vs []float64) bool {
	if len(vs) == 0 {
		return w.fw.Err() != nil
	}
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		w.order.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return w.fw.Bytes(b)
}

func (w *writer) int32s(vs []int32) bool {
	if len(vs) == 0 {
		return w.fw.Err() != nil
	}
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		w.order.PutUint32(b[4*i:], uint32(v))
	}
	return w.fw.Bytes(b)
}

func (w *writer) sentinel() bool {
	return w.fw.Bytes([]byte{0})
}

type reader struct {
	fr    *parse.BinaryReader
	order binary.ByteOrder
	size  int64
}

func (r *reader) fail(err error) bool {
	return r.fr.Add(0, err)
}

func (r *reader) remaining() int64 {
	return r.size - r.fr.N()
}

func (r *reader) int32(v *int32) bool {
	var b [4]byte
	if r.fr.Bytes(b[:]) {
		return true
	}
	*v = int32(r.order.Uint32(b[:]))
	return false
}

// count reads a length prefix and checks that n elements of elem bytes each
// fit into the remaining data.
func (r *reader) count(n *int, elem int64) bool {
	var v int32
	if r.int32(&v) {
		return true
	}
	if v < 0 {
		return r.fail(errors.Wrapf(ErrCount, "negative count %d", v))
	}
	// zero width elements are bounded by the remaining bytes as well
	if elem < 1 {
		elem = 1
	}
	if int64(v)*elem > r.remaining() {
		return r.fail(errors.Wrapf(ErrTruncated, "count %d exceeds remaining %d bytes", v, r.remaining()))
	}
	*n = int(v)
	return false
}

func (r *reader) float64s(n int) ([]float64, bool) {
	b := make([]byte, 8*n)
	if r.fr.Bytes(b) {
		return nil, true
	}
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = math.Float64frombits(r.order.Uint64(b[8*i:]))
	}
	return vs, false
}

func (r *reader) int32s(n int) ([]int32, bool) {
	b := make([]byte, 4*n)
	if r.fr.Bytes(b) {
		return nil, true
	}
	vs := make([]int32, n)
	for i := range vs {
		vs[i] = int32(r.order.Uint32(b[4*i:]))
	}
	return vs, false
}

// end consumes the sentinel and requires the data to end there.
func (r *reader) end() bool {
	var b [1]byte
	if r.fr.Bytes(b[:]) {
		return true
	}
	if b[0] != 0 {
		return r.fail(ErrSentinel)
	}
	if n := r.remaining(); n > 0 {
		return r.fail(errors.Wrapf(ErrTrailingData, "%d bytes", n))
	}
	return false
}

// Probe determines the byte order of a container of kind k from its first
// eight bytes.
func Probe(head []byte, k Kind) (binary.ByteOrder, error) {
	if len(head) < 8 {
		return nil, ErrTruncated
	}
	le := binary.LittleEndian.Uint64(head)
	be := binary.BigEndian.Uint64(head)
	switch sig := k.Signature(); {
	case le == sig:
		return binary.LittleEndian, nil
	case be == sig:
		return binary.BigEndian, nil
	}
	if other, ok := kindOf(head); ok {
		return nil, errors.Wrapf(ErrMagic, "found %s", other)
	}
	return nil, ErrByteOrder
}

func kindOf(head []byte) (Kind, bool) {
	le := binary.LittleEndian.Uint64(head)
	be := binary.BigEndian.Uint64(head)
	for k := range kinds {
		if sig := Kind(k).Signature(); le == sig || be == sig {
			return Kind(k), true
		}
	}
	return 0, false
}

// Peek reports the kind and byte order of the container stored at path.
func Peek(path string) (Kind, binary.ByteOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()
	var head [8]byte
	if _, err := io.ReadFull(f, head[:]); err != nil {
		return 0, nil, FormatError{Path: path, Offset: 0, Cause: ErrTruncated}
	}
	k, ok := kindOf(head[:])
	if !ok {
		return 0, nil, FormatError{Path: path, Offset: 0, Cause: ErrByteOrder}
	}
	order, err := Probe(head[:], k)
	return k, order, err
}

// Marshal writes c in the native byte order.
func Marshal(wt io.Writer, c Container) error {
	return MarshalOrder(wt, c, binary.NativeEndian)
}

// MarshalOrder writes c in the given byte order.
func MarshalOrder(wt io.Writer, c Container, order binary.ByteOrder) error {
	w := newWriter(wt, order)
	if w.header(c.Kind()) || c.marshal(w) || w.sentinel() {
		_, err := w.fw.End()
		return FormatError{Kind: c.Kind(), Offset: -1, Cause: err}
	}
	_, err := w.fw.End()
	return err
}

// UnMarshal decodes data into c, probing the byte order first.
func UnMarshal(data []byte, c Container) error {
	order, err := Probe(data, c.Kind())
	if err != nil {
		return FormatError{Kind: c.Kind(), Offset: 0, Cause: err}
	}
	r := &reader{
		fr:    parse.NewBinaryReader(bytes.NewReader(data[8:])),
		order: order,
		size:  int64(len(data) - 8),
	}
	if c.unmarshal(r) || r.end() {
		n, err := r.fr.End()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		return FormatError{Kind: c.Kind(), Offset: 8 + n, Cause: err}
	}
	return nil
}

// WriteTo encodes c to a temporary file beside path and renames it over path
// once complete.
func WriteTo(path string, c Container) error {
	return writeFileAtomic(path, func(wt io.Writer) error {
		return Marshal(wt, c)
	})
}

// ReadFrom decodes the container stored at path into c.
func ReadFrom(path string, c Container) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := UnMarshal(data, c); err != nil {
		var fe FormatError
		if errors.As(err, &fe) {
			fe.Path = path
			return fe
		}
		return err
	}
	return nil
}

func writeFileAtomic(path string, fill func(io.Writer) error) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()
	buf := &bytes.Buffer{}
	if err = fill(buf); err != nil {
		return err
	}
	if _, err = f.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	if err = f.Sync(); err != nil {
		return errors.Wrap(err, "sync temporary file")
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "close temporary file")
	}
	if err = os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename to %s", filepath.Base(path))
	}
	return nil
}

// WriteFileAtomic writes data to path through a temporary file.
func WriteFileAtomic(path string, data []byte) error {
	return writeFileAtomic(path, func(wt io.Writer) error {
		_, err := wt.Write(data)
		return err
	})
}
