package mxs

// BinHair is the content of a BINHAIR container: a flat list of strand
// points, three doubles per point. The number of points per strand travels
// in the manifest.
type BinHair struct {
	Data []float64
}

func (h *BinHair) Kind() Kind { return KindHair }

func (h *BinHair) marshal(w *writer) bool {
	return w.count(len(h.Data)) || w.float64s(h.Data)
}

func (h *BinHair) unmarshal(r *reader) bool {
	var n int
	if r.count(&n, 8) {
		return true
	}
	data, failed := r.float64s(n)
	if failed {
		return true
	}
	h.Data = data
	return false
}

func BinHairReadFrom(path string) (*BinHair, error) {
	h := &BinHair{}
	if err := ReadFrom(path, h); err != nil {
		return nil, err
	}
	return h, nil
}

func BinHairWriteTo(path string, h *BinHair) error {
	return WriteTo(path, h)
}
