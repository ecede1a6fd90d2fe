package record

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	mxs "github.com/flywave/go-mxs"
)

// Link is one (name, parent, type) entry of the hierarchy list. It encodes
// as a JSON triple with a null parent for top level records.
type Link struct {
	Name   string
	Parent string
	Type   mxs.ExportType
}

func (l Link) MarshalJSON() ([]byte, error) {
	var parent *string
	if l.Parent != "" {
		parent = &l.Parent
	}
	return json.Marshal([]interface{}{l.Name, parent, l.Type})
}

func (l *Link) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return errors.Errorf("hierarchy entry has %d parts, want 3", len(parts))
	}
	var parent *string
	if err := json.Unmarshal(parts[0], &l.Name); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &parent); err != nil {
		return err
	}
	l.Parent = ""
	if parent != nil {
		l.Parent = *parent
	}
	return json.Unmarshal(parts[2], &l.Type)
}

type Hierarchy []Link

// HierarchyOf lists the records in manifest order.
func HierarchyOf(m *Manifest) Hierarchy {
	h := make(Hierarchy, 0, len(m.Records))
	for _, r := range m.Records {
		c := r.Header()
		h = append(h, Link{Name: c.Name, Parent: c.Parent, Type: r.Type()})
	}
	return h
}

// Check reports parents that name no earlier entry. Parents always precede
// their children in an exported list.
func (h Hierarchy) Check() error {
	seen := make(map[string]bool, len(h))
	var errs mxs.Errors
	for _, l := range h {
		if seen[l.Name] {
			errs = errs.Append(errors.Errorf("duplicate entry %q", l.Name))
		}
		if l.Parent != "" && !seen[l.Parent] {
			errs = errs.Append(errors.Errorf("%q refers to parent %q before it is listed", l.Name, l.Parent))
		}
		seen[l.Name] = true
	}
	return errs.Return()
}

func (h Hierarchy) WriteFile(path string) error {
	b, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return mxs.WriteFileAtomic(path, b)
}

func ReadHierarchy(path string) (Hierarchy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h Hierarchy
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, errors.Wrap(err, "decode hierarchy")
	}
	return h, nil
}
