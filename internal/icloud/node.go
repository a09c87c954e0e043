package icloud

import (
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"time"
)

// Node is a drive tree node: either *Folder or *File. The set of
// implementations is sealed; callers dispatch with a type switch.
type Node interface {
	node()
}

// Folder is a drive folder with its eagerly-decoded children. The items
// belong exclusively to this folder — a fetched tree is a detached snapshot
// of server state, safe to use without further locking.
type Folder struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Items     []Node
}

func (*Folder) node() {}

// Children returns a restartable iterator over the folder's already-decoded
// items. Iteration never touches the network.
func (f *Folder) Children() iter.Seq[Node] {
	return slices.Values(f.Items)
}

// File is a drive file. LastOpenedAt is zero when the server did not report
// a usable last-opened timestamp.
type File struct {
	ID           string
	Name         string
	Size         int64
	CreatedAt    time.Time
	ChangedAt    time.Time
	ModifiedAt   time.Time
	LastOpenedAt time.Time
}

func (*File) node() {}

// nodeJSON mirrors the item details payload. Items stays raw so that each
// child can be decoded (and possibly skipped) independently.
type nodeJSON struct {
	Type         string          `json:"type"`
	DriveWSID    string          `json:"drivewsid"`
	Name         string          `json:"name"`
	Size         int64           `json:"size"`
	DateCreated  string          `json:"dateCreated"`
	DateChanged  string          `json:"dateChanged"`
	DateModified string          `json:"dateModified"`
	LastOpened   string          `json:"lastOpenTime"`
	Items        json.RawMessage `json:"items"`
}

// DecodeNode decodes a single item details JSON value into a Node,
// dispatching on its "type" field. Unknown or missing types yield
// ErrInvalidNodeType; missing or malformed required fields are hard errors.
func DecodeNode(data []byte) (Node, error) {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("icloud: decoding node: %w", err)
	}

	switch raw.Type {
	case "FOLDER":
		return raw.toFolder()
	case "FILE":
		return raw.toFile()
	case "":
		return nil, fmt.Errorf("icloud: node has no type field: %w", ErrInvalidNodeType)
	default:
		return nil, fmt.Errorf("icloud: node type %q: %w", raw.Type, ErrInvalidNodeType)
	}
}

func (raw *nodeJSON) toFolder() (*Folder, error) {
	if err := raw.requireIdentity(); err != nil {
		return nil, err
	}

	created, err := parseNodeTime(raw.DateCreated, "dateCreated", raw.DriveWSID)
	if err != nil {
		return nil, err
	}

	folder := &Folder{
		ID:        raw.DriveWSID,
		Name:      raw.Name,
		CreatedAt: created,
	}

	// A malformed child must not abort an otherwise-valid listing, so each
	// element is decoded independently and failures are dropped. A missing
	// or non-array items field means no children.
	var children []json.RawMessage
	if len(raw.Items) > 0 {
		if err := json.Unmarshal(raw.Items, &children); err != nil {
			children = nil
		}
	}

	folder.Items = make([]Node, 0, len(children))

	for _, child := range children {
		node, err := DecodeNode(child)
		if err != nil {
			continue
		}

		folder.Items = append(folder.Items, node)
	}

	return folder, nil
}

func (raw *nodeJSON) toFile() (*File, error) {
	if err := raw.requireIdentity(); err != nil {
		return nil, err
	}

	file := &File{
		ID:   raw.DriveWSID,
		Name: raw.Name,
		Size: raw.Size,
	}

	var err error

	if file.CreatedAt, err = parseNodeTime(raw.DateCreated, "dateCreated", raw.DriveWSID); err != nil {
		return nil, err
	}

	if file.ChangedAt, err = parseNodeTime(raw.DateChanged, "dateChanged", raw.DriveWSID); err != nil {
		return nil, err
	}

	if file.ModifiedAt, err = parseNodeTime(raw.DateModified, "dateModified", raw.DriveWSID); err != nil {
		return nil, err
	}

	// Last-opened is optional: absent or unparsable yields the zero time.
	if raw.LastOpened != "" {
		if t, err := time.Parse(time.RFC3339, raw.LastOpened); err == nil {
			file.LastOpenedAt = t
		}
	}

	return file, nil
}

// requireIdentity checks the fields every node kind must carry.
func (raw *nodeJSON) requireIdentity() error {
	if raw.DriveWSID == "" {
		return fmt.Errorf("icloud: %s node missing drivewsid", raw.Type)
	}

	if raw.Name == "" {
		return fmt.Errorf("icloud: node %s missing name", raw.DriveWSID)
	}

	return nil
}

// parseNodeTime parses a required RFC3339 timestamp field. Unlike the
// optional last-opened field, a malformed value here fails the whole node.
func parseNodeTime(raw, field, id string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("icloud: node %s missing %s", id, field)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("icloud: node %s: parsing %s: %w", id, field, err)
	}

	return t, nil
}
