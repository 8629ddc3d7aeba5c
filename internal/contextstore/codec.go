package contextstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// FormatVersion is written to metadata.version on every save.
const FormatVersion = "1.0.0"

// emptyDocument is the envelope used when nothing has been read yet.
const emptyDocument = `{"contexts":[],"agents":[],"metadata":{}}`

var prettyOptions = &pretty.Options{Width: 80, Indent: "  "}

// Format identifies the on-disk shape a Container was decoded from.
type Format int

const (
	// FormatMissing means no file existed.
	FormatMissing Format = iota
	// FormatLegacyArray is the oldest layout: a bare array of contexts.
	FormatLegacyArray
	// FormatEnvelope is the current layout: an object with a contexts key.
	FormatEnvelope
	// FormatCorrupt means the file was unreadable as either layout.
	FormatCorrupt
)

func (f Format) String() string {
	switch f {
	case FormatMissing:
		return "missing"
	case FormatLegacyArray:
		return "legacy-array"
	case FormatEnvelope:
		return "envelope"
	case FormatCorrupt:
		return "corrupt"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Metadata is rewritten on every save.
type Metadata struct {
	Version     string    `json:"version,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitzero"`
}

// Container is the decoded store file. Keys other than contexts and
// metadata (agents included) are kept verbatim in the underlying document.
type Container struct {
	Contexts []Context
	Metadata Metadata
	Format   Format

	doc []byte
}

// NewContainer returns an empty container, as for a first run.
func NewContainer() *Container {
	return &Container{Contexts: []Context{}, Format: FormatMissing}
}

// Agents returns the raw agents value, or an empty array when absent.
func (c *Container) Agents() json.RawMessage {
	if c.doc != nil {
		if r := gjson.GetBytes(c.doc, "agents"); r.Exists() {
			return json.RawMessage(r.Raw)
		}
	}
	return json.RawMessage("[]")
}

// Decode parses a store file. The returned container is never nil: when the
// data cannot be understood it holds no contexts and the error is a
// *CorruptDataError describing why.
func Decode(data []byte) (*Container, error) {
	c := NewContainer()
	if !gjson.ValidBytes(data) {
		c.Format = FormatCorrupt
		return c, &CorruptDataError{Err: errors.New("not valid JSON")}
	}
	root := gjson.ParseBytes(data)
	switch {
	case root.IsArray():
		contexts, err := decodeContexts(root.Raw)
		if err != nil {
			c.Format = FormatCorrupt
			return c, &CorruptDataError{Err: err}
		}
		c.Contexts = contexts
		c.Format = FormatLegacyArray
		return c, nil

	case root.IsObject():
		c.doc = append([]byte(nil), data...)
		if meta := root.Get("metadata"); meta.IsObject() {
			// Best effort: a malformed metadata block is rewritten on save anyway.
			_ = json.Unmarshal([]byte(meta.Raw), &c.Metadata)
		}
		raw := root.Get("contexts")
		if !raw.IsArray() {
			c.Format = FormatCorrupt
			if !raw.Exists() {
				return c, &CorruptDataError{Err: errors.New("object has no contexts field")}
			}
			return c, &CorruptDataError{Err: fmt.Errorf("contexts is a %s, not an array", raw.Type)}
		}
		contexts, err := decodeContexts(raw.Raw)
		if err != nil {
			c.Format = FormatCorrupt
			return c, &CorruptDataError{Err: err}
		}
		c.Contexts = contexts
		c.Format = FormatEnvelope
		return c, nil
	}

	c.Format = FormatCorrupt
	return c, &CorruptDataError{Err: fmt.Errorf("top-level value is a %s", root.Type)}
}

// decodeContexts unmarshals an array of contexts, filling defaults and
// dropping later entries that repeat an id.
func decodeContexts(raw string) ([]Context, error) {
	var contexts []Context
	if err := json.Unmarshal([]byte(raw), &contexts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contexts: %w", err)
	}
	seen := make(map[string]bool, len(contexts))
	out := make([]Context, 0, len(contexts))
	for _, c := range contexts {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		c.normalize()
		out = append(out, c)
	}
	return out, nil
}

// Encode serializes the container as an indented envelope, stamping
// metadata with now. Unknown top-level keys of the decoded document are
// preserved in place.
func Encode(c *Container, now time.Time) ([]byte, error) {
	doc := c.doc
	if doc == nil {
		doc = []byte(emptyDocument)
	}

	contexts := c.Contexts
	if contexts == nil {
		contexts = []Context{}
	}
	raw, err := json.Marshal(contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contexts: %w", err)
	}
	if doc, err = sjson.SetRawBytes(doc, "contexts", raw); err != nil {
		return nil, fmt.Errorf("failed to set contexts: %w", err)
	}
	if !gjson.GetBytes(doc, "agents").Exists() {
		if doc, err = sjson.SetRawBytes(doc, "agents", []byte("[]")); err != nil {
			return nil, fmt.Errorf("failed to set agents: %w", err)
		}
	}

	meta := Metadata{Version: FormatVersion, LastUpdated: now.UTC()}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if doc, err = sjson.SetRawBytes(doc, "metadata", metaRaw); err != nil {
		return nil, fmt.Errorf("failed to set metadata: %w", err)
	}

	out := pretty.PrettyOptions(doc, prettyOptions)
	c.Metadata = meta
	c.doc = out
	c.Format = FormatEnvelope
	return out, nil
}

// ReadContainer loads the store file at path. A missing file yields an empty
// container and no error. A corrupt file yields an empty context list and a
// *CorruptDataError. Any other read failure is a *StorageError.
func ReadContainer(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewContainer(), nil
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	c, err := Decode(data)
	var corrupt *CorruptDataError
	if errors.As(err, &corrupt) {
		corrupt.Path = path
	}
	return c, err
}

// WriteContainer encodes c and replaces the file at path, creating the
// parent directory first.
func WriteContainer(path string, c *Container, now time.Time) error {
	data, err := Encode(c, now)
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place so a
// reader never sees a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
