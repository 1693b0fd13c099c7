// Package backup exports the whole record store to a document or a compact
// text form and imports it back, either merging into or replacing the
// existing records.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kalambet/seedlink/internal/kvstore"
)

// ErrMalformed is returned when an import source cannot be parsed. Nothing
// is written in that case.
var ErrMalformed = errors.New("malformed settings document")

// Mode decides what happens to keys absent from an imported document.
type Mode int

const (
	// Merge overwrites only the keys present in the document.
	Merge Mode = iota
	// Replace drops every existing key first.
	Replace
)

func (m Mode) String() string {
	if m == Replace {
		return "replace"
	}
	return "merge"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "merge":
		return Merge, nil
	case "replace":
		return Replace, nil
	}
	return Merge, fmt.Errorf("unknown import mode %q", s)
}

// Format names an encoding of a Document.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatCompact Format = "compact"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML, FormatCompact:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown settings format %q", s)
}

// Document is the full content of a store: every key with its scalar value.
type Document map[string]kvstore.Value

// Snapshot reads every key of the store.
func Snapshot(store kvstore.Store) (Document, error) {
	all, err := store.ScanPrefix("")
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return Document(all), nil
}

// Encode writes the document in the given format. Errors from w are
// returned unchanged.
func (d Document) Encode(w io.Writer, f Format) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON, "":
		data, err = encodeJSON(d)
	case FormatYAML:
		data, err = encodeYAML(d)
	case FormatCompact:
		data = []byte(encodeCompact(d))
	default:
		return fmt.Errorf("unknown settings format %q", f)
	}
	if err != nil {
		return fmt.Errorf("encoding %s document: %w", f, err)
	}
	_, err = w.Write(data)
	return err
}

// Decode reads a whole document. Read errors are returned unchanged; parse
// errors wrap ErrMalformed.
func Decode(r io.Reader, f Format) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatJSON, "":
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	case FormatCompact:
		return decodeCompact(string(data))
	}
	return nil, fmt.Errorf("unknown settings format %q", f)
}

// Export writes the whole store to w.
func Export(store kvstore.Store, w io.Writer, f Format) error {
	doc, err := Snapshot(store)
	if err != nil {
		return err
	}
	return doc.Encode(w, f)
}

// ExportAll writes the store as a JSON document.
func ExportAll(store kvstore.Store, w io.Writer) error {
	return Export(store, w, FormatJSON)
}

// ExportCompact renders the store in the compact line format used for QR
// transport.
func ExportCompact(store kvstore.Store) (string, error) {
	doc, err := Snapshot(store)
	if err != nil {
		return "", err
	}
	return encodeCompact(doc), nil
}

// Import parses r completely and then applies it in one commit. It returns
// the number of keys written.
func Import(store kvstore.Store, r io.Reader, f Format, mode Mode) (int, error) {
	doc, err := Decode(r, f)
	if err != nil {
		return 0, err
	}
	return ImportDocument(store, doc, mode)
}

// ImportAll imports a JSON document.
func ImportAll(store kvstore.Store, r io.Reader, mode Mode) (int, error) {
	return Import(store, r, FormatJSON, mode)
}

// ImportCompact imports the compact line format.
func ImportCompact(store kvstore.Store, s string, mode Mode) (int, error) {
	doc, err := decodeCompact(s)
	if err != nil {
		return 0, err
	}
	return ImportDocument(store, doc, mode)
}

// ImportDocument applies an already parsed document.
func ImportDocument(store kvstore.Store, doc Document, mode Mode) (int, error) {
	b := kvstore.NewBatch()
	if mode == Replace {
		b.Clear()
	}
	for _, k := range sortedKeys(doc) {
		b.Set(k, doc[k])
	}
	if err := store.Commit(b); err != nil {
		return 0, fmt.Errorf("applying settings: %w", err)
	}
	slog.Default().Info("settings imported", "keys", b.Len(), "mode", mode)
	return b.Len(), nil
}

// ExportBytes is a convenience for callers that need the encoded document in memory.
func ExportBytes(store kvstore.Store, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(store, &buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
