// Package metadata reads the meeting metadata recorded alongside a
// BigBlueButton recording.
package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// CallbackURLKey is the metadata key carrying the upload callback endpoint.
const CallbackURLKey = "int-bunny-ready-url"

// ErrUnavailable is returned when the metadata source cannot be read or parsed.
var ErrUnavailable = errors.New("meeting metadata unavailable")

// Metadata is an immutable key/value view of a meeting's metadata.
type Metadata struct {
	values map[string]string
}

// New builds Metadata from a plain map. The map is copied.
func New(values map[string]string) Metadata {
	m := Metadata{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Load reads the attributes of the first <metadata> element in the
// events.xml file at path.
func Load(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer f.Close()

	values, err := decode(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: parse %s: %w", ErrUnavailable, path, err)
	}
	return Metadata{values: values}, nil
}

func decode(r io.Reader) (map[string]string, error) {
	dec := xml.NewDecoder(r)
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !sawRoot {
				return nil, errors.New("empty document")
			}
			return map[string]string{}, nil
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != "metadata" {
			continue
		}

		values := make(map[string]string, len(start.Attr))
		for _, attr := range start.Attr {
			values[attr.Name.Local] = attr.Value
		}
		return values, nil
	}
}

// Lookup returns the value stored under key. Unknown keys report false.
func (m Metadata) Lookup(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// CallbackURL resolves the callback endpoint, if the meeting declared one.
func (m Metadata) CallbackURL() (string, bool) {
	return m.Lookup(CallbackURLKey)
}

// Len reports the number of metadata entries.
func (m Metadata) Len() int {
	return len(m.values)
}
