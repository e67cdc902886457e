package http

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

type Field struct{ Name, Value string }

var ErrMalformedFieldLine = errors.New("field line is malformed")

func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Wrapf(ErrMalformedFieldLine, "colon seperator not found: %q", fieldLine)
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	if !IsValidToken(string(name)) {
		return Field{}, errors.Wrapf(ErrMalformedFieldLine, "invalid field name: %q", name)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = bytes.Trim(value, string(OWS))

	return Field{Name: string(name), Value: string(value)}, nil
}

func (f Field) Text() string { return f.Name + ": " + f.Value }

// Fields keeps header fields in wire order. Names compare case-insensitively.
type Fields []Field

func (fs Fields) Get(name string) (string, bool) {
	for _, f := range fs {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

func (fs Fields) Values(name string) []string {
	var values []string
	for _, f := range fs {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Set replaces every field named name with a single one, keeping the
// position of the first occurrence.
func (fs *Fields) Set(name, value string) {
	out := (*fs)[:0]
	replaced := false
	for _, f := range *fs {
		if strings.EqualFold(f.Name, name) {
			if replaced {
				continue
			}
			f.Value = value
			replaced = true
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Field{Name: name, Value: value})
	}
	*fs = out
}

func (fs *Fields) Add(name, value string) {
	*fs = append(*fs, Field{Name: name, Value: value})
}

func (fs *Fields) Del(name string) {
	out := (*fs)[:0]
	for _, f := range *fs {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*fs = out
}

type RequestHead struct {
	Method  string
	Target  string
	Version Version
	Fields  Fields
}

type ResponseHead struct {
	Version      Version
	StatusCode   uint
	ReasonPhrase string
	Fields       Fields

	// Raw holds the status line and field lines exactly as received,
	// including the terminating empty line.
	Raw []byte
}
