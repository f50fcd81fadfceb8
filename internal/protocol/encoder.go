package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// Format selects a document encoding.
type Format string

const (
	// FormatJSON is the encoding the host parses.
	FormatJSON Format = "json"
	// FormatYAML is for reading documents by hand.
	FormatYAML Format = "yaml"
)

// Encoder writes a document to w.
type Encoder interface {
	Encode(w io.Writer, doc *Document) error
}

// JSONEncoder writes a document as a JSON array, one statement per line.
type JSONEncoder struct{}

// Encode implements Encoder. The output is always an array, even when the
// document is empty.
func (JSONEncoder) Encode(w io.Writer, doc *Document) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, s := range doc.Statements {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding %s statement: %w", s.Kind, err)
		}
		buf.Write(b)
	}
	if len(doc.Statements) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// YAMLEncoder writes a document as a YAML sequence.
type YAMLEncoder struct{}

// Encode implements Encoder.
func (YAMLEncoder) Encode(w io.Writer, doc *Document) error {
	stmts := doc.Statements
	if stmts == nil {
		stmts = []Statement{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(stmts); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

// NewEncoder returns the encoder for format. An empty format means JSON.
func NewEncoder(format string) (Encoder, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatJSON, "":
		return JSONEncoder{}, nil
	case FormatYAML:
		return YAMLEncoder{}, nil
	default:
		return nil, core.ErrValidation(core.CodeInvalidField, fmt.Sprintf("unknown output format %q", format))
	}
}

// Emitter validates and encodes a document, then hands it to the output
// stream in a single write.
type Emitter struct {
	out io.Writer
	enc Encoder
}

// NewEmitter creates an emitter. A nil encoder means JSON.
func NewEmitter(out io.Writer, enc Encoder) *Emitter {
	if enc == nil {
		enc = JSONEncoder{}
	}
	return &Emitter{out: out, enc: enc}
}

// Emit writes doc. Any failure is an output error.
func (e *Emitter) Emit(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := e.enc.Encode(&buf, doc); err != nil {
		return core.ErrOutput("encoding document").WithCause(err)
	}
	if _, err := e.out.Write(buf.Bytes()); err != nil {
		return core.ErrOutput("writing document").WithCause(err)
	}
	return nil
}
