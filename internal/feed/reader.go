package feed

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Reader incrementally parses one XML document, yielding a fully-read
// Element for each element whose local name is in the interesting set, in
// document order. Tokens outside an interesting element are discarded as
// soon as they are read, so retained memory is bounded by the depth of the
// open ancestor path plus the single element being harvested, not by
// document size.
//
// A matched element is consumed as one unit: descendants sharing an
// interesting name are part of their ancestor's harvest and are never
// reported again. The sequence is finite and non-restartable.
type Reader struct {
	decoder *xml.Decoder
	want    map[string]bool
}

// NewReader returns a Reader over r that reports elements with the given
// local names.
func NewReader(r io.Reader, names ...string) *Reader {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	return &Reader{
		decoder: xml.NewDecoder(r),
		want:    want,
	}
}

// Next returns the next element of interest, or io.EOF when the document is
// exhausted.
func (r *Reader) Next() (*Element, error) {
	for {
		tok, err := r.decoder.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read XML token: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || !r.want[start.Name.Local] {
			continue
		}

		el, err := r.readElement(start)
		if err != nil {
			return nil, err
		}
		return el, nil
	}
}

// readElement materializes the subtree opened by start, consuming its end
// tag. Only this subtree is ever held in memory.
func (r *Reader) readElement(start xml.StartElement) (*Element, error) {
	el := &Element{Name: start.Name.Local}
	if len(start.Attr) > 0 {
		el.Attr = make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			el.Attr[a.Name.Local] = a.Value
		}
	}

	for {
		tok, err := r.decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read element %s: %w", start.Name.Local, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := r.readElement(t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			el.Text += string(t)
		case xml.EndElement:
			return el, nil
		}
	}
}
