package feed

import (
	"fmt"
	"strings"
)

// Element is one fully-read XML element: local name, attributes, the
// character data directly inside it, and child elements in document order.
// Namespaces are dropped; the feed vocabularies are disjoint on local name.
type Element struct {
	Name     string
	Attr     map[string]string
	Text     string
	Children []*Element
}

// MalformedElementError reports a field-level contract violation inside one
// element: a required field missing or duplicated, an unparseable value, or
// an unrecognized tag. It is fatal to the document containing the element.
type MalformedElementError struct {
	Element string
	Field   string
	Reason  string
}

func (e *MalformedElementError) Error() string {
	return fmt.Sprintf("malformed %s element: field %s: %s", e.Element, e.Field, e.Reason)
}

func malformed(el *Element, field, format string, args ...interface{}) error {
	return &MalformedElementError{
		Element: el.Name,
		Field:   field,
		Reason:  fmt.Sprintf(format, args...),
	}
}

// RequiredAttr returns the named attribute, or a MalformedElementError if
// the element does not carry it.
func (e *Element) RequiredAttr(name string) (string, error) {
	if v, ok := e.Attr[name]; ok {
		return v, nil
	}
	return "", malformed(e, "@"+name, "required attribute missing")
}

// Malformed builds a field-level contract violation for this element. Used
// by callers whose parse step fails on a value the structural accessors
// cannot check (durations, times, dates).
func (e *Element) Malformed(field, format string, args ...interface{}) error {
	return malformed(e, field, format, args...)
}

// TrimmedText returns the element's own character data without surrounding
// whitespace.
func (e *Element) TrimmedText() string {
	return strings.TrimSpace(e.Text)
}

// All returns every direct child with the given local name.
func (e *Element) All(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// One returns the single direct child with the given name. Zero or more
// than one is a MalformedElementError: a field declared "exactly one" is
// never silently defaulted.
func (e *Element) One(name string) (*Element, error) {
	found := e.All(name)
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, malformed(e, name, "required field missing")
	default:
		return nil, malformed(e, name, "found %d occurrences, want exactly one", len(found))
	}
}

// MaybeOne returns the single direct child with the given name, or nil if
// absent. More than one is still an error.
func (e *Element) MaybeOne(name string) (*Element, error) {
	found := e.All(name)
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, nil
	default:
		return nil, malformed(e, name, "found %d occurrences, want at most one", len(found))
	}
}

// OneText returns the text of the single direct child with the given name.
func (e *Element) OneText(name string) (string, error) {
	c, err := e.One(name)
	if err != nil {
		return "", err
	}
	return c.TrimmedText(), nil
}

// MaybeOneText returns the text of the at-most-one direct child with the
// given name; nil if the child is absent.
func (e *Element) MaybeOneText(name string) (*string, error) {
	c, err := e.MaybeOne(name)
	if err != nil || c == nil {
		return nil, err
	}
	text := c.TrimmedText()
	return &text, nil
}

// Descend follows a chain of exactly-one children.
func (e *Element) Descend(names ...string) (*Element, error) {
	cur := e
	for _, name := range names {
		next, err := cur.One(name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// MaybeDescend follows a chain of at-most-one children, returning nil as
// soon as any link in the chain is absent.
func (e *Element) MaybeDescend(names ...string) (*Element, error) {
	cur := e
	for _, name := range names {
		next, err := cur.MaybeOne(name)
		if err != nil || next == nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// FindAll returns every descendant with the given name, depth-first. Used
// by the registry feed, whose coordinate fields sit at varying depths.
func (e *Element) FindAll(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
		out = append(out, c.FindAll(name)...)
	}
	return out
}
