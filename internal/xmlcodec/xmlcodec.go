// Package xmlcodec implements the small XML surface the media server
// needs: a tolerant reader for the on-disk index and ffprobe output, and
// an indented writer for persisting the index.
package xmlcodec

import (
	"encoding/xml"
	"strings"
)

// Attr is a single name="value" attribute of a tag.
type Attr struct {
	Name  string
	Value string
}

// Entry is one parsed XML tag with its attributes, nested children and,
// for leaf tags, the contained text value.
type Entry struct {
	Tag      string
	Value    string
	Attrs    []Attr
	Children []*Entry
}

// AttrValue returns the value of the named attribute or "" if absent.
func (e *Entry) AttrValue(name string) string {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// Child returns the first direct child with the given tag, or nil.
func (e *Entry) Child(tag string) *Entry {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Parse reads XML into a tree of entries. The XML declaration and
// namespaces are ignored. Parsing is best-effort: on malformed input the
// entries decoded so far are returned, never an error, so a broken tag in
// the index cannot take unrelated entries down with it.
func Parse(content string) []*Entry {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false

	var top []*Entry
	var stack []*Entry

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			entry := &Entry{Tag: t.Name.Local}
			for _, a := range t.Attr {
				entry.Attrs = append(entry.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) == 0 {
				top = append(top, entry)
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, entry)
			}
			stack = append(stack, entry)
		case xml.CharData:
			if len(stack) > 0 {
				if text := strings.TrimSpace(string(t)); text != "" {
					stack[len(stack)-1].Value += text
				}
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return top
}

// Find searches a tree depth-first for the first entry with the given tag.
func Find(entries []*Entry, tag string) *Entry {
	for _, e := range entries {
		if e.Tag == tag {
			return e
		}
		if found := Find(e.Children, tag); found != nil {
			return found
		}
	}
	return nil
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape replaces the XML special characters in s.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Writer builds an indented XML document.
type Writer struct {
	sb    strings.Builder
	depth int
}

// NewWriter starts a document with the standard XML declaration.
func NewWriter() *Writer {
	w := &Writer{}
	w.sb.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	return w
}

// OpenTag writes an opening tag with the given attributes. With
// hasContent=false the tag is self-closing and needs no CloseTag.
func (w *Writer) OpenTag(name string, attrs []Attr, hasContent bool) {
	w.indent()
	w.sb.WriteByte('<')
	w.sb.WriteString(name)
	for _, a := range attrs {
		w.sb.WriteByte(' ')
		w.sb.WriteString(a.Name)
		w.sb.WriteString(`="`)
		w.sb.WriteString(Escape(a.Value))
		w.sb.WriteByte('"')
	}
	if hasContent {
		w.sb.WriteString(">\n")
		w.depth++
	} else {
		w.sb.WriteString("/>\n")
	}
}

// Value writes an indented text line inside the currently open tag.
func (w *Writer) Value(value string) {
	w.indent()
	w.sb.WriteString(Escape(value))
	w.sb.WriteByte('\n')
}

// CloseTag closes a tag previously opened with hasContent=true.
func (w *Writer) CloseTag(name string) {
	if w.depth > 0 {
		w.depth--
	}
	w.indent()
	w.sb.WriteString("</")
	w.sb.WriteString(name)
	w.sb.WriteString(">\n")
}

// String returns the document built so far.
func (w *Writer) String() string {
	return w.sb.String()
}

func (w *Writer) indent() {
	for i := 0; i < w.depth; i++ {
		w.sb.WriteByte('\t')
	}
}
