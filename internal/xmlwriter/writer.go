// =============================================================================
// sepacetamol - XML Writer Module
// =============================================================================
//
// This module writes element trees as indented XML. It is used for the SEPA
// payment initiation documents, whose element order is fixed by the ISO 20022
// schema and must be reproduced exactly.
//
// OUTPUT SHAPE:
//
//   <?xml version="1.0" encoding="UTF-8"?>
//   <Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.03">
//     <CstmrCdtTrfInitn>
//       <GrpHdr>
//         <MsgId>...</MsgId>
//       </GrpHdr>
//     </CstmrCdtTrfInitn>
//   </Document>
//
//   - Leaf elements keep their text on one line
//   - Elements without text or children are self-closing
//   - Text and attribute values are escaped
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"fmt"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls the document framing.
type Options struct {
	// Indent is the string used per nesting level.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration writes the <?xml ...?> line.
	IncludeXMLDeclaration bool

	// XMLVersion and Encoding are used in the declaration.
	XMLVersion string
	Encoding   string
}

// DefaultOptions returns two space indentation with a UTF-8 declaration.
func DefaultOptions() Options {
	return Options{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
	}
}

// =============================================================================
// ELEMENT TREE
// =============================================================================

// Attr is a single attribute. Attributes are written in insertion order.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of the tree. An element carries either text or
// children; text wins when both are set.
type Element struct {
	Name     string
	Attrs    []Attr
	Value    string
	Children []*Element
}

// New creates a detached element.
func New(name string) *Element {
	return &Element{Name: name}
}

// Attr appends an attribute and returns e for chaining.
func (e *Element) Attr(name, value string) *Element {
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Child appends a new empty element and returns it.
func (e *Element) Child(name string) *Element {
	c := New(name)
	e.Children = append(e.Children, c)
	return c
}

// Leaf appends an element holding text and returns e for chaining.
func (e *Element) Leaf(name, value string) *Element {
	e.Children = append(e.Children, &Element{Name: name, Value: value})
	return e
}

// Append attaches existing elements and returns e.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// =============================================================================
// MARSHALING
// =============================================================================

// Marshal writes the tree rooted at root.
func Marshal(root *Element, options Options) []byte {
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString(fmt.Sprintf("<?xml version=\"%s\" encoding=\"%s\"?>\n",
			options.XMLVersion, options.Encoding))
	}

	writeElement(&buffer, root, options.Indent, 0)

	return buffer.Bytes()
}

// writeElement writes an element and its subtree with indentation.
func writeElement(buffer *bytes.Buffer, element *Element, indent string, level int) {
	writeIndent(buffer, indent, level)

	buffer.WriteString("<")
	buffer.WriteString(element.Name)
	for _, attr := range element.Attrs {
		buffer.WriteString(fmt.Sprintf(" %s=\"%s\"", attr.Name, escapeXML(attr.Value)))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		writeIndent(buffer, indent, level)
	}

	buffer.WriteString("</")
	buffer.WriteString(element.Name)
	buffer.WriteString(">\n")
}

func writeIndent(buffer *bytes.Buffer, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}
}

// escapeXML escapes special characters for XML.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}
