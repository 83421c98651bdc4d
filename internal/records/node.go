package records

import (
	"encoding/xml"
	"strings"
)

// Node is a generic element of the container document
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

// Tag returns the element's local name
func (n *Node) Tag() string { return n.XMLName.Local }

// Attr returns the value of the named attribute, or "" when absent
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Name returns the Name attribute
func (n *Node) Name() string { return n.Attr("Name") }

// Value returns the trimmed text content
func (n *Node) Value() string { return strings.TrimSpace(n.Text) }

// First returns the first direct child with the given tag
func (n *Node) First(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag() == tag {
			return c
		}
	}
	return nil
}

// All returns every direct child with the given tag
func (n *Node) All(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag() == tag {
			out = append(out, c)
		}
	}
	return out
}

// Named returns the first direct child with the given tag and Name attribute
func (n *Node) Named(tag, name string) *Node {
	for _, c := range n.Children {
		if c.Tag() == tag && c.Name() == name {
			return c
		}
	}
	return nil
}
