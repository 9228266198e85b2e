package agent

import "strings"

// Element is one node of the host page's document tree. Tag is kept
// lower-case. Text is the node's own rendered text; InnerText includes
// descendants.
type Element struct {
	Tag      string     `json:"tag"`
	ID       string     `json:"id,omitempty"`
	Classes  []string   `json:"classes,omitempty"`
	Text     string     `json:"text,omitempty"`
	Href     string     `json:"href,omitempty"`
	Cursor   string     `json:"cursor,omitempty"`
	Children []*Element `json:"children,omitempty"`

	Parent *Element `json:"-"`
}

// NewElement creates a detached element.
func NewElement(tag string) *Element {
	return &Element{Tag: strings.ToLower(tag)}
}

// Append attaches children and returns e for chaining.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		c.Parent = e
		e.Children = append(e.Children, c)
	}
	return e
}

// Link normalizes tags and restores Parent pointers below e, as needed
// after decoding a tree from JSON.
func (e *Element) Link() *Element {
	e.Tag = strings.ToLower(e.Tag)
	for _, c := range e.Children {
		c.Parent = e
		c.Link()
	}
	return e
}

// Is reports whether e has one of the given tags.
func (e *Element) Is(tags ...string) bool {
	for _, t := range tags {
		if e.Tag == t {
			return true
		}
	}
	return false
}

// HasClass reports whether class is one of e's class tokens.
func (e *Element) HasClass(class string) bool {
	for _, c := range e.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Closest returns e or its nearest ancestor with one of the given tags.
func (e *Element) Closest(tags ...string) *Element {
	for el := e; el != nil; el = el.Parent {
		if el.Is(tags...) {
			return el
		}
	}
	return nil
}

// InnerText is the rendered text of e and its descendants.
func (e *Element) InnerText() string {
	var sb strings.Builder
	e.writeText(&sb)
	return strings.TrimSpace(sb.String())
}

func (e *Element) writeText(sb *strings.Builder) {
	if e.Text != "" {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.Text)
	}
	for _, c := range e.Children {
		c.writeText(sb)
	}
}

// Find returns the first element in document order matching a simple
// selector: "#id", ".class" or a tag name.
func (e *Element) Find(selector string) *Element {
	if e.matches(selector) {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(selector); found != nil {
			return found
		}
	}
	return nil
}

func (e *Element) matches(selector string) bool {
	switch {
	case strings.HasPrefix(selector, "#"):
		return e.ID == selector[1:]
	case strings.HasPrefix(selector, "."):
		return e.HasClass(selector[1:])
	default:
		return e.Tag == strings.ToLower(selector)
	}
}

// Selector describes e for signal labels: "#id", then ".a.b", then the tag.
func Selector(e *Element) string {
	switch {
	case e == nil:
		return "unknown"
	case e.ID != "":
		return "#" + e.ID
	case len(e.Classes) > 0:
		return "." + strings.Join(e.Classes, ".")
	default:
		return e.Tag
	}
}
