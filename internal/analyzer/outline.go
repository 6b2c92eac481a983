package analyzer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Outline is the structural skeleton of a mockup document.
type Outline struct {
	Title      string
	Headings   []string
	Navigation []string
	Forms      []string
	Buttons    []string
}

const maxOutlineEntries = 20

// ParseOutline walks the document and collects its title, h1-h3 headings,
// navigation labels, form fields and buttons. Malformed markup is parsed
// leniently; only an unreadable input returns an error.
func ParseOutline(doc string) (*Outline, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	o := &Outline{}
	o.walk(root, false)
	return o, nil
}

func (o *Outline) walk(n *html.Node, inNav bool) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.Title:
			if o.Title == "" {
				o.Title = nodeText(n)
			}
		case atom.H1, atom.H2, atom.H3:
			appendBounded(&o.Headings, n.Data+": "+nodeText(n))
		case atom.Nav:
			inNav = true
		case atom.A:
			if inNav {
				appendBounded(&o.Navigation, nodeText(n))
			}
		case atom.Input, atom.Textarea, atom.Select:
			appendBounded(&o.Forms, fieldLabel(n))
		case atom.Button:
			appendBounded(&o.Buttons, nodeText(n))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		o.walk(c, inNav)
	}
}

// String renders the outline as brief lines; empty sections are omitted.
func (o *Outline) String() string {
	var b strings.Builder
	if o.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", o.Title)
	}
	writeList(&b, "Headings", o.Headings)
	writeList(&b, "Navigation", o.Navigation)
	writeList(&b, "Form fields", o.Forms)
	writeList(&b, "Buttons", o.Buttons)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, "; "))
}

func appendBounded(dst *[]string, s string) {
	if s == "" || len(*dst) >= maxOutlineEntries {
		return
	}
	*dst = append(*dst, s)
}

func fieldLabel(n *html.Node) string {
	var parts []string
	for _, key := range []string{"type", "name", "placeholder"} {
		if v := attr(n, key); v != "" {
			parts = append(parts, key+"="+v)
		}
	}
	if len(parts) == 0 {
		return n.Data
	}
	return n.Data + "[" + strings.Join(parts, " ") + "]"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
