package i18n

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/language"
)

// KeyAttr marks an element whose text content is a translation key.
const KeyAttr = "data-i18n"

// attrKeys maps data-i18n-<attr> to the attribute it translates.
var attrKeys = map[string]string{
	"data-i18n-placeholder": "placeholder",
	"data-i18n-title":       "title",
	"data-i18n-aria-label":  "aria-label",
	"data-i18n-alt":         "alt",
}

// Resolver resolves keys for one active language. It is read-only after
// construction and safe to share.
type Resolver struct {
	bundle   *Bundle
	lang     string
	fallback string
	active   map[string]string
	backup   map[string]string
}

// Resolver builds a resolver for lang with the given fallback language.
func (b *Bundle) Resolver(lang, fallback string, namespaces []string) *Resolver {
	r := &Resolver{
		bundle:   b,
		lang:     lang,
		fallback: fallback,
		active:   b.Dictionary(lang, namespaces),
	}
	if fallback != "" && fallback != lang {
		r.backup = b.Dictionary(fallback, namespaces)
	} else {
		r.backup = r.active
	}
	return r
}

// Language returns the active language code.
func (r *Resolver) Language() string {
	return r.lang
}

// Resolve looks the key up in the active language, then the fallback
// language, and finally returns the key itself.
func (r *Resolver) Resolve(key string) string {
	if v, ok := r.active[key]; ok {
		return v
	}
	if r.bundle.noteMissing(r.lang, key) {
		r.bundle.log.Warn("missing translation", "language", r.lang, "key", key)
	}
	if v, ok := r.backup[key]; ok {
		return v
	}
	return key
}

// Format resolves key and substitutes positional {0}, {1}... placeholders.
func (r *Resolver) Format(key string, args ...any) string {
	s := r.Resolve(key)
	for i, a := range args {
		s = strings.ReplaceAll(s, "{"+strconv.Itoa(i)+"}", fmt.Sprint(a))
	}
	return s
}

// Dictionary returns the merged active-over-fallback dictionary.
func (r *Resolver) Dictionary() map[string]string {
	out := make(map[string]string, len(r.backup)+len(r.active))
	for k, v := range r.backup {
		out[k] = v
	}
	for k, v := range r.active {
		out[k] = v
	}
	return out
}

// ApplyToHTML replaces the text content of every element carrying a
// data-i18n key, and translates data-i18n-<attr> attributes, under n.
func (r *Resolver) ApplyToHTML(n *html.Node) {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == KeyAttr && a.Val != "" {
				for c := n.FirstChild; c != nil; {
					next := c.NextSibling
					n.RemoveChild(c)
					c = next
				}
				n.AppendChild(&html.Node{Type: html.TextNode, Data: r.Resolve(a.Val)})
			}
			if target, ok := attrKeys[a.Key]; ok && a.Val != "" {
				setAttr(n, target, r.Resolve(a.Val))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.ApplyToHTML(c)
	}
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// ApplyToDocument parses a full HTML document, translates it and writes it out.
func (r *Resolver) ApplyToDocument(in io.Reader, out io.Writer) error {
	doc, err := html.Parse(in)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	r.ApplyToHTML(doc)
	return html.Render(out, doc)
}

// ApplyToFragment translates an HTML fragment as it would appear inside <body>.
func (r *Resolver) ApplyToFragment(fragment string) (string, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		r.ApplyToHTML(n)
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Negotiate picks the best supported language for an Accept-Language header,
// or fallback when nothing matches.
func Negotiate(acceptLanguage string, supported []string, fallback string) string {
	if acceptLanguage == "" || len(supported) == 0 {
		return fallback
	}
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		tags = append(tags, language.Make(s))
	}
	desired, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return fallback
	}
	_, idx, conf := language.NewMatcher(tags).Match(desired...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

// Supported reports whether lang is one of the available languages.
func Supported(lang string, available []string) bool {
	for _, l := range available {
		if l == lang {
			return true
		}
	}
	return false
}
