// Package android reads and writes Android strings.xml resource files.
//
// Supported resource types:
//   - <string>: a named string
//   - <string-array>: an ordered list of <item> strings
//   - <plurals>: <item quantity="..."> forms, quantities unchecked
//
// A file decodes into a flat list of Tags. Array and plural items become one
// tag per <item>, identified as "parent:index" and "parent:quantity".
//
// When metadata is enabled the encoder also writes a local-only modified="true"
// attribute (and index="n" on array items). Files meant for upstream
// consumption are always written without metadata.
package android

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	xliffNamespace = "urn:oasis:names:tc:xliff:document:1.2"
	header         = "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"
)

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// DecodeFile reads and decodes a resources file.
func DecodeFile(path string) ([]Tag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tags, err := Decode(bytes.NewReader(data))
	if err != nil {
		return tags, fmt.Errorf("parsing %s: %w", path, err)
	}
	return tags, nil
}

// Decode parses resources XML into tags in document order. Unknown elements
// are skipped together with their subtree. Entries without a name or with
// empty content are dropped. On a syntax error the tags decoded so far are
// returned along with the error.
func Decode(r io.Reader) ([]Tag, error) {
	d := &decoder{
		dec:      xml.NewDecoder(r),
		prefixes: make(map[string]string),
	}
	d.dec.Strict = false
	return d.run()
}

type decoder struct {
	dec *xml.Decoder
	// prefixes maps namespace URLs back to the prefix used in the file, so
	// inline markup such as <xliff:g> is written back as it was read.
	prefixes map[string]string
	tags     []Tag
}

func (d *decoder) run() ([]Tag, error) {
	inResources := false
	for {
		tok, err := d.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return d.tags, nil
			}
			return d.tags, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "resources" {
				inResources = true
				d.recordPrefixes(t)
				continue
			}
			if !inResources {
				continue
			}

			switch t.Name.Local {
			case "string":
				err = d.parseString(t)
			case "string-array":
				err = d.parseArray(t)
			case "plurals":
				err = d.parsePlurals(t)
			default:
				err = d.dec.Skip()
			}
			if err != nil {
				return d.tags, err
			}

		case xml.EndElement:
			if t.Name.Local == "resources" {
				inResources = false
			}
		}
	}
}

func (d *decoder) recordPrefixes(elem xml.StartElement) {
	for _, attr := range elem.Attr {
		if attr.Name.Space == "xmlns" {
			d.prefixes[attr.Value] = attr.Name.Local
		}
	}
}

// attrs holds the attributes this package understands.
type attrs struct {
	name         string
	translatable bool
	modified     bool
	quantity     string
	index        int
	hasIndex     bool
}

func parseAttrs(elem xml.StartElement) attrs {
	a := attrs{translatable: true}
	for _, attr := range elem.Attr {
		switch attr.Name.Local {
		case "name":
			a.name = attr.Value
		case "translatable":
			a.translatable = !strings.EqualFold(attr.Value, "false")
		case "modified":
			a.modified = strings.EqualFold(attr.Value, "true")
		case "quantity":
			a.quantity = attr.Value
		case "index":
			if n, err := strconv.Atoi(attr.Value); err == nil && n >= 0 {
				a.index, a.hasIndex = n, true
			}
		}
	}
	return a
}

func (d *decoder) add(t Tag, modified bool) {
	if t.Content() == "" {
		return
	}
	if modified {
		MarkModified(t)
	}
	d.tags = append(d.tags, t)
}

func (d *decoder) parseString(elem xml.StartElement) error {
	a := parseAttrs(elem)
	inner, err := d.readInner()
	if err != nil {
		return fmt.Errorf("reading <string name=%q>: %w", a.name, err)
	}
	if !ValidID(a.name) {
		return nil
	}
	s := NewString(a.name, Desanitize(inner))
	s.untranslatable = !a.translatable
	d.add(s, a.modified)
	return nil
}

func (d *decoder) parseArray(elem xml.StartElement) error {
	a := parseAttrs(elem)
	group := Group{Name: a.name, Translatable: a.translatable}

	pos := 0
	return d.parseItems(elem, func(item attrs, inner string) {
		index := pos
		if item.hasIndex {
			index = item.index
		}
		pos++
		if a.name == "" {
			return
		}
		d.add(NewArrayItem(group, index, Desanitize(inner)), item.modified)
	})
}

func (d *decoder) parsePlurals(elem xml.StartElement) error {
	a := parseAttrs(elem)
	group := Group{Name: a.name, Translatable: a.translatable}

	return d.parseItems(elem, func(item attrs, inner string) {
		if a.name == "" || item.quantity == "" {
			return
		}
		d.add(NewPluralItem(group, item.quantity, Desanitize(inner)), item.modified)
	})
}

// parseItems walks the <item> children of an already opened element.
func (d *decoder) parseItems(elem xml.StartElement, fn func(item attrs, inner string)) error {
	name := parseAttrs(elem).name
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return fmt.Errorf("reading <%s name=%q>: %w", elem.Name.Local, name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "item" {
				if err := d.dec.Skip(); err != nil {
					return err
				}
				continue
			}
			inner, err := d.readInner()
			if err != nil {
				return fmt.Errorf("reading <item> in <%s name=%q>: %w", elem.Name.Local, name, err)
			}
			fn(parseAttrs(t), inner)
		case xml.EndElement:
			return nil
		}
	}
}

// readInner reads the content of the current element up to its closing tag
// and returns it as XML text. Nested elements such as <xliff:g> or <b> are
// written back token by token, character data is re-escaped, and comments
// are dropped.
func (d *decoder) readInner() (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.WriteString(escapeText(string(t)))
		case xml.StartElement:
			depth++
			b.WriteByte('<')
			b.WriteString(d.qualified(t.Name))
			for _, attr := range t.Attr {
				b.WriteByte(' ')
				b.WriteString(d.qualified(attr.Name))
				b.WriteString(`="`)
				b.WriteString(escapeAttr(attr.Value))
				b.WriteByte('"')
			}
			b.WriteByte('>')
		case xml.EndElement:
			depth--
			if depth > 0 {
				b.WriteString("</")
				b.WriteString(d.qualified(t.Name))
				b.WriteByte('>')
			}
		}
	}
	return b.String(), nil
}

func (d *decoder) qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	if prefix, ok := d.prefixes[n.Space]; ok {
		return prefix + ":" + n.Local
	}
	if n.Space == xliffNamespace {
		return "xliff:" + n.Local
	}
	return n.Space + ":" + n.Local
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// block is one top-level element of the encoded file.
type block struct {
	tag   Tag   // set for <string>
	group Group // set for <string-array> / <plurals>
	items []Tag
}

// Marshal encodes tags as a resources file. Tags keep their given order;
// array and plural items are grouped under their parent at the position of
// the first item. Tags with empty content are never written.
func Marshal(tags []Tag, metadata bool) []byte {
	var blocks []*block
	groups := make(map[string]*block)
	xliff := false

	for _, t := range tags {
		if t.Content() == "" {
			continue
		}
		if strings.Contains(t.Content(), "xliff:") {
			xliff = true
		}
		g, ok := groupOf(t)
		if !ok {
			blocks = append(blocks, &block{tag: t})
			continue
		}
		key := fmt.Sprintf("%T/%s", t, g.Name)
		b := groups[key]
		if b == nil {
			b = &block{group: g}
			groups[key] = b
			blocks = append(blocks, b)
		}
		b.items = append(b.items, t)
	}

	var b strings.Builder
	b.WriteString(header)
	if xliff {
		b.WriteString(`<resources xmlns:xliff="` + xliffNamespace + "\">\n")
	} else {
		b.WriteString("<resources>\n")
	}

	for _, blk := range blocks {
		if blk.tag != nil {
			writeString(&b, blk.tag, metadata)
			continue
		}
		switch blk.items[0].(type) {
		case *ArrayItem:
			writeArray(&b, blk, metadata)
		case *PluralItem:
			writePlurals(&b, blk, metadata)
		}
	}

	b.WriteString("</resources>\n")
	return []byte(b.String())
}

// Encode writes the Marshal output of tags to w.
func Encode(w io.Writer, tags []Tag, metadata bool) error {
	_, err := w.Write(Marshal(tags, metadata))
	return err
}

// WriteFile encodes tags into path, creating parent directories.
func WriteFile(path string, tags []Tag, metadata bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, Marshal(tags, metadata), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeString(b *strings.Builder, t Tag, metadata bool) {
	fmt.Fprintf(b, `    <string name="%s"`, escapeAttr(t.ID()))
	if !t.Translatable() {
		b.WriteString(` translatable="false"`)
	}
	if metadata && t.Modified() {
		b.WriteString(` modified="true"`)
	}
	fmt.Fprintf(b, ">%s</string>\n", Sanitize(t.Content()))
}

func writeGroupOpen(b *strings.Builder, elem string, g Group) {
	fmt.Fprintf(b, `    <%s name="%s"`, elem, escapeAttr(g.Name))
	if !g.Translatable {
		b.WriteString(` translatable="false"`)
	}
	b.WriteString(">\n")
}

func writeArray(b *strings.Builder, blk *block, metadata bool) {
	items := append([]Tag(nil), blk.items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].(*ArrayItem).index < items[j].(*ArrayItem).index
	})

	writeGroupOpen(b, "string-array", blk.group)
	next := 0
	for _, t := range items {
		index := t.(*ArrayItem).index
		if !metadata {
			// Without index attributes position is the index, so gaps
			// are kept as empty items.
			for ; next < index; next++ {
				b.WriteString("        <item></item>\n")
			}
		}
		next = index + 1

		b.WriteString("        <item")
		if metadata {
			if t.Modified() {
				b.WriteString(` modified="true"`)
			}
			fmt.Fprintf(b, ` index="%d"`, index)
		}
		fmt.Fprintf(b, ">%s</item>\n", Sanitize(t.Content()))
	}
	b.WriteString("    </string-array>\n")
}

func writePlurals(b *strings.Builder, blk *block, metadata bool) {
	writeGroupOpen(b, "plurals", blk.group)
	for _, t := range blk.items {
		fmt.Fprintf(b, `        <item quantity="%s"`, escapeAttr(t.(*PluralItem).quantity))
		if metadata && t.Modified() {
			b.WriteString(` modified="true"`)
		}
		fmt.Fprintf(b, ">%s</item>\n", Sanitize(t.Content()))
	}
	b.WriteString("    </plurals>\n")
}

// ---------------------------------------------------------------------------
// Cleaning and templates
// ---------------------------------------------------------------------------

// CleanXML decodes a remote resources file and re-encodes what remains
// translatable into outFile, without metadata. It returns false without
// creating outFile when nothing translatable is left. The caller removes
// outFile if it was left empty after a failure.
func CleanXML(original []byte, outFile string) (bool, error) {
	tags, err := Decode(bytes.NewReader(original))
	if err != nil {
		return false, fmt.Errorf("parsing resources: %w", err)
	}

	kept := tags[:0]
	for _, t := range tags {
		if t.Translatable() {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return false, nil
	}

	if err := WriteFile(outFile, kept, false); err != nil {
		return false, err
	}
	return true, nil
}

// Translations looks up translated content by tag id. An empty result means
// the id has no translation.
type Translations interface {
	Content(id string) string
}

// ApplyTemplate decodes templateFile and writes to w every template entry
// that has a translation, using the translated content and the template's
// order. It returns false if the template cannot be read or no entry has a
// translation; nothing is written in that case.
func ApplyTemplate(templateFile string, tr Translations, w io.Writer) (bool, error) {
	tags, err := DecodeFile(templateFile)
	if err != nil {
		return false, err
	}

	var out []Tag
	for _, t := range tags {
		if !t.Translatable() {
			continue
		}
		if content := tr.Content(t.ID()); content != "" {
			out = append(out, t.WithContent(content))
		}
	}
	if len(out) == 0 {
		return false, nil
	}

	if err := Encode(w, out, false); err != nil {
		return false, fmt.Errorf("writing template: %w", err)
	}
	return true, nil
}
