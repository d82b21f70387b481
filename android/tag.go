package android

import (
	"strconv"
	"strings"
)

// Separator joins a parent resource name with an array index or plural
// quantity. It never appears in a plain string name.
const Separator = ":"

// ---------------------------------------------------------------------------
// Tag interface
// ---------------------------------------------------------------------------

// Tag is one translatable unit of a resources file: a <string>, one
// <string-array> item, or one <plurals> quantity.
//
// Modified is one-way: once the content of a tag diverges from what it held
// when it was loaded, the tag stays modified for the rest of its life.
type Tag interface {
	// ID is unique within a resources file. Array and plural items use
	// "parent:index" and "parent:quantity".
	ID() string
	Content() string
	// SetContent trims content and reports whether it changed.
	SetContent(content string) bool
	Modified() bool
	Translatable() bool
	// WithContent returns a copy of the tag holding content. The copy is
	// always marked modified since it represents a local edit.
	WithContent(content string) Tag
}

// Group identifies the <string-array> or <plurals> element an item belongs to.
// It is a plain value so items never share mutable parent state.
type Group struct {
	Name         string
	Translatable bool
}

// ValidID reports whether id can be used as the name of a plain string.
func ValidID(id string) bool {
	return id != "" && !strings.Contains(id, Separator)
}

// ParentID returns the parent name of an array/plural item id, or id itself.
func ParentID(id string) string {
	if i := strings.Index(id, Separator); i >= 0 {
		return id[:i]
	}
	return id
}

// ---------------------------------------------------------------------------
// <string>
// ---------------------------------------------------------------------------

// String is a plain <string name="...">.
type String struct {
	id             string
	content        string
	modified       bool
	untranslatable bool
}

// NewString returns an unmodified, translatable string.
func NewString(id, content string) *String {
	return &String{id: id, content: strings.TrimSpace(content)}
}

func (s *String) ID() string         { return s.id }
func (s *String) Content() string    { return s.content }
func (s *String) Modified() bool     { return s.modified }
func (s *String) Translatable() bool { return !s.untranslatable }

func (s *String) SetContent(content string) bool {
	return setContent(&s.content, &s.modified, content)
}

func (s *String) WithContent(content string) Tag {
	c := *s
	c.SetContent(content)
	c.modified = true
	return &c
}

// ---------------------------------------------------------------------------
// <string-array> item
// ---------------------------------------------------------------------------

// ArrayItem is one <item> of a <string-array>.
type ArrayItem struct {
	group    Group
	index    int
	content  string
	modified bool
}

// NewArrayItem returns an unmodified array item at index.
func NewArrayItem(group Group, index int, content string) *ArrayItem {
	return &ArrayItem{group: group, index: index, content: strings.TrimSpace(content)}
}

func (a *ArrayItem) ID() string         { return a.group.Name + Separator + strconv.Itoa(a.index) }
func (a *ArrayItem) Content() string    { return a.content }
func (a *ArrayItem) Modified() bool     { return a.modified }
func (a *ArrayItem) Translatable() bool { return a.group.Translatable }
func (a *ArrayItem) Group() Group       { return a.group }
func (a *ArrayItem) Index() int         { return a.index }

func (a *ArrayItem) SetContent(content string) bool {
	return setContent(&a.content, &a.modified, content)
}

func (a *ArrayItem) WithContent(content string) Tag {
	c := *a
	c.SetContent(content)
	c.modified = true
	return &c
}

// ---------------------------------------------------------------------------
// <plurals> item
// ---------------------------------------------------------------------------

// PluralItem is one <item quantity="..."> of a <plurals>. Quantity
// categories are not validated.
type PluralItem struct {
	group    Group
	quantity string
	content  string
	modified bool
}

// NewPluralItem returns an unmodified plural item for quantity.
func NewPluralItem(group Group, quantity, content string) *PluralItem {
	return &PluralItem{group: group, quantity: quantity, content: strings.TrimSpace(content)}
}

func (p *PluralItem) ID() string         { return p.group.Name + Separator + p.quantity }
func (p *PluralItem) Content() string    { return p.content }
func (p *PluralItem) Modified() bool     { return p.modified }
func (p *PluralItem) Translatable() bool { return p.group.Translatable }
func (p *PluralItem) Group() Group       { return p.group }
func (p *PluralItem) Quantity() string   { return p.quantity }

func (p *PluralItem) SetContent(content string) bool {
	return setContent(&p.content, &p.modified, content)
}

func (p *PluralItem) WithContent(content string) Tag {
	c := *p
	c.SetContent(content)
	c.modified = true
	return &c
}

func setContent(dst *string, modified *bool, content string) bool {
	content = strings.TrimSpace(content)
	if *dst == content {
		return false
	}
	*dst = content
	*modified = true
	return true
}

// MarkModified flags t as locally modified without changing its content.
// Decoding uses it for the metadata attribute and store migration for
// modification state kept outside the resources file.
func MarkModified(t Tag) {
	switch v := t.(type) {
	case *String:
		v.modified = true
	case *ArrayItem:
		v.modified = true
	case *PluralItem:
		v.modified = true
	}
}

// groupOf returns the parent group of an item tag.
func groupOf(t Tag) (Group, bool) {
	switch v := t.(type) {
	case *ArrayItem:
		return v.group, true
	case *PluralItem:
		return v.group, true
	}
	return Group{}, false
}
