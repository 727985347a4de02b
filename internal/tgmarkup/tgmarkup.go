// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package tgmarkup converts Markdown text to Telegram message text with
// formatting entities.
//
// See https://core.telegram.org/bots/api#messageentity.
package tgmarkup

import (
	"strings"
	"unicode/utf16"

	"rsc.io/markdown"
)

// Message is a message text with entities, ready to be marshaled into a
// Telegram Bot API request.
type Message struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities,omitempty"`
}

// Type is the type of a message entity.
type Type string

// Entity types produced by FromMarkdown.
const (
	URL           Type = "url"
	Bold          Type = "bold"
	Italic        Type = "italic"
	Strikethrough Type = "strikethrough"
	Blockquote    Type = "blockquote"
	Code          Type = "code"
	Pre           Type = "pre"
	TextLink      Type = "text_link"
)

// Entity is a formatted part of the message text.
type Entity struct {
	Type Type `json:"type"`
	// Offset in UTF-16 code units to the start of the entity.
	Offset int `json:"offset"`
	// Length of the entity in UTF-16 code units.
	Length int `json:"length"`
	// URL for TextLink entities.
	URL string `json:"url,omitempty"`
	// Language for Pre entities.
	Language string `json:"language,omitempty"`
}

// FromMarkdown converts a Markdown text to a [Message]. Bare URLs become
// links.
func FromMarkdown(text string) Message {
	p := markdown.Parser{AutoLinkText: true}
	doc := p.Parse(text)

	c := &converter{}
	for i, b := range doc.Blocks {
		if i > 0 {
			c.sb.WriteString("\n")
		}
		c.block(b)
	}

	return Message{
		Text:     strings.TrimRight(c.sb.String(), "\n"),
		Entities: c.entities,
	}
}

type converter struct {
	sb       strings.Builder
	entities []Entity
}

func (c *converter) offset() int { return utf16len(c.sb.String()) }

// wrap records an entity of type typ around the text written by f.
func (c *converter) wrap(typ Type, f func()) *Entity {
	start := c.offset()
	f()
	length := c.offset() - start
	if length == 0 {
		return nil
	}
	c.entities = append(c.entities, Entity{Type: typ, Offset: start, Length: length})
	return &c.entities[len(c.entities)-1]
}

func (c *converter) block(b markdown.Block) {
	switch block := b.(type) {
	case *markdown.Paragraph:
		c.inlines(block.Text.Inline)
		c.sb.WriteString("\n")
	case *markdown.Heading:
		c.wrap(Bold, func() { c.inlines(block.Text.Inline) })
		c.sb.WriteString("\n")
	case *markdown.Quote:
		c.wrap(Blockquote, func() {
			for _, b := range block.Blocks {
				c.block(b)
			}
		})
	case *markdown.CodeBlock:
		e := c.wrap(Pre, func() { c.sb.WriteString(strings.Join(block.Text, "\n")) })
		if e != nil && block.Info != "" {
			e.Language = block.Info
		}
		c.sb.WriteString("\n")
	case *markdown.List:
		for _, item := range block.Items {
			item, ok := item.(*markdown.Item)
			if !ok {
				continue
			}
			c.sb.WriteString("• ")
			for _, b := range item.Blocks {
				c.block(b)
			}
		}
	case *markdown.ThematicBreak:
		c.sb.WriteString("⸻\n")
	}
}

func (c *converter) inlines(inlines []markdown.Inline) {
	for _, inline := range inlines {
		c.inline(inline)
	}
}

func (c *converter) inline(i markdown.Inline) {
	switch inline := i.(type) {
	case *markdown.Plain:
		c.sb.WriteString(inline.Text)
	case *markdown.Escaped:
		c.sb.WriteString(inline.Text)
	case *markdown.HTMLTag:
		c.sb.WriteString(inline.Text)
	case *markdown.Strong:
		c.wrap(Bold, func() { c.inlines(inline.Inner) })
	case *markdown.Emph:
		c.wrap(Italic, func() { c.inlines(inline.Inner) })
	case *markdown.Del:
		c.wrap(Strikethrough, func() { c.inlines(inline.Inner) })
	case *markdown.Code:
		c.wrap(Code, func() { c.sb.WriteString(inline.Text) })
	case *markdown.Link:
		start := c.offset()
		c.inlines(inline.Inner)
		text := c.sb.String()
		// Links whose text is the URL itself are left for Telegram to detect.
		if strings.HasSuffix(text, inline.URL) && c.offset()-start == utf16len(inline.URL) {
			c.entities = append(c.entities, Entity{Type: URL, Offset: start, Length: c.offset() - start})
			return
		}
		if e := c.entityFrom(start, TextLink); e != nil {
			e.URL = inline.URL
		}
	case *markdown.AutoLink:
		c.wrap(URL, func() { c.sb.WriteString(inline.Text) })
	case *markdown.SoftBreak, *markdown.HardBreak:
		c.sb.WriteString("\n")
	}
}

func (c *converter) entityFrom(start int, typ Type) *Entity {
	length := c.offset() - start
	if length == 0 {
		return nil
	}
	c.entities = append(c.entities, Entity{Type: typ, Offset: start, Length: length})
	return &c.entities[len(c.entities)-1]
}

// placeholderBase is the first rune of the Unicode Private Use Area.
// Markdown treats such runes as plain text.
const placeholderBase = '\uE000'

// Placeholder returns a marker that stands for values[i] passed to
// [Message.Fill]. Markers pass through [FromMarkdown] unchanged.
func Placeholder(i int) string { return string(rune(placeholderBase + i)) }

// Value is text inserted into a message by [Message.Fill].
type Value struct {
	Text string
	// Type, if not empty, is the type of an entity added over Text.
	Type Type
}

// Fill returns a copy of m with every [Placeholder] replaced by the matching
// value. Values are inserted verbatim, so Markdown syntax in them has no
// effect. Entities are moved and stretched to cover the inserted text.
func (m Message) Fill(values ...Value) Message {
	type edit struct{ at, delta int }

	var (
		sb    strings.Builder
		edits []edit
		added []Entity
		pos   int // in UTF-16 code units of m.Text
		npos  int // in UTF-16 code units of the result
	)
	for _, r := range m.Text {
		i := int(r - placeholderBase)
		if i < 0 || i >= len(values) {
			sb.WriteRune(r)
			n := utf16.RuneLen(r)
			pos += n
			npos += n
			continue
		}
		v := values[i]
		n := utf16len(v.Text)
		sb.WriteString(v.Text)
		if v.Type != "" && n > 0 {
			added = append(added, Entity{Type: v.Type, Offset: npos, Length: n})
		}
		edits = append(edits, edit{at: pos, delta: n - 1})
		pos++
		npos += n
	}

	// moved maps an offset in m.Text to the result. Placeholders before off
	// shift it.
	moved := func(off int) int {
		n := off
		for _, e := range edits {
			if e.at >= off {
				break
			}
			n += e.delta
		}
		return n
	}

	urls := make([]string, 0, 2*len(values))
	for i, v := range values {
		urls = append(urls, Placeholder(i), v.Text)
	}
	urlFiller := strings.NewReplacer(urls...)

	out := Message{Text: sb.String()}
	for _, e := range m.Entities {
		start, end := moved(e.Offset), moved(e.Offset+e.Length)
		if end <= start {
			continue
		}
		e.Offset, e.Length = start, end-start
		if e.URL != "" {
			e.URL = urlFiller.Replace(e.URL)
		}
		out.Entities = append(out.Entities, e)
	}
	out.Entities = append(out.Entities, added...)
	return out
}

func utf16len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
