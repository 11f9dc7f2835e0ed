package experiment

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/EHam1/very-professional-blog/pkg/types"
)

// Markup element and attribute names for experiments in content bodies:
//
//	<ab-test experiment="hero">
//	  <ab-variant name="A">...</ab-variant>
//	  <ab-variant name="B">...</ab-variant>
//	</ab-test>
const (
	TagExperiment  = "ab-test"
	TagVariant     = "ab-variant"
	AttrExperiment = "experiment"
	AttrName       = "name"
)

// ParseMarkup splits body into static text and experiments. Everything outside
// experiment elements is kept byte for byte. Inside an experiment only
// ab-variant children become blocks; other children are ignored unless the
// experiment has no ab-variant at all, in which case its whole content is one
// unnamed passthrough block. An experiment without a key yields no blocks.
// Malformed markup never fails: open elements are closed at end of input.
//
// Only the ab-test and ab-variant tags are recognised. Everything else,
// including stray '<' in prose and raw-text elements such as textarea, is
// carried through as text.
func ParseMarkup(body string) Document {
	p := &markupParser{lex: markupLexer{body: body}}
	return p.parse()
}

// markupToken is a run of text or one experiment tag.
type markupToken struct {
	typ   html.TokenType
	name  string
	attrs map[string]string
	raw   string
}

// markupLexer scans a body for experiment tags by literal, case-insensitive
// search. Tags are tokenized one at a time, so markup around them cannot
// change where they start or end.
type markupLexer struct {
	body string
	pos  int
}

func (l *markupLexer) next() (markupToken, bool) {
	if l.pos >= len(l.body) {
		return markupToken{}, false
	}

	start := l.pos
	for i := start; i < len(l.body); {
		j := strings.IndexByte(l.body[i:], '<')
		if j < 0 {
			break
		}
		at := i + j
		if tok, end, ok := l.tagAt(at); ok {
			if at > start {
				l.pos = at
				return markupToken{typ: html.TextToken, raw: l.body[start:at]}, true
			}
			l.pos = end
			return tok, true
		}
		i = at + 1
	}

	l.pos = len(l.body)
	return markupToken{typ: html.TextToken, raw: l.body[start:]}, true
}

// tagAt reports whether an experiment tag starts at offset at, and where it
// ends. A tag missing its closing '>' is not a tag.
func (l *markupLexer) tagAt(at int) (markupToken, int, bool) {
	s := l.body[at:]
	nameStart := 1
	closing := strings.HasPrefix(s, "</")
	if closing {
		nameStart = 2
	}

	name, ok := markupTagName(s[nameStart:])
	if !ok {
		return markupToken{}, 0, false
	}
	end := tagEnd(s, nameStart+len(name))
	if end < 0 {
		return markupToken{}, 0, false
	}

	raw := s[:end]
	if closing {
		return markupToken{typ: html.EndTagToken, name: name, raw: raw}, at + end, true
	}
	tt, attrs := parseStartTag(raw)
	return markupToken{typ: tt, name: name, attrs: attrs, raw: raw}, at + end, true
}

// markupTagName matches an experiment tag name at the start of s, followed by
// whitespace, '/' or '>'.
func markupTagName(s string) (string, bool) {
	for _, name := range []string{TagExperiment, TagVariant} {
		if len(s) <= len(name) || !strings.EqualFold(s[:len(name)], name) {
			continue
		}
		switch s[len(name)] {
		case ' ', '\t', '\n', '\r', '\f', '/', '>':
			return name, true
		}
	}
	return "", false
}

// tagEnd returns the offset just past the '>' closing the tag, skipping quoted
// attribute values, or -1.
func tagEnd(s string, from int) int {
	var quote byte
	afterEq := false
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '>':
			return i + 1
		case (c == '"' || c == '\'') && afterEq:
			quote = c
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r', '\f':
		default:
			afterEq = c == '='
		}
	}
	return -1
}

// parseStartTag tokenizes a single start tag for its attributes.
func parseStartTag(raw string) (html.TokenType, map[string]string) {
	attrs := make(map[string]string)
	z := html.NewTokenizer(strings.NewReader(raw))
	tt := z.Next()
	if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return html.StartTagToken, attrs
	}

	_, hasAttr := z.TagName()
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		attrs[string(k)] = string(v)
	}
	return tt, attrs
}

type markupParser struct {
	lex markupLexer
	doc Document

	text strings.Builder

	// current experiment
	key       types.ExperimentKey
	inExp     bool
	expDepth  int
	blocks    []Block
	loose     strings.Builder
	sawBlocks bool

	// current variant
	inVariant    bool
	variantName  types.VariantName
	variantDepth int
	content      strings.Builder
}

func (p *markupParser) parse() Document {
	for {
		tok, ok := p.lex.next()
		if !ok {
			break
		}

		switch {
		case !p.inExp:
			if tok.typ == html.StartTagToken && tok.name == TagExperiment {
				p.openExperiment(tok.attrs)
				continue
			}
			p.text.WriteString(tok.raw)

		case p.inVariant:
			p.variantToken(tok.typ, tok.name, tok.raw)

		default:
			p.experimentToken(tok.typ, tok.name, tok.attrs, tok.raw)
		}
	}

	if p.inVariant {
		p.closeVariant()
	}
	if p.inExp {
		p.closeExperiment()
	}
	p.flushText()
	return p.doc
}

func (p *markupParser) openExperiment(attrs map[string]string) {
	p.flushText()
	p.inExp = true
	p.expDepth = 0
	p.key = types.ExperimentKey(strings.TrimSpace(attrs[AttrExperiment]))
	p.blocks = nil
	p.loose.Reset()
	p.sawBlocks = false
}

func (p *markupParser) experimentToken(tt html.TokenType, name string, attrs map[string]string, raw string) {
	switch {
	case tt == html.StartTagToken && name == TagVariant:
		p.inVariant = true
		p.sawBlocks = true
		p.variantName = types.VariantName(attrs[AttrName])
		p.variantDepth = 0
		p.content.Reset()

	case tt == html.SelfClosingTagToken && name == TagVariant:
		p.sawBlocks = true
		p.blocks = append(p.blocks, Block{Name: types.VariantName(attrs[AttrName])})

	case tt == html.StartTagToken && name == TagExperiment:
		p.expDepth++
		p.loose.WriteString(raw)

	case tt == html.EndTagToken && name == TagExperiment:
		if p.expDepth == 0 {
			p.closeExperiment()
			return
		}
		p.expDepth--
		p.loose.WriteString(raw)

	default:
		p.loose.WriteString(raw)
	}
}

func (p *markupParser) variantToken(tt html.TokenType, name, raw string) {
	if name == TagVariant {
		switch tt {
		case html.StartTagToken:
			p.variantDepth++
		case html.EndTagToken:
			if p.variantDepth == 0 {
				p.closeVariant()
				return
			}
			p.variantDepth--
		}
	}
	p.content.WriteString(raw)
}

func (p *markupParser) closeVariant() {
	p.blocks = append(p.blocks, Block{Name: p.variantName, Content: p.content.String()})
	p.inVariant = false
	p.content.Reset()
}

func (p *markupParser) closeExperiment() {
	var blocks []Block
	switch {
	case p.key == "":
	case p.sawBlocks:
		blocks = p.blocks
	case strings.TrimSpace(p.loose.String()) != "":
		blocks = []Block{{Content: p.loose.String()}}
	}

	p.doc = append(p.doc, Segment{Experiment: NewExperiment(p.key, blocks...)})
	p.inExp = false
	p.blocks = nil
	p.loose.Reset()
}

func (p *markupParser) flushText() {
	if p.text.Len() == 0 {
		return
	}
	p.doc = append(p.doc, Segment{Text: p.text.String()})
	p.text.Reset()
}
