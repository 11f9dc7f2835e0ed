// Package content serves blog posts from a directory of Markdown files with
// YAML front matter.
package content

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	blogerrors "github.com/EHam1/very-professional-blog/internal/errors"
	"github.com/EHam1/very-professional-blog/internal/observability"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// Front matter defaults.
const (
	DefaultTitle  = "Untitled"
	DefaultAuthor = "Anonymous"
)

// WordsPerMinute is the reading speed used for reading time estimates.
const WordsPerMinute = 200

// Extensions are the recognised content file extensions, in lookup order.
var Extensions = []string{".mdx", ".md"}

// ErrNotFound is returned (wrapped) when a slug has no readable item.
var ErrNotFound = types.ErrContentNotFound

type frontMatter struct {
	Title   string `yaml:"title"`
	Date    string `yaml:"date"`
	Excerpt string `yaml:"excerpt"`
	Author  string `yaml:"author"`
}

// Provider reads content items from a directory.
type Provider struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for unreadable items.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = observability.OrDiscard(logger)
	}
}

// WithClock sets the clock used for the default date.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates a provider over dir.
func NewProvider(dir string, opts ...Option) *Provider {
	p := &Provider{
		dir:    dir,
		now:    time.Now,
		logger: observability.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dir returns the content directory.
func (p *Provider) Dir() string {
	return p.dir
}

// Slugs lists the slugs of all content files. An unreadable directory yields
// no slugs.
func (p *Provider) Slugs() []string {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.logger.Error("failed to read content directory",
			slog.String("dir", p.dir),
			slog.String("error", err.Error()),
		)
		return nil
	}

	seen := make(map[string]struct{})
	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		slug, ok := slugOf(e.Name())
		if !ok {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Get loads the item for slug. The .mdx file wins over .md.
func (p *Provider) Get(slug string) (types.ContentItem, error) {
	if !validSlug(slug) {
		return types.ContentItem{}, notFound(slug, nil)
	}

	var (
		raw     []byte
		readErr error
	)
	for _, ext := range Extensions {
		raw, readErr = os.ReadFile(filepath.Join(p.dir, slug+ext))
		if readErr == nil {
			break
		}
	}
	if readErr != nil {
		return types.ContentItem{}, notFound(slug, readErr)
	}

	fm, body, err := splitFrontMatter(raw)
	if err != nil {
		p.logger.Error("failed to parse front matter",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return types.ContentItem{}, notFound(slug, err)
	}

	item := types.ContentItem{
		ContentMetadata: types.ContentMetadata{
			Slug:        slug,
			Title:       orDefault(fm.Title, DefaultTitle),
			Date:        orDefault(fm.Date, p.now().UTC().Format(time.RFC3339)),
			Excerpt:     fm.Excerpt,
			Author:      orDefault(fm.Author, DefaultAuthor),
			ReadingTime: ReadingTime(body),
		},
		Body: body,
	}
	return item, nil
}

// All returns the metadata of every readable item, newest first. Unreadable
// items are skipped.
func (p *Provider) All() []types.ContentMetadata {
	var items []types.ContentMetadata
	for _, slug := range p.Slugs() {
		item, err := p.Get(slug)
		if err != nil {
			continue
		}
		items = append(items, item.ContentMetadata)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return parseDate(items[i].Date).After(parseDate(items[j].Date))
	})
	return items
}

// ReadingTime estimates the reading time of body as "N min read", rounding up
// with a minimum of one minute.
func ReadingTime(body string) string {
	words := len(strings.Fields(body))
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

var frontMatterDelim = []byte("---")

// splitFrontMatter separates a leading "---" delimited YAML block from the
// body. Files without one are all body.
func splitFrontMatter(raw []byte) (frontMatter, string, error) {
	var fm frontMatter

	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(raw, frontMatterDelim) {
		return fm, string(raw), nil
	}

	rest := raw[len(frontMatterDelim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return fm, string(raw), nil
	}
	rest = rest[nl+1:]

	var header, body []byte
	for offset := 0; ; {
		line := rest[offset:]
		end := bytes.IndexByte(line, '\n')
		if end < 0 {
			end = len(line)
		}
		if bytes.Equal(bytes.TrimRight(line[:end], " \t\r"), frontMatterDelim) {
			header = rest[:offset]
			if offset+end < len(rest) {
				body = rest[offset+end+1:]
			}
			break
		}
		if offset+end >= len(rest) {
			return fm, "", fmt.Errorf("unterminated front matter")
		}
		offset += end + 1
	}

	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, "", err
	}
	return fm, string(body), nil
}

func slugOf(name string) (string, bool) {
	for _, ext := range Extensions {
		if strings.HasSuffix(name, ext) {
			slug := strings.TrimSuffix(name, ext)
			return slug, slug != ""
		}
	}
	return "", false
}

func validSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." && !strings.ContainsAny(slug, `/\`)
}

func notFound(slug string, cause error) error {
	err := fmt.Errorf("%w: %s", ErrNotFound, slug)
	if cause != nil {
		err = fmt.Errorf("%w: %s: %v", ErrNotFound, slug, cause)
	}
	return blogerrors.NewContentError(blogerrors.CodeNotFound, "post not found", err)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// parseDate parses common front matter date forms; unparsable dates sort last.
func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
