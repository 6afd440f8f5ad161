// Package emailrender normalizes arbitrary author-supplied HTML into a
// self-contained, CSS-inlined document that renders consistently across
// mail clients, and serializes it into a transport-ready raw message.
package emailrender

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/cache"
)

// ErrParseFailed indicates the HTML body could not be parsed.
var ErrParseFailed = errors.New("emailrender: failed to parse html body")

// imgReset is appended to every image so clients do not add gaps or
// borders around them.
const imgReset = "display: block; border: 0; outline: none; text-decoration: none;"

// Renderer transforms untrusted HTML into mail-safe HTML.
// The transform is idempotent: rendering rendered output changes nothing.
type Renderer struct {
	policy *bluemonday.Policy
	cache  cache.Cache[string]
}

// Option configures the Renderer.
type Option func(*Renderer)

// WithCache memoizes rendered bodies by content hash. The cache is an
// explicit injected object so its capacity and lifetime stay visible to
// the caller; rendering is deterministic, which makes memoization safe.
func WithCache(c cache.Cache[string]) Option {
	return func(r *Renderer) {
		r.cache = c
	}
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{policy: emailPolicy()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render runs the full transform: sanitize, normalize into a complete
// document, inline stylesheet rules, apply client-compatibility rewrites.
// Recipients are never validated here; that is the caller's job.
func (r *Renderer) Render(ctx context.Context, htmlBody string) (string, error) {
	if r.cache != nil {
		key := contentKey(htmlBody)
		if v, err := r.cache.Get(ctx, key); err == nil {
			return v, nil
		}
		out, err := r.render(htmlBody)
		if err != nil {
			return "", err
		}
		_ = r.cache.Set(ctx, key, out, 0) // best effort
		return out, nil
	}
	return r.render(htmlBody)
}

func (r *Renderer) render(htmlBody string) (string, error) {
	// Remember before sanitizing: bluemonday drops the doctype, so the
	// wrap decision has to look at the original input.
	isDocument := hasDocumentPrefix(htmlBody)

	clean := r.policy.Sanitize(htmlBody)
	if !isDocument {
		clean = wrapDocument(clean)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return "", errors.Join(ErrParseFailed, err)
	}

	inlineStylesheets(doc)
	rewriteTables(doc)
	rewriteImages(doc)
	rewriteInlineStyles(doc)

	out, err := doc.Html()
	if err != nil {
		return "", errors.Join(ErrParseFailed, err)
	}
	return out, nil
}

// hasDocumentPrefix reports whether the body is already a full document.
// Leading comments (preheader tricks and the like) are skipped so a
// commented document is not wrapped a second time.
func hasDocumentPrefix(body string) bool {
	head := strings.TrimSpace(body)
	for strings.HasPrefix(head, "<!--") {
		end := strings.Index(head, "-->")
		if end < 0 {
			break
		}
		head = strings.TrimSpace(head[end+len("-->"):])
	}
	head = strings.ToLower(head)
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// wrapDocument embeds a fragment in a minimal document. Many mail clients
// render bare fragments inconsistently, so every message ships as a
// complete document with charset and viewport declared.
func wrapDocument(fragment string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title></title></head><body>`)
	b.WriteString(fragment)
	b.WriteString("</body></html>")
	return b.String()
}

// matchedStyle is one stylesheet rule that matched an element, kept with
// the selector's specificity so the cascade can be replayed in the
// inlined attribute.
type matchedStyle struct {
	spec  cascadia.Specificity
	style string
}

// inlineTarget accumulates every matching rule for one element before its
// style attribute is written exactly once.
type inlineTarget struct {
	el       *goquery.Selection
	existing string
	matches  []matchedStyle
}

// inlineStylesheets moves <style> rule declarations onto matching
// elements' style attributes and strips the then-redundant <style> tags.
//
// Declarations land in the attribute in cascade order: lower-specificity
// rules first, document order breaking ties, with any pre-existing inline
// style last. Last declaration wins inside an attribute, so the winner
// matches what a stylesheet-aware client would have picked.
//
// At-rules (media queries, font-face, keyframes) are dropped: most mail
// clients ignore or mishandle them. "!important" survives verbatim since
// several clients depend on it to win cascade conflicts inside the same
// inlined attribute.
func inlineStylesheets(doc *goquery.Document) {
	var rules []*css.Rule
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		sheet, err := parser.Parse(s.Text())
		if err != nil {
			return // unparseable blocks are dropped with their tag
		}
		for _, rule := range sheet.Rules {
			if rule.Kind == css.QualifiedRule {
				rules = append(rules, rule)
			}
		}
	})

	targets := make(map[*html.Node]*inlineTarget)
	var seen []*html.Node

	for _, rule := range rules {
		decls := make([]string, 0, len(rule.Declarations))
		for _, d := range rule.Declarations {
			decls = append(decls, d.String())
		}
		ruleStyle := strings.Join(decls, " ")

		for _, selText := range rule.Selectors {
			sel, err := cascadia.Parse(selText)
			if err != nil {
				continue // selectors mail HTML cannot express are skipped
			}
			spec := sel.Specificity()
			doc.FindMatcher(cascadia.Selector(sel.Match)).Each(func(_ int, el *goquery.Selection) {
				node := el.Get(0)
				t, ok := targets[node]
				if !ok {
					existing, _ := el.Attr("style")
					t = &inlineTarget{el: el, existing: existing}
					targets[node] = t
					seen = append(seen, node)
				}
				t.matches = append(t.matches, matchedStyle{spec: spec, style: ruleStyle})
			})
		}
	}

	for _, node := range seen {
		t := targets[node]
		sort.SliceStable(t.matches, func(i, j int) bool {
			return t.matches[i].spec.Less(t.matches[j].spec)
		})
		parts := make([]string, 0, len(t.matches)+1)
		for _, m := range t.matches {
			parts = append(parts, m.style)
		}
		if t.existing != "" {
			parts = append(parts, t.existing)
		}
		t.el.SetAttr("style", strings.Join(parts, " "))
	}

	doc.Find("style").Remove()
}

// rewriteTables zeroes table spacing unless the author set it explicitly.
func rewriteTables(doc *goquery.Document) {
	doc.Find("table").Each(func(_ int, el *goquery.Selection) {
		if _, ok := el.Attr("cellpadding"); ok {
			return
		}
		el.SetAttr("cellpadding", "0")
		el.SetAttr("cellspacing", "0")
		el.SetAttr("border", "0")
	})
}

// rewriteImages appends the display reset to every image that does not
// already declare display:block, keeping the pass idempotent.
func rewriteImages(doc *goquery.Document) {
	doc.Find("img").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		if hasDeclaration(style, "display", "block") {
			return
		}
		if style != "" && !strings.HasSuffix(strings.TrimSpace(style), ";") {
			style += ";"
		}
		if style != "" {
			style += " "
		}
		el.SetAttr("style", style+imgReset)
	})
}

// rewriteInlineStyles normalizes every style attribute: declarations that
// commonly break layouts outright (box-shadow, text-shadow, transform)
// are removed, and line-height gains the Outlook exact-height hint.
func rewriteInlineStyles(doc *goquery.Document) {
	doc.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		decls, err := parser.ParseDeclarations(style)
		if err != nil {
			return
		}

		parts := make([]string, 0, len(decls)+1)
		var hasLineHeight, hasMsoHint bool
		for _, d := range decls {
			switch strings.ToLower(d.Property) {
			case "box-shadow", "text-shadow", "transform":
				continue
			case "line-height":
				hasLineHeight = true
			case "mso-line-height-rule":
				hasMsoHint = true
			}
			parts = append(parts, d.String())
		}

		if hasLineHeight && !hasMsoHint {
			parts = append(parts, "mso-line-height-rule: exactly;")
		}

		el.SetAttr("style", strings.Join(parts, " "))
	})
}

// hasDeclaration reports whether the style attribute already carries the
// given property with the given value.
func hasDeclaration(style, property, value string) bool {
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return false
	}
	for _, d := range decls {
		if strings.EqualFold(d.Property, property) && strings.EqualFold(strings.TrimSpace(d.Value), value) {
			return true
		}
	}
	return false
}

func contentKey(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// emailPolicy permits the document structure and presentational markup
// emails need while still stripping scripts, event handlers, and
// javascript: URLs. Author HTML is untrusted input.
func emailPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("html", "head", "body", "title", "style", "center", "font")
	p.AllowAttrs("charset", "name", "content", "http-equiv").OnElements("meta")
	p.AllowElements("meta")
	p.AllowAttrs("style").Globally()
	p.AllowAttrs("class", "id").Globally()
	p.AllowTables()
	p.AllowAttrs("cellpadding", "cellspacing", "border", "width", "height", "align", "valign", "bgcolor").
		OnElements("table", "thead", "tbody", "tfoot", "tr", "td", "th")
	p.AllowAttrs("width", "height", "border", "alt").OnElements("img")
	p.AllowImages()
	p.AllowStandardURLs()
	return p
}
