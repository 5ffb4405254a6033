package reply

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// svgElements are the drawing elements kept in SVG payloads. Names are
// lower-case because the tokenizer folds case before policies see them.
var svgElements = []string{
	"svg", "g", "path", "circle", "ellipse", "rect", "line", "polyline", "polygon",
	"text", "tspan", "title", "desc", "defs", "lineargradient", "radialgradient",
	"stop", "clippath", "mask", "pattern", "marker", "symbol",
}

var svgAttributes = []string{
	"d", "fill-opacity", "fill-rule", "stroke-width",
	"stroke-linecap", "stroke-linejoin", "stroke-dasharray", "stroke-opacity",
	"opacity", "transform", "cx", "cy", "r", "rx", "ry", "x", "y", "x1", "y1",
	"x2", "y2", "dx", "dy", "width", "height", "points", "font-size", "font-family", "font-weight",
	"text-anchor", "dominant-baseline", "offset", "stop-opacity",
	"gradientunits", "gradienttransform", "markerwidth", "markerheight", "refx", "refy",
	"orient", "patternunits", "visibility", "display", "id", "class",
}

// Paint and reference attributes may only point at elements of the same
// document: url(#id), never an external resource.
var (
	svgPaintAttributes     = []string{"fill", "stroke"}
	svgColorAttributes     = []string{"stop-color"}
	svgReferenceAttributes = []string{"clip-path", "mask", "marker-start", "marker-mid", "marker-end"}

	svgLocalURL  = `url\(\s*['"]?#[\w.:-]+['"]?\s*\)`
	svgColor     = `(?:[a-z]+|#[0-9a-f]{3,8}|(?:rgb|hsl)a?\(\s*[0-9.,%\s]+\))`
	svgPaint     = regexp.MustCompile(`(?i)^\s*(?:` + svgLocalURL + `(?:\s+` + svgColor + `)?|` + svgColor + `)\s*$`)
	svgColorOnly = regexp.MustCompile(`(?i)^\s*` + svgColor + `\s*$`)
	svgReference = regexp.MustCompile(`(?i)^\s*(?:none|` + svgLocalURL + `)\s*$`)
)

// allowSVG extends a policy with the SVG drawing vocabulary. Scripts,
// foreignObject, use, every href and external url() references stay
// disallowed.
func allowSVG(p *bluemonday.Policy) *bluemonday.Policy {
	p.AllowElements(svgElements...)
	p.AllowNoAttrs().OnElements(svgElements...)
	p.AllowAttrs("viewbox", "width", "height", "xmlns", "version", "preserveaspectratio").OnElements("svg")
	p.AllowAttrs(svgAttributes...).OnElements(svgElements...)
	p.AllowAttrs(svgPaintAttributes...).Matching(svgPaint).OnElements(svgElements...)
	p.AllowAttrs(svgColorAttributes...).Matching(svgColorOnly).OnElements(svgElements...)
	p.AllowAttrs(svgReferenceAttributes...).Matching(svgReference).OnElements(svgElements...)
	return p
}

// Sanitizer applies the markup policies used for reply blocks
type Sanitizer struct {
	html *bluemonday.Policy
	svg  *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with the default reply policies
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		html: allowSVG(bluemonday.UGCPolicy()),
		svg:  allowSVG(bluemonday.NewPolicy()),
	}
}

// HTML sanitizes an HTML fragment or document
func (s *Sanitizer) HTML(input string) string {
	return strings.TrimSpace(s.html.Sanitize(input))
}

// SVG sanitizes an SVG document
func (s *Sanitizer) SVG(input string) string {
	return strings.TrimSpace(s.svg.Sanitize(input))
}

// Text sanitizes prose. Text without real HTML elements is returned as is so
// markdown such as "a < b" or "<user@example.com>" is left alone.
func (s *Sanitizer) Text(input string) (string, bool) {
	if !containsMarkup(input) {
		return input, false
	}
	return strings.TrimSpace(s.html.Sanitize(input)), true
}

// containsMarkup reports whether input holds at least one known HTML or SVG
// element tag
func containsMarkup(input string) bool {
	if !strings.Contains(input, "<") {
		return false
	}

	z := html.NewTokenizer(strings.NewReader(input))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != 0 || isSVGElement(string(name)) {
				return true
			}
		}
	}
}

func isSVGElement(name string) bool {
	for _, el := range svgElements {
		if el == name {
			return true
		}
	}
	return false
}
