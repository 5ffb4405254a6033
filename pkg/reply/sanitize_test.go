package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsMarkup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain text", "This is just plain text", false},
		{"comparison", "use a < b when sorting", false},
		{"email brackets", "Contact me at <user@example.com>", false},
		{"bold tag", "Hello <b>world</b>", true},
		{"img tag", `<img src=x onerror=alert(1)>`, true},
		{"svg element", `<circle r="2"/>`, true},
		{"closing tag only", "stray </div>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsMarkup(tt.input))
		})
	}
}

func TestSanitizerText(t *testing.T) {
	s := NewSanitizer()

	out, changed := s.Text("use a < b and <user@example.com>")
	assert.False(t, changed)
	assert.Equal(t, "use a < b and <user@example.com>", out)

	out, changed = s.Text(`Hello <b>world</b> <img src="x.png" onerror="alert(1)">`)
	assert.True(t, changed)
	assert.Contains(t, out, "<b>world</b>")
	assert.NotContains(t, out, "onerror")
}

func TestSanitizerSVGDropsDangerousElements(t *testing.T) {
	s := NewSanitizer()

	out := s.SVG(`<svg><foreignObject><div>x</div></foreignObject><use href="https://evil/x.svg#a"/><path d="M0 0L1 1" style="fill:url(javascript:1)"/></svg>`)
	assert.NotContains(t, out, "foreignobject")
	assert.NotContains(t, out, "<use")
	assert.NotContains(t, out, "style=")
	assert.Contains(t, out, `<path d="M0 0L1 1"/>`)
}

func TestSanitizerSVGKeepsOnlyLocalReferences(t *testing.T) {
	s := NewSanitizer()

	out := s.SVG(`<svg><rect fill="url(https://evil.example/x.svg#p)" stroke="url(//evil.example/s#s) red" mask="url(https://evil.example/m.svg#m)" clip-path="url(data:image/svg+xml,x)" marker-end="url(https://evil.example/k#k)" stop-color="url(https://evil.example/c)" width="1"/></svg>`)
	assert.NotContains(t, out, "evil.example")
	assert.NotContains(t, out, "data:")
	assert.Contains(t, out, `width="1"`)

	out = s.SVG(`<svg><defs><linearGradient id="g"><stop offset="0" stop-color="#fff"/></linearGradient></defs><rect fill="url(#g)" stroke="url('#g') none" mask="url(#m)" clip-path="none" marker-end="url(#arrow)"/><circle fill="#336699" stroke="rgb(0, 0, 0)" r="2"/></svg>`)
	assert.Contains(t, out, `fill="url(#g)"`)
	assert.Contains(t, out, `mask="url(#m)"`)
	assert.Contains(t, out, `clip-path="none"`)
	assert.Contains(t, out, `marker-end="url(#arrow)"`)
	assert.Contains(t, out, `stop-color="#fff"`)
	assert.Contains(t, out, `fill="#336699"`)
	assert.Contains(t, out, `stroke="rgb(0, 0, 0)"`)
	assert.Contains(t, out, "stroke=")
}

func TestSanitizerHTMLAppliesSVGReferenceRules(t *testing.T) {
	out := NewSanitizer().HTML(`<p>chart</p><svg><path d="M0 0" fill="url(https://evil.example/p#x)"/></svg>`)
	assert.Contains(t, out, "<p>chart</p>")
	assert.NotContains(t, out, "evil.example")
}
