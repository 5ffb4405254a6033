package reply

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/aescanero/chatrelay/pkg/domain"
	"go.uber.org/zap"
)

// ErrEmptyReply is returned when an upstream reply holds no displayable content
var ErrEmptyReply = errors.New("upstream reply is empty")

const blockSeparator = "\n\n"

// Normalized is a reply ready for display
type Normalized struct {
	Content   string
	Format    domain.Format
	Blocks    []domain.Block
	Truncated bool

	// Sanitized lists the kind of every block that went through a markup policy
	Sanitized []domain.BlockKind
}

// Normalizer extracts, segments and sanitizes upstream replies
type Normalizer struct {
	maxBytes  int
	sanitizer *Sanitizer
	logger    *zap.Logger
}

// NewNormalizer creates a normalizer that caps rendered content at maxBytes
func NewNormalizer(maxBytes int, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		maxBytes:  maxBytes,
		sanitizer: NewSanitizer(),
		logger:    logger,
	}
}

// Normalize converts a raw upstream body into display-safe blocks
func (n *Normalizer) Normalize(body []byte, contentType string) (*Normalized, error) {
	text, isJSON := extractText(body, contentType)
	text = cleanText(text)
	if text == "" {
		return nil, ErrEmptyReply
	}

	result := &Normalized{}
	for _, block := range segment(text) {
		if clean, ok := n.sanitize(block, result); ok {
			result.Blocks = append(result.Blocks, clean)
		}
	}
	if len(result.Blocks) == 0 {
		return nil, ErrEmptyReply
	}

	result.Blocks, result.Truncated = n.fit(result.Blocks)
	if len(result.Blocks) == 0 {
		return nil, ErrEmptyReply
	}
	result.Content = render(result.Blocks)
	result.Format = formatOf(result.Blocks, isJSON)

	if result.Truncated {
		n.logger.Warn("reply truncated",
			zap.Int("body_bytes", len(body)),
			zap.Int("max_bytes", n.maxBytes))
	}

	return result, nil
}

func (n *Normalizer) sanitize(block domain.Block, result *Normalized) (domain.Block, bool) {
	switch block.Kind {
	case domain.BlockHTML:
		block.Content = n.sanitizer.HTML(block.Content)
		result.Sanitized = append(result.Sanitized, block.Kind)
	case domain.BlockSVG:
		block.Content = n.sanitizer.SVG(block.Content)
		result.Sanitized = append(result.Sanitized, block.Kind)
	case domain.BlockText:
		var changed bool
		block.Content, changed = n.sanitizer.Text(block.Content)
		if changed {
			result.Sanitized = append(result.Sanitized, block.Kind)
		}
	}
	return block, strings.TrimSpace(block.Content) != ""
}

// fit drops or cuts trailing blocks so the rendered content stays within
// maxBytes. Markup blocks are never cut, since half an element is useless.
func (n *Normalizer) fit(blocks []domain.Block) ([]domain.Block, bool) {
	if n.maxBytes <= 0 || len(render(blocks)) <= n.maxBytes {
		return blocks, false
	}

	var kept []domain.Block
	used := 0
	for _, block := range blocks {
		sep := 0
		if len(kept) > 0 {
			sep = len(blockSeparator)
		}
		size := len(renderBlock(block))
		if used+sep+size <= n.maxBytes {
			kept = append(kept, block)
			used += sep + size
			continue
		}

		if block.Kind == domain.BlockText || block.Kind == domain.BlockCode {
			overhead := size - len(block.Content)
			if room := n.maxBytes - used - sep - overhead; room > 0 {
				block.Content = cutRunes(block.Content, room)
				kept = append(kept, block)
			}
		}
		break
	}
	return kept, true
}

func cutRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func render(blocks []domain.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		parts = append(parts, renderBlock(block))
	}
	return strings.Join(parts, blockSeparator)
}

func renderBlock(block domain.Block) string {
	switch block.Kind {
	case domain.BlockHTML:
		return "```html\n" + block.Content + "\n```"
	case domain.BlockSVG:
		return "```svg\n" + block.Content + "\n```"
	case domain.BlockCode:
		return "```" + block.Language + "\n" + block.Content + "\n```"
	default:
		return block.Content
	}
}

func formatOf(blocks []domain.Block, isJSON bool) domain.Format {
	if isJSON {
		return domain.FormatJSON
	}

	kinds := make(map[domain.BlockKind]struct{})
	for _, block := range blocks {
		kind := block.Kind
		if kind == domain.BlockCode {
			kind = domain.BlockText
		}
		kinds[kind] = struct{}{}
	}
	if len(kinds) > 1 {
		return domain.FormatMixed
	}
	for kind := range kinds {
		switch kind {
		case domain.BlockHTML:
			return domain.FormatHTML
		case domain.BlockSVG:
			return domain.FormatSVG
		}
	}
	return domain.FormatText
}
