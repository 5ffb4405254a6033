package reply

import (
	"regexp"
	"strings"

	"github.com/aescanero/chatrelay/pkg/domain"
)

var (
	svgPattern     = regexp.MustCompile(`(?is)<svg\b.*?</svg\s*>`)
	htmlDocStart   = regexp.MustCompile(`(?i)<!doctype\s+html|<html[\s>]`)
	htmlDocEnd     = regexp.MustCompile(`(?i)</html\s*>`)
	fenceLanguages = map[string]domain.BlockKind{
		"html":  domain.BlockHTML,
		"htm":   domain.BlockHTML,
		"xhtml": domain.BlockHTML,
		"svg":   domain.BlockSVG,
	}
)

// segment splits reply text into blocks. Fenced code keeps its language;
// html and svg fences, bare <svg> elements and whole HTML documents become
// markup blocks.
func segment(text string) []domain.Block {
	var (
		blocks []domain.Block
		plain  []string
	)

	flushPlain := func() {
		if len(plain) == 0 {
			return
		}
		blocks = append(blocks, splitMarkup(strings.Join(plain, "\n"))...)
		plain = nil
	}

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "```") {
			plain = append(plain, lines[i])
			continue
		}

		flushPlain()

		lang := fenceLanguage(strings.TrimPrefix(trimmed, "```"))
		var body []string
		for i++; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "```" {
				break
			}
			body = append(body, lines[i])
		}
		blocks = append(blocks, fencedBlock(lang, strings.Join(body, "\n")))
	}
	flushPlain()

	return blocks
}

// fenceLanguage returns the language of a fence info string. Markdown
// renderers only look at the first word, so "html preview" is html; the
// rest of the info string is discarded.
func fenceLanguage(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	lang := strings.TrimPrefix(fields[0], "{")
	lang = strings.TrimPrefix(lang, ".")
	lang = strings.TrimSuffix(lang, "}")
	return strings.ToLower(lang)
}

func fencedBlock(lang, body string) domain.Block {
	if kind, ok := fenceLanguages[lang]; ok {
		return domain.Block{Kind: kind, Content: body}
	}

	lowered := strings.ToLower(strings.TrimSpace(body))
	if (lang == "" || lang == "xml") && strings.HasPrefix(lowered, "<svg") {
		return domain.Block{Kind: domain.BlockSVG, Content: body}
	}
	if lang == "" && htmlDocStart.MatchString(lowered) && strings.HasPrefix(lowered, "<") {
		return domain.Block{Kind: domain.BlockHTML, Content: body}
	}

	return domain.Block{Kind: domain.BlockCode, Content: body, Language: lang}
}

// splitMarkup separates an HTML document or inline <svg> elements from the
// prose around them
func splitMarkup(text string) []domain.Block {
	if loc := htmlDocStart.FindStringIndex(text); loc != nil {
		end := len(text)
		if endLoc := htmlDocEnd.FindStringIndex(text[loc[0]:]); endLoc != nil {
			end = loc[0] + endLoc[1]
		}
		var blocks []domain.Block
		blocks = appendText(blocks, text[:loc[0]])
		blocks = append(blocks, domain.Block{Kind: domain.BlockHTML, Content: text[loc[0]:end]})
		return append(blocks, splitMarkup(text[end:])...)
	}

	var blocks []domain.Block
	last := 0
	for _, loc := range svgPattern.FindAllStringIndex(text, -1) {
		blocks = appendText(blocks, text[last:loc[0]])
		blocks = append(blocks, domain.Block{Kind: domain.BlockSVG, Content: text[loc[0]:loc[1]]})
		last = loc[1]
	}
	return appendText(blocks, text[last:])
}

func appendText(blocks []domain.Block, text string) []domain.Block {
	if strings.TrimSpace(text) == "" {
		return blocks
	}
	return append(blocks, domain.Block{Kind: domain.BlockText, Content: strings.TrimSpace(text)})
}
