package reply

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"

	"github.com/tidwall/gjson"
)

// replyPaths lists where webhook orchestrators usually put the reply text,
// in lookup order
var replyPaths = []string{
	"output",
	"text",
	"response",
	"reply",
	"answer",
	"message",
	"content",
	"data.output",
	"data.text",
	"choices.0.message.content",
	"message.content",
}

// extractText returns the reply text carried by body. The second result is
// true when body was a JSON document without a recognizable text field and
// was rendered as a fenced json block instead.
func extractText(body []byte, contentType string) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", false
	}

	if looksLikeJSON(trimmed, contentType) && gjson.ValidBytes(trimmed) {
		result := gjson.ParseBytes(trimmed)
		if text := textFromJSON(result, 0); strings.TrimSpace(text) != "" {
			return text, false
		}
		if hasReplyField(result) {
			return "", false
		}
		if (result.IsArray() && len(result.Array()) > 0) || (result.IsObject() && len(result.Map()) > 0) {
			return fenceJSON(trimmed), true
		}
		return "", false
	}

	return strings.ToValidUTF8(string(body), "\uFFFD"), false
}

func looksLikeJSON(body []byte, contentType string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
			return true
		}
	}
	switch body[0] {
	case '{', '[', '"':
		return true
	}
	return false
}

// textFromJSON digs the reply text out of a JSON value. Nesting is bounded
// so hostile payloads cannot recurse forever.
func textFromJSON(result gjson.Result, depth int) string {
	if depth > 4 {
		return ""
	}

	switch result.Type {
	case gjson.String:
		return result.String()
	case gjson.Number, gjson.True, gjson.False:
		return result.Raw
	case gjson.JSON:
		if result.IsArray() {
			for _, item := range result.Array() {
				if text := textFromJSON(item, depth+1); strings.TrimSpace(text) != "" {
					return text
				}
			}
			return ""
		}
		for _, path := range replyPaths {
			value := result.Get(path)
			if !value.Exists() {
				continue
			}
			if text := textFromJSON(value, depth+1); strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return ""
}

// hasReplyField reports whether a JSON reply carries one of the known text
// fields, even an empty one
func hasReplyField(result gjson.Result) bool {
	if result.IsArray() {
		items := result.Array()
		if len(items) == 0 {
			return false
		}
		result = items[0]
	}
	if !result.IsObject() {
		return false
	}
	for _, path := range replyPaths {
		if result.Get(path).Exists() {
			return true
		}
	}
	return false
}

func fenceJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	return "```json\n" + buf.String() + "\n```"
}

var escapeReplacer = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\t`, "\t", `\"`, `"`)

// cleanText normalizes line endings and undoes one level of string escaping
// left behind by double-encoded webhook replies
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if !strings.Contains(text, "\n") && strings.Contains(text, `\n`) {
		text = escapeReplacer.Replace(text)
	}
	return strings.TrimSpace(text)
}
