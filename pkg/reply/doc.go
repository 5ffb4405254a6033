// Package reply turns raw upstream AI replies into content that is safe to
// display.
//
// Upstream webhooks answer with plain text, JSON objects, JSON arrays or
// double-encoded strings. The Normalizer extracts the reply text, splits it
// into text, code, HTML and SVG blocks, and sanitizes every block that can
// carry markup before it reaches a browser.
package reply
