package pipeline

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
)

// Dedup key policy: the normalized lowercase title (punctuation stripped,
// whitespace collapsed) identifies an item across sources; when a title is
// missing, the canonical URL (scheme+host+path, query and fragment dropped)
// stands in. The sha1 hex of the normalized string is what memory stores.
// This is internal policy, not an external contract.

// DedupKey derives the stable dedup key for a candidate item.
func DedupKey(item domain.CandidateItem) string {
	normalized := normalizeTitle(item.Title)
	if normalized == "" {
		normalized = canonicalURL(item.URL)
	}
	if normalized == "" {
		normalized = item.SourceID + "|" + item.FetchedAt.UTC().String()
	}
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeTitle(title string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// punctuation and symbols are dropped entirely
	}
	return strings.TrimSpace(b.String())
}

func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(raw)
	}
	path := strings.TrimRight(parsed.EscapedPath(), "/")
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host + path)
}
