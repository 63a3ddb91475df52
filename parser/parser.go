package parser

import "strings"

// StripCaption removes a leading caption such as "Number of pages:" from a
// labeled span and trims the remainder.
func StripCaption(text, caption string) string {
	return strings.TrimSpace(strings.Replace(text, caption, "", 1))
}

// AbstractIDFromURL derives the abstract id from a detail-page URL by
// taking the value of the abstract_id query key up to the next '&'. A URL
// without the key yields the URL itself cut at the first '&', matching
// the listing site's legacy link format.
func AbstractIDFromURL(rawURL string) string {
	const key = "abstract_id="
	id := rawURL
	if idx := strings.LastIndex(rawURL, key); idx >= 0 {
		id = rawURL[idx+len(key):]
	}
	if amp := strings.IndexByte(id, '&'); amp >= 0 {
		id = id[:amp]
	}
	return id
}

// CollapseWhitespace flattens runs of whitespace (including newlines from
// nested markup) into single spaces.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
