package application

import (
	"fmt"
	"net/url"
	"strings"
)

// ShareParam is the query parameter carrying a shared question.
const ShareParam = "q"

// EncodeQuestion percent-encodes a question for use as a query value.
// Spaces become %20 rather than '+', so links stay readable when pasted
// into clients that treat '+' literally.
func EncodeQuestion(question string) string {
	return strings.ReplaceAll(url.QueryEscape(question), "+", "%20")
}

// DecodeQuestion reverses EncodeQuestion. It also accepts '+' for space.
func DecodeQuestion(encoded string) (string, error) {
	q, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", fmt.Errorf("decode shared question: %w", err)
	}
	return q, nil
}

// ShareURL returns base with the encoded question attached as ?q=.
// Any fragment or existing q parameter on base is replaced.
func ShareURL(base, question string) string {
	u, err := url.Parse(base)
	if err != nil || (u.RawQuery == "" && u.Fragment == "") {
		return base + "?" + ShareParam + "=" + EncodeQuestion(question)
	}

	u.Fragment = ""
	params := strings.Split(u.RawQuery, "&")
	kept := params[:0]
	for _, p := range params {
		if p != "" && p != ShareParam && !strings.HasPrefix(p, ShareParam+"=") {
			kept = append(kept, p)
		}
	}
	kept = append(kept, ShareParam+"="+EncodeQuestion(question))
	u.RawQuery = strings.Join(kept, "&")
	return u.String()
}

// ParseShareURL extracts the shared question from a link. It reports false
// when the link has no usable q parameter.
func ParseShareURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	for _, p := range strings.Split(u.RawQuery, "&") {
		value, found := strings.CutPrefix(p, ShareParam+"=")
		if !found || value == "" {
			continue
		}
		q, err := DecodeQuestion(value)
		if err != nil || q == "" {
			return "", false
		}
		return q, true
	}
	return "", false
}
