package serp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// pagePad is added to the wanted result count so that non-result blocks on a
// page do not force an extra request.
const pagePad = 2

// BuildURL renders the result page URL for req against base. Empty language
// and region parameters are left out.
func BuildURL(base string, req FetchRequest) (string, error) {
	if base == "" {
		base = DefaultEndpoint
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("serp: parse endpoint %q: %w", base, err)
	}

	q := u.Query()
	q.Set("q", req.Term)
	q.Set("num", strconv.Itoa(req.Num+pagePad))
	if req.Lang != "" {
		q.Set("hl", req.Lang)
	}
	q.Set("start", strconv.Itoa(req.Offset))
	if req.Safe != "" {
		q.Set("safe", req.Safe)
	}
	if req.Region != "" {
		q.Set("gl", req.Region)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DecodeLink turns a result href into the target URL: everything from the
// first '&' is dropped, the /url?q= redirect prefix is stripped and the rest
// is percent-decoded. Malformed escapes are copied through unchanged.
func DecodeLink(href string) string {
	link, _, _ := strings.Cut(href, "&")
	link = strings.ReplaceAll(link, "/url?q=", "")
	return unescapeLenient(link)
}

// unescapeLenient decodes every valid %XX sequence and leaves the rest as is.
// '+' is not treated as a space.
func unescapeLenient(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
