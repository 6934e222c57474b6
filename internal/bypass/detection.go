package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Response is the slice of a fetched page the detectors inspect.
type Response struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Detector examines a response to determine if the search engine or an
// intermediary blocked or challenged the request.
type Detector func(res *Response) (detected bool, source string)

// Detection sources reported by the default detectors.
const (
	SourceGoogleSorry = "GoogleSorry"
	SourceRecaptcha   = "reCAPTCHA"
	SourceConsent     = "Consent"
	SourceCloudflare  = "Cloudflare"
)

// DefaultDetectors returns the standard list of block detectors, most specific first.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectRecaptcha,
		detectConsent,
		detectCloudflare,
	}
}

// Analyze runs the response through the detectors and reports the first hit.
func Analyze(res *Response, detectors []Detector) (bool, string) {
	if res == nil {
		return false, ""
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}

// Title returns the trimmed <title> text of an HTML body, or "".
func Title(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// detectGoogleSorry matches the rate-limit interstitial Google serves at /sorry/.
func detectGoogleSorry(res *Response) (bool, string) {
	if strings.Contains(res.URL, "/sorry/") {
		return true, SourceGoogleSorry
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return true, SourceGoogleSorry
	}
	if bytes.Contains(res.Body, []byte("Our systems have detected unusual traffic")) {
		return true, SourceGoogleSorry
	}
	return false, ""
}

func detectRecaptcha(res *Response) (bool, string) {
	if bytes.Contains(res.Body, []byte("g-recaptcha")) ||
		bytes.Contains(res.Body, []byte("www.google.com/recaptcha/api")) ||
		bytes.Contains(res.Body, []byte(`id="captcha-form"`)) {
		return true, SourceRecaptcha
	}
	return false, ""
}

// detectConsent matches the cookie consent wall shown when the consent
// cookies were not accepted.
func detectConsent(res *Response) (bool, string) {
	if strings.Contains(res.URL, "consent.google.") {
		return true, SourceConsent
	}
	if !bytes.Contains(res.Body, []byte("consent.google.")) {
		return false, ""
	}
	if strings.HasPrefix(Title(res.Body), "Before you continue") {
		return true, SourceConsent
	}
	return false, ""
}

// detectCloudflare looks for Cloudflare challenge pages, which show up when
// traffic is routed through a protected proxy or mirror.
func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Headers.Get("Server")), "cloudflare") {
		return true, SourceCloudflare
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, SourceCloudflare
	}
	return false, ""
}
