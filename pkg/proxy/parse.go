package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Parse turns a proxy string into a URL. A missing scheme defaults to http.
// Only http, https and socks5 proxies are accepted, and a host is required.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("proxy: empty proxy URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse %q: %w", redact(raw), err)
	}
	if err := CheckScheme(u); err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("proxy: missing host in %q", u.Redacted())
	}
	return u, nil
}

// CheckScheme rejects proxy URLs whose scheme the transports cannot speak.
func CheckScheme(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5":
		return nil
	default:
		return fmt.Errorf("proxy: unsupported scheme %q", u.Scheme)
	}
}

// Credentials returns the username and password embedded in a proxy URL.
// ok is false when the URL carries no username.
func Credentials(u *url.URL) (user, pass string, ok bool) {
	if u == nil || u.User == nil || u.User.Username() == "" {
		return "", "", false
	}
	pass, _ = u.User.Password()
	return u.User.Username(), pass, true
}

// HostPort splits the proxy endpoint, filling in the scheme's default port.
func HostPort(u *url.URL) (host, port string) {
	host = u.Hostname()
	port = u.Port()
	if port != "" {
		return host, port
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return host, "443"
	case "socks5":
		return host, "1080"
	default:
		return host, "80"
	}
}

// Server renders scheme://host:port without credentials, the form browsers
// accept for --proxy-server.
func Server(u *url.URL) string {
	host, port := HostPort(u)
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), net.JoinHostPort(host, port))
}

func redact(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Redacted()
	}
	return raw
}
