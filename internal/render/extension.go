package render

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/FranksOps/serpent/pkg/useragent"
)

const extensionManifest = `{
  "manifest_version": 3,
  "name": "serpent proxy auth",
  "version": "1.0.0",
  "permissions": ["proxy", "webRequest", "webRequestAuthProvider"],
  "host_permissions": ["<all_urls>"],
  "background": {"service_worker": "background.js"}
}
`

const extensionBackground = `const config = {
  mode: "fixed_servers",
  rules: {
    singleProxy: { scheme: %s, host: %s, port: %d },
    bypassList: ["localhost"]
  }
};

chrome.proxy.settings.set({ value: config, scope: "regular" }, function () {});

chrome.webRequest.onAuthRequired.addListener(
  function (details, callback) {
    callback({ authCredentials: { username: %s, password: %s } });
  },
  { urls: ["<all_urls>"] },
  ["asyncBlocking"]
);
`

// Extension is an unpacked browser extension on disk that configures the
// browser's proxy and answers its authentication challenges.
type Extension struct {
	Dir  string
	once sync.Once
	err  error
}

// Cleanup removes the extension directory. It is safe to call more than once
// and on a nil Extension.
func (e *Extension) Cleanup() error {
	if e == nil {
		return nil
	}
	e.once.Do(func() {
		if err := os.RemoveAll(e.Dir); err != nil {
			e.err = fmt.Errorf("render: remove extension: %w", err)
		}
	})
	return e.err
}

// ProxyAuth prepares the per-session identity: a User-Agent and, for proxies
// with embedded credentials, a transient proxy-auth extension.
type ProxyAuth struct {
	UserAgents useragent.Provider
	// TempDir is where extensions are written. Defaults to os.TempDir().
	TempDir string
}

// NewProxyAuth returns a ProxyAuth drawing identities from uas, or from a
// mobile Generator when uas is nil.
func NewProxyAuth(uas useragent.Provider) *ProxyAuth {
	if uas == nil {
		uas = useragent.NewGenerator()
	}
	return &ProxyAuth{UserAgents: uas}
}

// Prepare returns the extension for proxyURL (nil when the proxy carries no
// credentials or there is no proxy) and a fresh User-Agent for the session.
// The caller owns the extension and must Cleanup it.
func (p *ProxyAuth) Prepare(proxyURL *url.URL) (*Extension, string, error) {
	ua := p.UserAgents.Next()

	user, pass, ok := proxy.Credentials(proxyURL)
	if !ok {
		return nil, ua, nil
	}
	if err := proxy.CheckScheme(proxyURL); err != nil {
		return nil, "", fmt.Errorf("render: %w", err)
	}

	host, portStr := proxy.HostPort(proxyURL)
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, "", fmt.Errorf("render: invalid proxy port %q: %w", portStr, err)
	}

	dir, err := os.MkdirTemp(p.TempDir, "serpent-proxy-auth-")
	if err != nil {
		return nil, "", fmt.Errorf("render: create extension dir: %w", err)
	}
	ext := &Extension{Dir: dir}

	background := fmt.Sprintf(extensionBackground,
		jsString(strings.ToLower(proxyURL.Scheme)), jsString(host), port, jsString(user), jsString(pass))

	files := map[string]string{
		"manifest.json": extensionManifest,
		"background.js": background,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			_ = ext.Cleanup()
			return nil, "", fmt.Errorf("render: write %s: %w", name, err)
		}
	}
	return ext, ua, nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
