package download

import (
	"net/http"
	"strings"
)

// HeaderProvider supplies per-URL request headers for authenticated
// downloads. A nil provider or an empty result means an unauthenticated
// request.
type HeaderProvider interface {
	Headers(url string) http.Header
}

// StaticHeaderProvider attaches the same headers to every request.
type StaticHeaderProvider struct {
	headers http.Header
}

// NewStaticHeaderProvider parses "Name: value" lines (one per line, as
// accepted by the AUTH_HEADER setting) into a provider. Malformed lines are
// skipped; no valid lines yields a nil provider.
func NewStaticHeaderProvider(raw string) HeaderProvider {
	h := make(http.Header)
	for _, line := range strings.Split(raw, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		h.Add(name, value)
	}
	if len(h) == 0 {
		return nil
	}
	return &StaticHeaderProvider{headers: h}
}

// Headers returns the configured headers regardless of URL.
func (p *StaticHeaderProvider) Headers(string) http.Header {
	return p.headers
}
