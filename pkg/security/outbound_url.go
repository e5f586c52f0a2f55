package security

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// OutboundURLOptions configures validation of provider endpoint URLs.
type OutboundURLOptions struct {
	// AllowHTTP permits plain HTTP endpoints. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback/private/link-local targets and localhost hostnames.
	// Needed for local proxies and test servers.
	AllowLocalNetworks bool
}

// secretQueryParams are query parameters carrying credentials.
// Gemini passes its API key as ?key=.
var secretQueryParams = []string{"key", "api_key", "apikey"}

// ValidateOutboundURL checks that rawURL is a safe target for a provider request.
// It rejects unsafe schemes and, unless allowed, local network targets.
// No DNS lookups are done.
func ValidateOutboundURL(rawURL string, opts OutboundURLOptions) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if err := checkScheme(parsed.Scheme, opts); err != nil {
		return err
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("URL host is required")
	}

	return checkHost(host, opts)
}

func checkScheme(scheme string, opts OutboundURLOptions) error {
	switch scheme {
	case "https":
		return nil
	case "http":
		if opts.AllowHTTP {
			return nil
		}
		return fmt.Errorf("http scheme is not allowed")
	}
	return fmt.Errorf("unsupported URL scheme %q", scheme)
}

func checkHost(host string, opts OutboundURLOptions) error {
	if !opts.AllowLocalNetworks && isLocalHostname(host) {
		return fmt.Errorf("local hostname %q is not allowed", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// not an IP literal
		return nil
	}
	if addr.Zone() != "" && !opts.AllowLocalNetworks {
		return fmt.Errorf("zoned IP address %q is not allowed", host)
	}
	addr = addr.Unmap()

	if addr.IsUnspecified() || addr.IsMulticast() {
		return fmt.Errorf("disallowed IP address %q", host)
	}
	if !opts.AllowLocalNetworks && isLocalAddr(addr) {
		return fmt.Errorf("local network IP %q is not allowed", host)
	}
	return nil
}

func isLocalHostname(host string) bool {
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local")
}

func isLocalAddr(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast()
}

// RedactURL masks credential query parameters so the URL can be logged or
// put into an error message. Unparseable input is returned as "<invalid url>".
func RedactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := parsed.Query()
	changed := false
	for _, p := range secretQueryParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}
