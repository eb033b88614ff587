package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/weppos/publicsuffix-go/publicsuffix"
	"golang.org/x/net/idna"
)

// DomainConfig lists the hosts we treat as private because they are only
// used for dev/testing/staging purposes.
type DomainConfig struct {
	// DevDomains match the registrable domain or the full host exactly.
	DevDomains []string
	// DevTLDs match the public suffix exactly.
	DevTLDs []string
	// DevSubdomainWords match any word within the subdomain labels.
	DevSubdomainWords []string
}

// DomainNormalizer canonicalizes a URL or host into a registrable domain,
// collapsing anything that is not really production traffic (localhost,
// *.test, staging-* hosts, nonstandard ports) to "no domain" so licensing
// logic treats it uniformly as domain-unrestricted activity.
type DomainNormalizer struct {
	devDomains        map[string]struct{}
	devTLDs           map[string]struct{}
	devSubdomainWords map[string]struct{}
}

// NewDomain builds a DomainNormalizer from the configured dev lists.
func NewDomain(cfg DomainConfig) *DomainNormalizer {
	return &DomainNormalizer{
		devDomains:        toSet(cfg.DevDomains),
		devTLDs:           toSet(cfg.DevTLDs),
		devSubdomainWords: toSet(cfg.DevSubdomainWords),
	}
}

// Normalize extracts the lowercase registrable domain from rawURL.
// The second return is false when no domain could be derived or the input
// looked like dev/staging traffic; that is an absent value, not an error.
func (n *DomainNormalizer) Normalize(rawURL string) (string, bool) {
	rawURL = strings.ToLower(strings.TrimSpace(rawURL))
	if rawURL == "" {
		return "", false
	}

	host, port, ok := splitHostPort(rawURL)
	if !ok || host == "" {
		return "", false
	}

	// Punycoded hosts are decoded to their Unicode form before any rule is
	// evaluated, so xn--caf-dma.example.com and café.example.com normalize
	// identically.
	if strings.Contains(host, "xn--") {
		if unicodeHost, err := idna.Lookup.ToUnicode(host); err == nil {
			host = unicodeHost
		}
	}

	// ICANN rules only: private suffix-list entries (e.g. hosting
	// providers) are not honored, and unlisted suffixes yield no domain.
	parsed, err := publicsuffix.ParseFromListWithOptions(publicsuffix.DefaultList, host, &publicsuffix.FindOptions{IgnorePrivate: true})
	if err != nil || parsed.SLD == "" {
		return "", false
	}
	registrable := parsed.SLD + "." + parsed.TLD

	if _, dev := n.devDomains[registrable]; dev {
		return "", false
	}
	if _, dev := n.devDomains[host]; dev {
		return "", false
	}
	if _, dev := n.devTLDs[parsed.TLD]; dev {
		return "", false
	}
	if port != "" && port != "80" && port != "443" {
		return "", false
	}
	for _, word := range splitWords(parsed.TRD) {
		if _, dev := n.devSubdomainWords[word]; dev {
			return "", false
		}
	}

	return registrable, true
}

// splitHostPort extracts host and optional port from a URL or bare host.
func splitHostPort(raw string) (host, port string, ok bool) {
	target := raw
	if !strings.Contains(target, "://") {
		// url.Parse would read "example.com:8080" as scheme "example.com",
		// so force the input into authority position.
		target = "//" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", "", false
	}
	return u.Hostname(), u.Port(), true
}

// splitWords breaks subdomain labels on word boundaries, so "staging-3.api"
// yields ["staging", "3", "api"]. Matching is word-level, never substring:
// "restaging" does not contain the word "staging".
func splitWords(subdomain string) []string {
	return strings.FieldsFunc(subdomain, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}
