package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainNormalization(t *testing.T) {
	normalizer := NewDomain(DomainConfig{
		DevDomains:        []string{"example.test.com", "mydevbox.com"},
		DevTLDs:           []string{"dev", "test", "local"},
		DevSubdomainWords: []string{"staging", "dev", "local"},
	})

	cases := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain https URL", "https://example.com", "example.com", true},
		{"bare host", "example.com", "example.com", true},
		{"subdomain collapses to registrable domain", "https://www.shop.example.com/checkout", "example.com", true},
		{"multi-label public suffix", "https://www.example.co.uk", "example.co.uk", true},
		{"uppercase input is lowercased", "HTTPS://EXAMPLE.COM", "example.com", true},
		{"standard port 443 allowed", "https://example.com:443", "example.com", true},
		{"standard port 80 allowed", "http://example.com:80", "example.com", true},
		{"punycode decodes before evaluation", "http://xn--caf-dma.example.com", "example.com", true},
		{"nonstandard port suppressed", "http://example.com:8080", "", false},
		{"staging subdomain word suppressed", "https://staging.example.com:8443", "", false},
		{"dev TLD suppressed", "http://example.dev", "", false},
		{"dev subdomain word within label list", "https://dev-3.api.example.com", "", false},
		{"word match is not substring match", "https://redevelopment.example.com", "example.com", true},
		{"configured dev host suppressed", "https://mydevbox.com", "", false},
		{"unlisted suffix yields no domain", "http://localhost", "", false},
		{"empty input", "", "", false},
		{"garbage input", "not a url at all", "", false},
		{"ip address has no registrable domain", "http://127.0.0.1:8080", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := normalizer.Normalize(tc.input)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDomainNormalizationDevTLDUsesSuffixMatch(t *testing.T) {
	// "dev" as a TLD is suppressed, but a domain merely containing "dev"
	// in its name is production traffic.
	normalizer := NewDomain(DomainConfig{DevTLDs: []string{"dev"}})

	got, ok := normalizer.Normalize("https://devtools.com")
	assert.True(t, ok)
	assert.Equal(t, "devtools.com", got)

	_, ok = normalizer.Normalize("https://tools.dev")
	assert.False(t, ok)
}
