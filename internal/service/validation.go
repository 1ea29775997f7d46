package service

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

const (
	trackingPrefix     = "utm_"
	defaultPhoneRegion = "US"
)

// phoneColumnHints mark custom columns whose values are normalised as phone numbers.
var phoneColumnHints = []string{"phone", "mobile", "cell"}

// DNSResolver abstracts DNS lookups to simplify testing.
type DNSResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// ContactNormalizer cleans imported contact values before they are stored.
// Cleaning never rejects a row: values that fail validation are blanked or kept as-is.
type ContactNormalizer struct {
	DefaultRegion string
	dnsResolver   DNSResolver
}

// NormalizerOption configures optional dependencies.
type NormalizerOption func(*ContactNormalizer)

// WithMXCheck makes email cleaning require an MX record for the domain.
func WithMXCheck(resolver DNSResolver) NormalizerOption {
	return func(n *ContactNormalizer) {
		n.dnsResolver = resolver
	}
}

// WithSystemMXCheck enables MX checks against the host resolver.
func WithSystemMXCheck() NormalizerOption {
	return WithMXCheck(systemDNSResolver{})
}

// NewContactNormalizer builds a normalizer. Phone numbers without a country code are
// parsed in defaultRegion.
func NewContactNormalizer(defaultRegion string, opts ...NormalizerOption) *ContactNormalizer {
	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = defaultPhoneRegion
	}
	n := &ContactNormalizer{DefaultRegion: region}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeAll cleans contacts in place.
func (n *ContactNormalizer) NormalizeAll(ctx context.Context, contacts []entity.Contact) {
	domainCache := make(map[string]bool)
	for i := range contacts {
		n.normalize(ctx, &contacts[i], domainCache)
	}
}

func (n *ContactNormalizer) normalize(ctx context.Context, c *entity.Contact, domainCache map[string]bool) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Company = strings.TrimSpace(c.Company)
	c.Title = strings.TrimSpace(c.Title)
	c.Email = n.cleanEmail(ctx, c.Email, domainCache)
	c.ProfileURL = cleanProfileURL(c.ProfileURL)

	for key, value := range c.CustomFields {
		value = strings.TrimSpace(value)
		if isPhoneColumn(key) {
			if phone := normalizePhone(value, n.DefaultRegion); phone != "" {
				value = phone
			}
		}
		c.CustomFields[key] = value
	}
}

func (n *ContactNormalizer) cleanEmail(ctx context.Context, raw string, domainCache map[string]bool) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !emailPattern.MatchString(email) {
		return ""
	}
	domain := email[strings.LastIndex(email, "@")+1:]
	if !isDomainValid(domain) {
		return ""
	}
	asciiDomain, err := idnaProfile.ToASCII(domain)
	if err != nil || asciiDomain == "" {
		return ""
	}
	if n.dnsResolver == nil {
		return email
	}
	ok, cached := domainCache[asciiDomain]
	if !cached {
		ok = n.hasMXRecord(ctx, asciiDomain)
		domainCache[asciiDomain] = ok
	}
	if !ok {
		return ""
	}
	return email
}

func (n *ContactNormalizer) hasMXRecord(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	records, err := n.dnsResolver.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}

func cleanProfileURL(raw string) string {
	u, err := sanitizeURL(raw)
	if err != nil {
		return ""
	}
	stripTracking(u)
	return u.String()
}

func isPhoneColumn(key string) bool {
	key = strings.ToLower(key)
	for _, hint := range phoneColumnHints {
		if strings.Contains(key, hint) {
			return true
		}
	}
	return false
}

func sanitizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.New("invalid url")
	}
	u.Scheme = "https"
	return u, nil
}

func stripTracking(u *url.URL) {
	if u == nil {
		return
	}
	query := u.Query()
	changed := false
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), trackingPrefix) {
			query.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}
}

func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = defaultPhoneRegion
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

type systemDNSResolver struct{}

func (systemDNSResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}
