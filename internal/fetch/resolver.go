package fetch

import (
	"fmt"
	"net"
	"strings"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/tor"
	"golang.org/x/net/publicsuffix"
)

// DomainResolver groups hosts by registrable domain, so that
// a.example.com and b.example.com share one per-host budget.
// Hosts without a public suffix (IP addresses, localhost) resolve to
// themselves.
type DomainResolver struct{}

// Resolve implements crawler.HostResolver.
func (DomainResolver) Resolve(id string) (string, error) {
	host, err := crawler.URLHostResolver{}.Resolve(id)
	if err != nil {
		return "", err
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return domain, nil
}

// OnionResolver rejects .onion hosts that are not valid v3 addresses and
// defers everything else to Next (crawler.URLHostResolver when nil).
type OnionResolver struct {
	Next crawler.HostResolver
}

// Resolve implements crawler.HostResolver.
func (r OnionResolver) Resolve(id string) (string, error) {
	next := r.Next
	if next == nil {
		next = crawler.URLHostResolver{}
	}
	host, err := crawler.URLHostResolver{}.Resolve(id)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(host, ".onion") {
		// Subdomains of an onion service belong to the service.
		labels := strings.Split(host, ".")
		service := strings.Join(labels[max(len(labels)-2, 0):], ".")
		if !tor.IsValidV3Address(service) {
			return "", fmt.Errorf("%s: %w", host, ErrInvalidOnionAddress)
		}
		return service, nil
	}
	return next.Resolve(id)
}
