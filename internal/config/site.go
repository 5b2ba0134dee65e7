package config

import "maps"

// SiteConfig holds per-site crawl settings.
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth for seeds on this site.
	// If zero, the global depth is used.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL path globs that are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path globs; if set, only matching URLs are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .hostcrawl configuration file.
type File struct {
	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps host names (e.g., "docs.example.com") to overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the defaults merged with the overrides for host.
// The result shares no maps with the file.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}

	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

// RequestHeaders returns the headers to send, with Cookie folded in.
func (sc SiteConfig) RequestHeaders() map[string]string {
	if sc.Cookie == "" {
		return sc.Headers
	}
	headers := maps.Clone(sc.Headers)
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	headers["Cookie"] = sc.Cookie
	return headers
}
