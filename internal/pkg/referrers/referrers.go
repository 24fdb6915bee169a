// Package referrers classifies beacon referrers for session attribution.
package referrers

import (
	"net/url"
	"strings"
)

// Kind of navigation a referrer implies.
type Kind int

const (
	KindDirect   Kind = iota // empty or unparseable referrer
	KindInternal             // referrer inside the website's own domains
	KindExternal
)

// Classification is the attribution of one beacon's referrer.
type Classification struct {
	Kind     Kind
	Hostname string
	Source   string // friendly name, empty for direct/internal
}

// Classify resolves the referrer against the website's allowed domains.
// An internal referrer means in-site navigation (SPA route change or a
// regular next-page load), not a new acquisition.
func Classify(referrer string, ownDomains []string) Classification {
	if strings.TrimSpace(referrer) == "" {
		return Classification{Kind: KindDirect}
	}

	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		return Classification{Kind: KindDirect}
	}
	host := strings.ToLower(parsed.Hostname())

	for _, own := range ownDomains {
		if host == strings.ToLower(own) {
			return Classification{Kind: KindInternal, Hostname: host}
		}
	}
	return Classification{Kind: KindExternal, Hostname: host, Source: FriendlyName(host)}
}

// Well-known referrer hostnames mapped to display names.
var knownReferrers = map[string]string{
	// Search engines
	"google.com":     "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"baidu.com":      "Baidu",
	"yandex.ru":      "Yandex",
	"ecosia.org":     "Ecosia",
	"kagi.com":       "Kagi",

	// Social
	"x.com":           "X/Twitter",
	"twitter.com":     "X/Twitter",
	"t.co":            "X/Twitter",
	"facebook.com":    "Facebook",
	"l.facebook.com":  "Facebook",
	"instagram.com":   "Instagram",
	"linkedin.com":    "LinkedIn",
	"lnkd.in":         "LinkedIn",
	"tiktok.com":      "TikTok",
	"pinterest.com":   "Pinterest",
	"reddit.com":      "Reddit",
	"old.reddit.com":  "Reddit",
	"threads.net":     "Threads",
	"bsky.app":        "Bluesky",
	"mastodon.social": "Mastodon",
	"youtube.com":     "YouTube",
	"youtu.be":        "YouTube",
	"t.me":            "Telegram",

	// Tech communities
	"news.ycombinator.com": "Hacker News",
	"hn.algolia.com":       "Hacker News",
	"lobste.rs":            "Lobsters",
	"producthunt.com":      "Product Hunt",
	"dev.to":               "DEV Community",
	"medium.com":           "Medium",
	"substack.com":         "Substack",
	"github.com":           "GitHub",
	"gitlab.com":           "GitLab",
	"stackoverflow.com":    "Stack Overflow",

	// Email providers (newsletter clicks)
	"mail.google.com":  "Gmail",
	"outlook.live.com": "Outlook",
	"mail.yahoo.com":   "Yahoo Mail",
	"mail.proton.me":   "Proton Mail",

	// Link shorteners
	"bit.ly":      "Bitly",
	"tinyurl.com": "TinyURL",
}

// FriendlyName maps a referrer hostname to a display name, falling back to
// the bare hostname with "www." stripped and the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.ToLower(hostname)

	if name, ok := knownReferrers[hostname]; ok {
		return name
	}

	hostname = strings.TrimPrefix(hostname, "www.")
	if name, ok := knownReferrers[hostname]; ok {
		return name
	}

	for domain, name := range knownReferrers {
		if strings.HasSuffix(hostname, "."+domain) {
			return name
		}
	}

	if hostname == "" {
		return hostname
	}
	return strings.ToUpper(hostname[:1]) + hostname[1:]
}
