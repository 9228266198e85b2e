// Package attribution derives UTM source/medium/term from a referrer URL
// when the landing page carried no explicit campaign parameters.
package attribution

import (
	"net/url"
	"strings"
)

// Mediums assigned by Resolve.
const (
	MediumOrganic  = "organic"
	MediumSocial   = "social"
	MediumReferral = "referral"
)

// UTM is a campaign attribution tuple.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

type searchEngine struct {
	hostPart string
	source   string
	queryKey string
}

// Google hides the query behind TLS, so no key is read for it.
var searchEngines = []searchEngine{
	{hostPart: "google", source: "google"},
	{hostPart: "bing", source: "bing", queryKey: "q"},
	{hostPart: "yahoo", source: "yahoo", queryKey: "p"},
	{hostPart: "yandex", source: "yandex", queryKey: "text"},
	{hostPart: "baidu", source: "baidu", queryKey: "wd"},
}

var socialHosts = []string{"facebook.com", "instagram.com", "t.co", "linkedin.com"}

// Resolve returns in unchanged when it already has a Source or when the
// referrer is empty or unparseable. Otherwise Source and Medium are filled
// from the referrer host, and Term from the engine's query key if unset.
func Resolve(in UTM, referrer string) UTM {
	if in.Source != "" || referrer == "" {
		return in
	}

	ref, err := url.Parse(referrer)
	if err != nil || ref.Hostname() == "" {
		return in
	}
	host := strings.ToLower(ref.Hostname())

	out := in
	for _, se := range searchEngines {
		if !strings.Contains(host, se.hostPart) {
			continue
		}
		out.Source = se.source
		out.Medium = MediumOrganic
		if out.Term == "" && se.queryKey != "" {
			out.Term = ref.Query().Get(se.queryKey)
		}
		return out
	}

	out.Source = host
	out.Medium = MediumReferral
	for _, s := range socialHosts {
		if strings.Contains(host, s) {
			out.Medium = MediumSocial
			break
		}
	}
	return out
}
