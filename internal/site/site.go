// Package site matches stored site identifiers against URLs by registrable
// domain and flags lookalike hosts.
package site

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Reasons attached to a Verdict.
const (
	ReasonParse       = "URL_PARSE_ERROR"
	ReasonHTTP        = "HTTP"
	ReasonETLDInvalid = "ETLD_INVALID"
	ReasonMismatch    = "ETLD_MISMATCH"
	ReasonPunycode    = "PUNYCODE"
	ReasonMixedScript = "MIXED_SCRIPT"
	ReasonConfusable  = "CONFUSABLE"
)

// Host extracts the lowercase hostname from a URL or a bare host[:port].
func Host(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			raw = u.Hostname()
		}
	} else if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		raw = raw[:i]
	}
	return sanitizeHost(raw)
}

// ETLDPlusOne resolves the registrable domain of raw, e.g. "www.bank.co.uk" -> "bank.co.uk".
// Internationalised names are resolved through their ASCII form.
func ETLDPlusOne(raw string) (string, error) {
	host := Host(raw)
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		host = ascii
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", err
	}
	return strings.ToLower(etld1), nil
}

// Verdict is the outcome of checking a URL against a stored site.
type Verdict struct {
	OK      bool
	Reasons []string
	ETLD1   string
}

// Check inspects rawURL against the stored site identifier saved.
// OK is true only when no reason was recorded.
func Check(rawURL, saved string) Verdict {
	var reasons []string

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return Verdict{Reasons: []string{ReasonParse}}
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		reasons = append(reasons, ReasonHTTP)
	}

	hostLower := strings.ToLower(parsed.Hostname())
	unicodeHost := hostLower
	if converted, err := idna.Lookup.ToUnicode(hostLower); err == nil && converted != "" {
		unicodeHost = converted
	}

	etld1, err := ETLDPlusOne(hostLower)
	if err != nil {
		reasons = append(reasons, ReasonETLDInvalid)
	}

	var savedETLD1 string
	if saved != "" {
		savedETLD1, _ = ETLDPlusOne(saved)
	}
	if savedETLD1 != "" && etld1 != "" && savedETLD1 != etld1 {
		reasons = append(reasons, ReasonMismatch)
	}
	if strings.Contains(hostLower, "xn--") {
		reasons = append(reasons, ReasonPunycode)
	}
	if hasMixedScript(unicodeHost) {
		reasons = append(reasons, ReasonMixedScript)
	}
	if savedETLD1 != "" && etld1 != "" && looksConfusable(savedETLD1, unicodeETLD1(etld1)) {
		reasons = append(reasons, ReasonConfusable)
	}

	return Verdict{OK: len(reasons) == 0, Reasons: reasons, ETLD1: etld1}
}

// Match is a stored site related to a URL.
type Match struct {
	Site    string
	Verdict Verdict
}

// Find returns the stored sites whose registrable domain equals the URL's,
// followed by sites the URL only looks like. Lookalikes never have OK set.
func Find(rawURL string, sites []string) []Match {
	var exact, lookalike []Match
	for _, s := range sites {
		v := Check(rawURL, s)
		switch {
		case contains(v.Reasons, ReasonConfusable):
			lookalike = append(lookalike, Match{Site: s, Verdict: v})
		case v.ETLD1 != "" && !contains(v.Reasons, ReasonMismatch) && siteResolves(s):
			exact = append(exact, Match{Site: s, Verdict: v})
		}
	}
	sort.Slice(exact, func(i, j int) bool { return exact[i].Site < exact[j].Site })
	sort.Slice(lookalike, func(i, j int) bool { return lookalike[i].Site < lookalike[j].Site })
	return append(exact, lookalike...)
}

func siteResolves(s string) bool {
	_, err := ETLDPlusOne(s)
	return err == nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func unicodeETLD1(etld1 string) string {
	if u, err := idna.Lookup.ToUnicode(etld1); err == nil && u != "" {
		return u
	}
	return etld1
}

// sanitizeHost trims whitespace and a trailing dot, drops any port and lowercases.
func sanitizeHost(host string) string {
	clean := strings.TrimSpace(host)
	clean = strings.TrimSuffix(clean, ".")
	if colon := strings.Index(clean, ":"); colon >= 0 {
		clean = clean[:colon]
	}
	return strings.ToLower(clean)
}

// hasMixedScript reports whether host mixes two or more Unicode scripts.
func hasMixedScript(host string) bool {
	scripts := make(map[string]struct{})
	for _, r := range host {
		script := detectScript(r)
		if script == "" {
			continue
		}
		scripts[script] = struct{}{}
		if len(scripts) >= 2 {
			return true
		}
	}
	return false
}

func detectScript(r rune) string {
	switch {
	case unicode.In(r, unicode.Latin):
		return "latin"
	case unicode.In(r, unicode.Cyrillic):
		return "cyrillic"
	case unicode.In(r, unicode.Greek):
		return "greek"
	case unicode.In(r, unicode.Hiragana):
		return "hiragana"
	case unicode.In(r, unicode.Katakana):
		return "katakana"
	case unicode.In(r, unicode.Han):
		return "han"
	default:
		return ""
	}
}

// looksConfusable is true when target and candidate differ but normalise
// to the same skeleton and one of them contains homoglyphs.
func looksConfusable(target, candidate string) bool {
	if target == "" || candidate == "" || target == candidate {
		return false
	}
	if skeleton(target) != skeleton(candidate) {
		return false
	}
	return containsHomoglyphs(target) || containsHomoglyphs(candidate)
}
