package richtext

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"golang.org/x/net/publicsuffix"
)

// Whitespace including the Unicode space separators; RE2's \s is ASCII only.
const (
	space    = `\s\v\x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`
	isSpace  = `[` + space + `]`
	notSpace = `[^` + space + `]`
)

var (
	// A mention is "@" plus a handle, preceded by start of text, whitespace or "(".
	mentionRe = regexp.MustCompile(`(^|` + isSpace + `|\()(@)([a-zA-Z0-9.-]+)(\b)`)

	// A link is either an http(s) URL or a bare domain with an optional path.
	linkRe = regexp.MustCompile(`(?im)(^|` + isSpace + `|\()((https?://` + notSpace + `+)|((?P<domain>[a-z][a-z0-9]*(\.[a-z0-9]+)+)` + notSpace + `*))`)
)

// DetectFacets finds link and mention spans in text and returns them as
// app.bsky.richtext.facet values ordered by start offset. Offsets are UTF-8
// byte offsets into text.
//
// Mention features carry the raw handle in their Did field until
// ResolveMentions replaces it with the resolved DID.
func DetectFacets(text string) []*bsky.RichtextFacet {
	var facets []*bsky.RichtextFacet

	for _, m := range mentionRe.FindAllStringSubmatchIndex(text, -1) {
		handle := text[m[6]:m[7]]
		if _, err := syntax.ParseHandle(handle); err != nil {
			continue
		}
		facets = append(facets, mentionFacet(m[4], m[7], handle))
	}

	domainIdx := linkRe.SubexpIndex("domain")
	for _, m := range linkRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[4], m[5]
		uri := text[start:end]

		if !strings.HasPrefix(strings.ToLower(uri), "http") {
			if m[2*domainIdx] < 0 || !isValidDomain(text[m[2*domainIdx]:m[2*domainIdx+1]]) {
				continue
			}
			uri = "https://" + uri
		}

		if strings.ContainsAny(uri[len(uri)-1:], ".,;:!?") {
			uri = uri[:len(uri)-1]
			end--
		}
		if strings.HasSuffix(uri, ")") && !strings.Contains(uri, "(") {
			uri = uri[:len(uri)-1]
			end--
		}

		facets = append(facets, linkFacet(start, end, uri))
	}

	sort.SliceStable(facets, func(i, j int) bool {
		return facets[i].Index.ByteStart < facets[j].Index.ByteStart
	})
	return facets
}

// isValidDomain reports whether domain ends in an ICANN-managed public suffix
// and has at least one label in front of it.
func isValidDomain(domain string) bool {
	domain = strings.ToLower(domain)
	suffix, icann := publicsuffix.PublicSuffix(domain)
	return icann && suffix != domain
}

func mentionFacet(start, end int, did string) *bsky.RichtextFacet {
	return &bsky.RichtextFacet{
		Index: &bsky.RichtextFacet_ByteSlice{ByteStart: int64(start), ByteEnd: int64(end)},
		Features: []*bsky.RichtextFacet_Features_Elem{{
			RichtextFacet_Mention: &bsky.RichtextFacet_Mention{
				LexiconTypeID: "app.bsky.richtext.facet#mention",
				Did:           did,
			},
		}},
	}
}

func linkFacet(start, end int, uri string) *bsky.RichtextFacet {
	return &bsky.RichtextFacet{
		Index: &bsky.RichtextFacet_ByteSlice{ByteStart: int64(start), ByteEnd: int64(end)},
		Features: []*bsky.RichtextFacet_Features_Elem{{
			RichtextFacet_Link: &bsky.RichtextFacet_Link{
				LexiconTypeID: "app.bsky.richtext.facet#link",
				Uri:           uri,
			},
		}},
	}
}

func mentionOf(f *bsky.RichtextFacet) *bsky.RichtextFacet_Mention {
	for _, feat := range f.Features {
		if feat != nil && feat.RichtextFacet_Mention != nil {
			return feat.RichtextFacet_Mention
		}
	}
	return nil
}

func linkOf(f *bsky.RichtextFacet) *bsky.RichtextFacet_Link {
	for _, feat := range f.Features {
		if feat != nil && feat.RichtextFacet_Link != nil {
			return feat.RichtextFacet_Link
		}
	}
	return nil
}
