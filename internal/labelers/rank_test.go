package labelers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"labelerdir/internal/labelers"
	"labelerdir/internal/richtext"
)

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]string{{"did:a", "did:b"}, {"did:c"}}, labelers.Chunk([]string{"did:a", "did:b", "did:c"}, 2))
	assert.Empty(t, labelers.Chunk([]string{}, 10))
	assert.Equal(t, [][]int{{1, 2, 3}}, labelers.Chunk([]int{1, 2, 3}, 10))
}

func TestChunk_DoesNotAliasAcrossChunks(t *testing.T) {
	items := []int{1, 2, 3, 4}
	chunks := labelers.Chunk(items, 2)

	chunks[0] = append(chunks[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
	assert.Equal(t, []int{3, 4}, chunks[1])
}

func enriched(did string, count *int64) labelers.EnrichedProfile {
	return labelers.Enrich(profile(did, count), []richtext.Segment{})
}

func TestRank_AbsentCounterSortsAsZero(t *testing.T) {
	in := []labelers.EnrichedProfile{
		enriched("did:none", nil),
		enriched("did:zero", likes(0)),
		enriched("did:one", likes(1)),
	}

	ranked := labelers.Rank(in)

	assert.Equal(t, "did:one", ranked[0].DID)
	assert.Equal(t, "did:none", ranked[1].DID)
	assert.Equal(t, "did:zero", ranked[2].DID)
	assert.Equal(t, "did:none", in[0].DID, "input must not be reordered")
}

func TestRank_EqualCountersKeepOrder(t *testing.T) {
	in := []labelers.EnrichedProfile{
		enriched("did:x", likes(5)),
		enriched("did:y", likes(5)),
	}

	ranked := labelers.Rank(in)

	assert.Equal(t, "did:x", ranked[0].DID)
	assert.Equal(t, "did:y", ranked[1].DID)
}

func TestFilter(t *testing.T) {
	art := labelers.EnrichedProfile{
		DID:         "did:plc:art",
		Handle:      "art.labeler.test",
		DisplayName: "Art Tags",
		Description: []richtext.Segment{
			{Type: richtext.KindText, Text: "Tags AI imagery. Site: "},
			{Type: richtext.KindLink, Text: "art.example.com", URI: "https://art.example.com"},
		},
		LabelValues: []labelers.LabelValue{{Identifier: "ai-generated"}},
	}
	mod := labelers.EnrichedProfile{
		DID:    "did:plc:mod",
		Handle: "mod.test",
		Description: []richtext.Segment{
			{Type: richtext.KindText, Text: "Run by "},
			{Type: richtext.KindMention, Text: "@owner.test", DID: "did:plc:owner"},
		},
	}
	all := []labelers.EnrichedProfile{art, mod}

	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"did:plc:art", "did:plc:mod"}},
		{"ART TAGS", []string{"did:plc:art"}},
		{"mod.test", []string{"did:plc:mod"}},
		{"https://art", []string{"did:plc:art"}},
		{"did:plc:owner", []string{"did:plc:mod"}},
		{"@owner", nil},
		{"generated", []string{"did:plc:art"}},
		{"nothing matches", nil},
		{"test", []string{"did:plc:art", "did:plc:mod"}},
		{" test", nil},
	}
	for _, tt := range tests {
		var got []string
		for _, p := range labelers.Filter(all, tt.term) {
			got = append(got, p.DID)
		}
		assert.Equal(t, tt.want, got, "term %q", tt.term)
	}
}

func TestEnrichedProfile_Helpers(t *testing.T) {
	p := labelers.EnrichedProfile{DID: "did:plc:abc", Handle: "abc.test"}
	assert.Equal(t, "@abc.test", p.Name())
	assert.Equal(t, "https://bsky.app/profile/did:plc:abc", p.ProfileURL())

	p.DisplayName = "ABC"
	assert.Equal(t, "ABC", p.Name())
}
