package labelers

import (
	"fmt"
	"time"

	"labelerdir/internal/richtext"
)

// LabelLocale is the localized name and description of one label value.
type LabelLocale struct {
	Lang        string `json:"lang"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LabelValue is a label definition published in a labeler's policy.
type LabelValue struct {
	Identifier string        `json:"identifier"`
	Severity   string        `json:"severity,omitempty"`
	Blurs      string        `json:"blurs,omitempty"`
	Locales    []LabelLocale `json:"locales"`
}

// RawProfile is the detailed labeler view as returned by the profile service.
type RawProfile struct {
	URI         string       `json:"uri"`
	CID         string       `json:"cid"`
	DID         string       `json:"did"`
	Handle      string       `json:"handle"`
	DisplayName string       `json:"displayName,omitempty"`
	Avatar      string       `json:"avatar,omitempty"`
	Description string       `json:"description"`
	LikeCount   *int64       `json:"likeCount,omitempty"`
	IndexedAt   string       `json:"indexedAt,omitempty"`
	LabelValues []LabelValue `json:"labelValues"`
}

// Likes returns the like count, treating an absent counter as zero.
func (p RawProfile) Likes() int64 {
	return likes(p.LikeCount)
}

func likes(count *int64) int64 {
	if count == nil {
		return 0
	}
	return *count
}

// EnrichedProfile is a RawProfile whose description has been split into
// segments. It is built once per run and not modified afterwards.
type EnrichedProfile struct {
	URI         string             `json:"uri"`
	CID         string             `json:"cid"`
	DID         string             `json:"did"`
	Handle      string             `json:"handle"`
	DisplayName string             `json:"displayName,omitempty"`
	Avatar      string             `json:"avatar,omitempty"`
	Description []richtext.Segment `json:"description"`
	LikeCount   *int64             `json:"likeCount,omitempty"`
	IndexedAt   string             `json:"indexedAt,omitempty"`
	LabelValues []LabelValue       `json:"labelValues"`
}

// Enrich pairs a raw profile with its description segments.
func Enrich(p RawProfile, description []richtext.Segment) EnrichedProfile {
	return EnrichedProfile{
		URI:         p.URI,
		CID:         p.CID,
		DID:         p.DID,
		Handle:      p.Handle,
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		Description: description,
		LikeCount:   p.LikeCount,
		IndexedAt:   p.IndexedAt,
		LabelValues: p.LabelValues,
	}
}

// Likes returns the like count, treating an absent counter as zero.
func (p EnrichedProfile) Likes() int64 {
	return likes(p.LikeCount)
}

// Name is the display name, or "@handle" when there is none.
func (p EnrichedProfile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "@" + p.Handle
}

// ProfileURL links to the labeler's profile in the Bluesky web app.
func (p EnrichedProfile) ProfileURL() string {
	return fmt.Sprintf("https://bsky.app/profile/%s", p.DID)
}

// ResultSet is the ranked output of one pipeline run.
type ResultSet struct {
	Labelers    []EnrichedProfile `json:"labelers"`
	Failed      []string          `json:"failed,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
