package richtext

import (
	"context"
	"errors"
	"fmt"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Kind tags a Segment.
type Kind string

const (
	KindText    Kind = "text"
	KindLink    Kind = "link"
	KindMention Kind = "mention"
)

// Segment is one contiguous span of a description. Concatenating the Text of
// every segment in order yields the original string.
type Segment struct {
	Type Kind   `json:"type"`
	Text string `json:"text"`
	URI  string `json:"uri,omitempty"`
	DID  string `json:"did,omitempty"`
}

// Resolver maps a handle to its DID.
type Resolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// ResolutionError records a mention that could not be resolved.
type ResolutionError struct {
	Handle string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve @%s: %v", e.Handle, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ResolveMentions returns a copy of facets in which every mention's handle is
// replaced by its DID. Mentions that fail to resolve are left out of the
// result so their span falls back to plain text; the failures are returned
// joined. Link facets pass through unchanged.
func ResolveMentions(ctx context.Context, facets []*bsky.RichtextFacet, r Resolver) ([]*bsky.RichtextFacet, error) {
	out := make([]*bsky.RichtextFacet, 0, len(facets))
	var errs []error

	for _, f := range facets {
		mention := mentionOf(f)
		if mention == nil {
			out = append(out, f)
			continue
		}
		if r == nil {
			errs = append(errs, &ResolutionError{Handle: mention.Did, Err: errors.New("no resolver configured")})
			continue
		}

		handle, err := syntax.ParseHandle(mention.Did)
		if err != nil {
			errs = append(errs, &ResolutionError{Handle: mention.Did, Err: err})
			continue
		}
		did, err := r.ResolveHandle(ctx, handle.Normalize().String())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errs = append(errs, &ResolutionError{Handle: mention.Did, Err: err})
			continue
		}
		if _, err := syntax.ParseDID(did); err != nil {
			errs = append(errs, &ResolutionError{Handle: mention.Did, Err: fmt.Errorf("invalid did %q: %w", did, err)})
			continue
		}

		out = append(out, mentionFacet(int(f.Index.ByteStart), int(f.Index.ByteEnd), did))
	}

	return out, errors.Join(errs...)
}

// Segments splits text into segments according to facets. Facets that are
// out of range or overlap an earlier facet are ignored. An empty text yields
// an empty, non-nil slice.
func Segments(text string, facets []*bsky.RichtextFacet) []Segment {
	segments := []Segment{}
	if text == "" {
		return segments
	}

	cursor := 0
	for _, f := range facets {
		if f == nil || f.Index == nil {
			continue
		}
		start, end := int(f.Index.ByteStart), int(f.Index.ByteEnd)
		if start < cursor || start >= end || end > len(text) {
			continue
		}
		if start > cursor {
			segments = appendText(segments, text[cursor:start])
		}

		span := text[start:end]
		switch {
		case linkOf(f) != nil:
			segments = append(segments, Segment{Type: KindLink, Text: span, URI: linkOf(f).Uri})
		case mentionOf(f) != nil && mentionOf(f).Did != "":
			segments = append(segments, Segment{Type: KindMention, Text: span, DID: mentionOf(f).Did})
		default:
			segments = appendText(segments, span)
		}
		cursor = end
	}

	if cursor < len(text) {
		segments = appendText(segments, text[cursor:])
	}
	return segments
}

// appendText adds a text span, merging it into a trailing text segment.
func appendText(segments []Segment, text string) []Segment {
	if n := len(segments); n > 0 && segments[n-1].Type == KindText {
		segments[n-1].Text += text
		return segments
	}
	return append(segments, Segment{Type: KindText, Text: text})
}

// Detector turns descriptions into resolved segments.
type Detector struct {
	resolver Resolver
}

// NewDetector creates a detector that resolves mentions through r.
func NewDetector(r Resolver) *Detector {
	return &Detector{resolver: r}
}

// Segment detects facets in text, resolves mentions and splits the text.
// The returned segments always cover the whole text. A non-nil error reports
// mentions that degraded to plain text, or context cancellation, in which
// case the segments are nil.
func (d *Detector) Segment(ctx context.Context, text string) ([]Segment, error) {
	if text == "" {
		return []Segment{}, nil
	}

	facets, err := ResolveMentions(ctx, DetectFacets(text), d.resolver)
	if facets == nil && err != nil {
		return nil, err
	}
	return Segments(text, facets), err
}
