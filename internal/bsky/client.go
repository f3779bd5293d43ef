package bsky

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"

	"labelerdir/internal/labelers"
)

// DefaultHost is the public, unauthenticated AppView.
const DefaultHost = "https://public.api.bsky.app"

// Client talks to an AppView for labeler views and handle resolution.
type Client struct {
	xrpcClient *xrpc.Client
}

func NewClient(host string, httpClient *http.Client, userAgent string) *Client {
	if host == "" {
		host = DefaultHost
	}
	client := &xrpc.Client{
		Host:   host,
		Client: httpClient,
	}
	if userAgent != "" {
		client.UserAgent = &userAgent
	}
	return &Client{xrpcClient: client}
}

// GetServices fetches detailed labeler views for dids with a single
// app.bsky.labeler.getServices call. Views the AppView returns in the
// non-detailed form are skipped.
func (c *Client) GetServices(ctx context.Context, dids []string) ([]labelers.RawProfile, error) {
	out, err := bsky.LabelerGetServices(ctx, c.xrpcClient, true, dids)
	if err != nil {
		return nil, fmt.Errorf("failed to get labeler services: %w", err)
	}

	profiles := make([]labelers.RawProfile, 0, len(out.Views))
	for _, view := range out.Views {
		if view == nil || view.LabelerDefs_LabelerViewDetailed == nil {
			continue
		}
		profiles = append(profiles, rawProfile(view.LabelerDefs_LabelerViewDetailed))
	}
	return profiles, nil
}

// ResolveHandle returns the DID for handle via com.atproto.identity.resolveHandle.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	out, err := atproto.IdentityResolveHandle(ctx, c.xrpcClient, handle)
	if err != nil {
		return "", fmt.Errorf("failed to resolve handle: %w", err)
	}
	return out.Did, nil
}

func rawProfile(v *bsky.LabelerDefs_LabelerViewDetailed) labelers.RawProfile {
	p := labelers.RawProfile{
		URI:         v.Uri,
		CID:         v.Cid,
		LikeCount:   v.LikeCount,
		IndexedAt:   v.IndexedAt,
		LabelValues: []labelers.LabelValue{},
	}

	if creator := v.Creator; creator != nil {
		p.DID = creator.Did
		p.Handle = creator.Handle
		p.DisplayName = deref(creator.DisplayName)
		p.Avatar = deref(creator.Avatar)
		p.Description = deref(creator.Description)
	}

	if v.Policies != nil {
		for _, def := range v.Policies.LabelValueDefinitions {
			if def == nil {
				continue
			}
			lv := labelers.LabelValue{
				Identifier: def.Identifier,
				Severity:   def.Severity,
				Blurs:      def.Blurs,
				Locales:    []labelers.LabelLocale{},
			}
			for _, loc := range def.Locales {
				if loc == nil {
					continue
				}
				lv.Locales = append(lv.Locales, labelers.LabelLocale{
					Lang:        loc.Lang,
					Name:        loc.Name,
					Description: loc.Description,
				})
			}
			p.LabelValues = append(p.LabelValues, lv)
		}
	}

	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
