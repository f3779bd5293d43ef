// Package mcp exposes the labeler directory as Model Context Protocol tools.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/metoro-io/mcp-golang"

	"labelerdir/internal/labelers"
	"labelerdir/internal/snapshot"
)

const defaultSearchLimit = 10

var errNotGenerated = errors.New("labelers not generated yet")

type SearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search term matched against name, handle, description and label values"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of results (default 10)"`
}

type GetLabelerArgs struct {
	Labeler string `json:"labeler" jsonschema:"required,description=Labeler DID or handle (e.g. did:plc:abc or mod.bsky.app)"`
}

type StatusArgs struct{}

// Tools answers tool calls from the current snapshot.
type Tools struct {
	store *snapshot.Store
}

func NewTools(store *snapshot.Store) *Tools {
	return &Tools{store: store}
}

// Register adds every labeler tool to server.
func Register(server *mcp.Server, t *Tools) error {
	if err := server.RegisterTool(
		"search_labelers",
		"Search the Bluesky labeler directory, ranked by likes",
		t.SearchLabelers,
	); err != nil {
		return err
	}

	if err := server.RegisterTool(
		"get_labeler",
		"Show one labeler with its description and label definitions",
		t.GetLabeler,
	); err != nil {
		return err
	}

	return server.RegisterTool(
		"labeler_status",
		"Report when the directory was last generated and whether it is regenerating",
		t.Status,
	)
}

// SearchLabelers lists the labelers matching args.Query, most liked first.
func (t *Tools) SearchLabelers(args SearchArgs) (*mcp.ToolResponse, error) {
	current := t.store.Current()
	if current == nil {
		return nil, errNotGenerated
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	matched := labelers.Filter(current.Labelers, args.Query)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	var formatted []string
	for i, p := range matched {
		formatted = append(formatted, fmt.Sprintf("%d. %s (@%s) - %d likes\n   %s",
			i+1, p.Name(), p.Handle, p.Likes(), p.ProfileURL()))
	}

	content := strings.Join(formatted, "\n")
	if content == "" {
		content = "No labelers found"
	}
	return mcp.NewToolResponse(mcp.NewTextContent(content)), nil
}

// GetLabeler describes the labeler whose DID or handle is args.Labeler.
func (t *Tools) GetLabeler(args GetLabelerArgs) (*mcp.ToolResponse, error) {
	current := t.store.Current()
	if current == nil {
		return nil, errNotGenerated
	}

	id := strings.TrimPrefix(strings.TrimSpace(args.Labeler), "@")
	for _, p := range current.Labelers {
		if p.DID == id || strings.EqualFold(p.Handle, id) {
			return mcp.NewToolResponse(mcp.NewTextContent(describe(p))), nil
		}
	}
	return nil, fmt.Errorf("labeler not found: %s", args.Labeler)
}

// Status returns the snapshot status as JSON.
func (t *Tools) Status(_ StatusArgs) (*mcp.ToolResponse, error) {
	data, err := json.MarshalIndent(t.store.Status(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return mcp.NewToolResponse(mcp.NewTextContent(string(data))), nil
}

func describe(p labelers.EnrichedProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nHandle: @%s\nDID: %s\nLikes: %d\nProfile: %s\n",
		p.Name(), p.Handle, p.DID, p.Likes(), p.ProfileURL())

	if len(p.Description) > 0 {
		b.WriteString("\n")
		for _, s := range p.Description {
			b.WriteString(s.Text)
		}
		b.WriteString("\n")
	}

	if len(p.LabelValues) > 0 {
		b.WriteString("\n## Labels\n")
		for _, lv := range p.LabelValues {
			name := lv.Identifier
			for _, loc := range lv.Locales {
				if loc.Name != "" {
					name = fmt.Sprintf("%s (%s)", loc.Name, lv.Identifier)
					break
				}
			}
			fmt.Fprintf(&b, "- %s", name)
			if lv.Severity != "" {
				fmt.Fprintf(&b, " [%s]", lv.Severity)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
