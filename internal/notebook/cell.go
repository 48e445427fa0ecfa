package notebook

import (
	"encoding/json"
	"slices"

	"github.com/user/nbbridge/internal/types"
)

type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellRaw      CellType = "raw"
)

// ParametersTag marks the cell that holds the injected parameters of a
// parameterized run.
const ParametersTag = "parameters"

type Cell struct {
	ID             string
	Type           CellType
	Source         string
	Metadata       map[string]any
	Outputs        []json.RawMessage
	ExecutionCount *int
	Attachments    json.RawMessage
}

func newCodeCell() *Cell {
	return &Cell{
		ID:       types.NewCellID(),
		Type:     CellCode,
		Metadata: map[string]any{},
	}
}

// Tags returns the string entries of metadata.tags.
func (c *Cell) Tags() []string {
	raw, ok := c.Metadata["tags"]
	if !ok {
		return nil
	}
	var tags []string
	switch v := raw.(type) {
	case []string:
		tags = append(tags, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return tags
}

// HasTag reports whether tag is present in metadata.tags.
func (c *Cell) HasTag(tag string) bool {
	return slices.Contains(c.Tags(), tag)
}

func (c *Cell) addTag(tag string) bool {
	tags := c.Tags()
	if slices.Contains(tags, tag) {
		return false
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	out := make([]any, 0, len(tags)+1)
	for _, t := range tags {
		out = append(out, t)
	}
	c.Metadata["tags"] = append(out, tag)
	return true
}
