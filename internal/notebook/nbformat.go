package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNotebook is returned for documents that are not nbformat v4.
var ErrInvalidNotebook = errors.New("invalid notebook document")

const (
	nbformatMajor = 4
	nbformatMinor = 5
)

// multiline is an nbformat string that may be stored either as one string or
// as a list of lines.
type multiline string

func (m *multiline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("source must be a string or a list of strings")
	}
	*m = multiline(strings.Join(lines, ""))
	return nil
}

type rawNotebook struct {
	Cells         []rawCell      `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

type rawCell struct {
	CellType       string            `json:"cell_type"`
	ID             string            `json:"id"`
	Metadata       map[string]any    `json:"metadata"`
	Source         multiline         `json:"source"`
	Outputs        []json.RawMessage `json:"outputs"`
	ExecutionCount *int              `json:"execution_count"`
	Attachments    json.RawMessage   `json:"attachments"`
}

type document struct {
	cells    []*Cell
	metadata map[string]any
	minor    int
}

func decode(data []byte) (*document, error) {
	var raw rawNotebook
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotebook, err)
	}
	if raw.NBFormat != nbformatMajor {
		return nil, fmt.Errorf("%w: unsupported nbformat %d", ErrInvalidNotebook, raw.NBFormat)
	}
	doc := &document{metadata: raw.Metadata, minor: raw.NBFormatMinor}
	if doc.metadata == nil {
		doc.metadata = map[string]any{}
	}
	for i, rc := range raw.Cells {
		ct := CellType(rc.CellType)
		switch ct {
		case CellCode, CellMarkdown, CellRaw:
		default:
			return nil, fmt.Errorf("%w: cell %d has type %q", ErrInvalidNotebook, i, rc.CellType)
		}
		cell := &Cell{
			ID:             rc.ID,
			Type:           ct,
			Source:         string(rc.Source),
			Metadata:       rc.Metadata,
			Outputs:        rc.Outputs,
			ExecutionCount: rc.ExecutionCount,
			Attachments:    rc.Attachments,
		}
		if cell.Metadata == nil {
			cell.Metadata = map[string]any{}
		}
		doc.cells = append(doc.cells, cell)
	}
	return doc, nil
}

func encode(cells []*Cell, metadata map[string]any, minor int) ([]byte, error) {
	if minor < nbformatMinor {
		minor = nbformatMinor
	}
	out := make([]map[string]any, 0, len(cells))
	for _, c := range cells {
		m := map[string]any{
			"cell_type": string(c.Type),
			"id":        c.ID,
			"metadata":  nonNilMap(c.Metadata),
			"source":    c.Source,
		}
		switch c.Type {
		case CellCode:
			outputs := c.Outputs
			if outputs == nil {
				outputs = []json.RawMessage{}
			}
			m["outputs"] = outputs
			m["execution_count"] = c.ExecutionCount
		default:
			if len(c.Attachments) > 0 {
				m["attachments"] = c.Attachments
			}
		}
		out = append(out, m)
	}
	doc := map[string]any{
		"cells":          out,
		"metadata":       nonNilMap(metadata),
		"nbformat":       nbformatMajor,
		"nbformat_minor": minor,
	}
	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return nil, fmt.Errorf("encode notebook: %w", err)
	}
	return append(data, '\n'), nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
