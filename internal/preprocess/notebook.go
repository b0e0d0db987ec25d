package preprocess

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const codeCellType = "code"

// notebook is the subset of the nbformat v4 document needed for extraction
type notebook struct {
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string     `json:"cell_type"`
	Source   cellSource `json:"source"`
}

// cellSource accepts both encodings nbformat allows: a single string or a
// list of lines that concatenate to the cell text.
type cellSource string

func (s *cellSource) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
		*s = cellSource(strings.Join(lines, ""))
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*s = cellSource(text)
	return nil
}

// NotebookExtractor pulls code cells out of .ipynb documents.
type NotebookExtractor struct{}

func NewNotebookExtractor() *NotebookExtractor {
	return &NotebookExtractor{}
}

// ExtractFragments returns the source of every code cell in document order.
// Content that is not a notebook yields an empty slice.
func (e *NotebookExtractor) ExtractFragments(raw []byte) []string {
	fragments := make([]string, 0)

	var nb notebook
	if err := json.Unmarshal(raw, &nb); err != nil {
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("Content is not a valid notebook")
		return fragments
	}

	for _, cell := range nb.Cells {
		if cell.CellType != codeCellType {
			continue
		}
		fragments = append(fragments, string(cell.Source))
	}

	return fragments
}
