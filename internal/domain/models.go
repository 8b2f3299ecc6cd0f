package domain

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// SolvingMarker is written into a question's solution while a solve request is in flight.
const SolvingMarker = "Generating..."

// Timestamp decodes both RFC 3339 and the zone-less ISO layout the processing backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// Paper is an uploaded exam paper.
type Paper struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	CreatedAt   Timestamp `json:"created_at"`
	IsProcessed bool      `json:"is_processed"`
}

// PaperSummary is one row of the paper listing.
type PaperSummary struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	CreatedAt   Timestamp `json:"created_at"`
	IsProcessed bool      `json:"is_processed"`
}

// Question is a detected question of a paper. BBox is passed through unmodified.
type Question struct {
	ID           int64  `json:"id"`
	PaperID      int64  `json:"paper_id"`
	ImagePath    string `json:"image_path"`
	OCRText      string `json:"ocr_text"`
	SolutionText string `json:"solution_text"`
	Answer       string `json:"answer,omitempty"`
	Analysis     string `json:"analysis,omitempty"`
	BBox         string `json:"bbox_json"`
	IsIncomplete bool   `json:"is_incomplete"`
	OrderIndex   int    `json:"order_index"`
}

// Status returns the derived lifecycle stage of the question.
func (q Question) Status() Status {
	return StatusOf(q)
}

// Body is the long-form solution to render: analysis when present, the legacy text otherwise.
func (q Question) Body() string {
	if q.Analysis != "" {
		return q.Analysis
	}
	return q.SolutionText
}

// Solving reports whether the optimistic in-progress marker is shown.
func (q Question) Solving() bool {
	return q.SolutionText == SolvingMarker
}

// Snapshot is the full paper state returned by one fetch.
type Snapshot struct {
	Paper     Paper      `json:"paper"`
	Questions []Question `json:"questions"`
}

// Solution is the result of a solve request.
type Solution struct {
	Solution string `json:"solution"`
	Answer   string `json:"answer,omitempty"`
}

// UploadResult is returned by the upload endpoint.
type UploadResult struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

// ExportResult points at a generated document.
type ExportResult struct {
	DownloadURL string `json:"download_url"`
}
