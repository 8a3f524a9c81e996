// Package report renders the club model into shareable documents.
package report

import (
	"encoding/json"
	"fmt"

	"clubprogress/internal/components/chrono"
	"clubprogress/internal/model"
	"clubprogress/lib/textutil"
)

const (
	TypeMarkdown = "markdown"
	TypeHTML     = "html"
	TypeJSON     = "json"
)

type Renderer interface {
	// Type is the report type name used in configuration.
	Type() string
	// Extension is the file extension of rendered reports, dot included.
	Extension() string
	Render(club *model.Club) ([]byte, error)
}

// Renderers returns a renderer per configured report type, in the order given.
func Renderers(types []string, time chrono.TimeAPI) ([]Renderer, error) {
	out := make([]Renderer, 0, len(types))
	for _, t := range types {
		switch t {
		case TypeMarkdown:
			out = append(out, NewMarkdown(time))
		case TypeHTML:
			out = append(out, NewHTML(time))
		case TypeJSON:
			out = append(out, JSON{})
		default:
			return nil, fmt.Errorf("unknown report type %q", t)
		}
	}
	return out, nil
}

// FileName is the report file name for a club: "Floor Speakers" and ".md" give
// "floor_speakers_report.md".
func FileName(clubName, ext string) string {
	return textutil.FileSlug(clubName) + "_report" + ext
}

// JSON renders the club as the same document that is saved as the club summary.
type JSON struct{}

func (JSON) Type() string      { return TypeJSON }
func (JSON) Extension() string { return ".json" }

func (JSON) Render(club *model.Club) ([]byte, error) {
	return json.MarshalIndent(club, "", "  ")
}
