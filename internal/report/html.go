package report

import (
	"bytes"
	"html/template"

	"clubprogress/internal/components/chrono"
	"clubprogress/internal/model"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// raw HTML in the markdown is escaped, member names come from the platform
var markdownConverter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d0d7de; padding: 6px 13px; }
th { background: #f6f8fa; }
</style>
</head>
<body>
{{ .Body }}
</body>
</html>
`))

// HTML renders the markdown report and wraps it in a standalone page.
type HTML struct {
	markdown Markdown
}

func NewHTML(time chrono.TimeAPI) HTML {
	return HTML{markdown: NewMarkdown(time)}
}

func (HTML) Type() string      { return TypeHTML }
func (HTML) Extension() string { return ".html" }

func (h HTML) Render(club *model.Club) ([]byte, error) {
	var body bytes.Buffer
	err := markdownConverter.Convert([]byte(h.markdown.document(club)), &body)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: club.ClubName + " - Club Progress Summary",
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
