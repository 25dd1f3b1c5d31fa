package report

import (
	"bytes"
	"html/template"

	"bracketlab/domain/run"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #1d232a; }
table { border-collapse: collapse; margin: 0.5rem 0 1rem; }
th, td { border: 1px solid #d0d7de; padding: 0.25rem 0.6rem; }
th { background: #f3f5f7; }
code { background: #f3f5f7; padding: 0 0.2rem; }
blockquote { border-left: 4px solid #d29922; margin: 0; padding-left: 0.8rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTMLFragment converts the Markdown report to sanitized HTML without a page wrapper
func HTMLFragment(r *run.Report) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	raw := markdown.ToHTML([]byte(Markdown(r)), p, renderer)
	return bluemonday.UGCPolicy().SanitizeBytes(raw)
}

// HTML renders the report as a standalone page
func HTML(r *run.Report) []byte {
	var buf bytes.Buffer
	data := struct {
		Title string
		Body  template.HTML
	}{
		Title: "Run " + r.ID.String(),
		Body:  template.HTML(HTMLFragment(r)),
	}
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return HTMLFragment(r)
	}
	return buf.Bytes()
}
