package agent

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// reportPolicy allows the usual user-generated-content tags and strips
// everything else. Model output is untrusted.
var reportPolicy = bluemonday.UGCPolicy()

// renderReport converts a markdown answer into sanitized HTML suitable
// for embedding in the consultation report.
func renderReport(answerMarkdown string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(answerMarkdown))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags,
	})
	rendered := markdown.Render(doc, renderer)

	return string(reportPolicy.SanitizeBytes(rendered))
}
