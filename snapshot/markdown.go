package snapshot

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter creates a goroutine-safe Converter. The base plugin
// drops script, style, head and form controls, which keeps the rendering to
// what a person debugging the run would read on screen.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// ToMarkdown converts page HTML to Markdown. A nil converter gets a fresh one.
func ToMarkdown(conv *converter.Converter, htmlContent string) (string, error) {
	if conv == nil {
		conv = newMarkdownConverter()
	}
	return conv.ConvertString(htmlContent)
}
