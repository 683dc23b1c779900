package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector matches article chrome that would pollute the token
// stream: scripts, infoboxes, navboxes, reference markers, tables, math
// markup, edit links and media.
const noiseSelector = "script, style, table, .infobox, .navbox, .reference, " +
	".mw-editsection, sup.reference, .reflist, .thumb, img, math, .hatnote"

// ExtractText reduces rendered article HTML to the plain text that gets
// tokenized: headings, paragraphs and list items, whitespace collapsed,
// blank lines between blocks.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li").Each(func(i int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	return strings.Join(blocks, "\n\n"), nil
}
