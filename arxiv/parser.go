package arxiv

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// minSectionLength filters out stub sections like figure captions that fall
// between headings.
const minSectionLength = 20

// maxReferenceTitleLength caps stored reference text.
const maxReferenceTitleLength = 300

var (
	refArxivIDRe = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)
	refDOIRe     = regexp.MustCompile(`10\.\d{4,}/[^\s<>"]+`)
)

// ParsedContent is the result of parsing a paper's full text.
type ParsedContent struct {
	Sections   []ParsedSection
	References []Reference
}

// ParseHTML extracts sections and references from an ar5iv HTML rendering.
// Sections are the text runs between heading tags; a section shorter than
// minSectionLength is dropped, and the kept sections are numbered 0..n-1
// with no gaps.
func ParseHTML(htmlSrc []byte) (*ParsedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlSrc))
	if err != nil {
		return nil, err
	}

	parsed := &ParsedContent{}
	parsed.Sections = extractSections(doc)

	// When a document has no headings at all, keep the whole body as one
	// section so short notes still get indexed.
	if len(parsed.Sections) == 0 {
		body := normalizeWhitespace(doc.Find("body").Text())
		if len(body) > minSectionLength {
			parsed.Sections = append(parsed.Sections, ParsedSection{
				Heading:  "Full Text",
				Level:    1,
				Content:  body,
				Position: 0,
			})
		}
	}

	parsed.References = extractReferences(doc)
	return parsed, nil
}

type headingRegion struct {
	heading string
	level   int
	content strings.Builder
}

// extractSections walks the document in reading order, cutting a new region
// at every heading tag.
func extractSections(doc *goquery.Document) []ParsedSection {
	var regions []*headingRegion

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				regions = append(regions, &headingRegion{
					heading: normalizeWhitespace(textOf(n)),
					level:   int(n.Data[1] - '0'),
				})
				return
			}
		}
		if n.Type == html.TextNode && len(regions) > 0 {
			regions[len(regions)-1].content.WriteString(n.Data)
			regions[len(regions)-1].content.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}

	var sections []ParsedSection
	position := 0
	for _, region := range regions {
		content := normalizeWhitespace(region.content.String())
		if len(content) <= minSectionLength {
			continue
		}
		sections = append(sections, ParsedSection{
			Heading:  region.heading,
			Level:    region.level,
			Content:  content,
			Position: position,
		})
		position++
	}
	return sections
}

// extractReferences pulls the bibliography items out of the first section
// that looks like a reference list.
func extractReferences(doc *goquery.Document) []Reference {
	refSection := doc.Find(`section[id*="bib"], section[class*="bib"], section[id*="ref"], section[class*="ref"]`).First()
	if refSection.Length() == 0 {
		return nil
	}

	var references []Reference
	refSection.Find("li").Each(func(i int, item *goquery.Selection) {
		title := normalizeWhitespace(item.Text())
		if title == "" {
			return
		}
		if runes := []rune(title); len(runes) > maxReferenceTitleLength {
			title = string(runes[:maxReferenceTitleLength])
		}

		// Match against the raw HTML so identifiers inside link hrefs
		// count too.
		raw, err := goquery.OuterHtml(item)
		if err != nil {
			raw = title
		}

		ref := Reference{Title: title}
		if m := refArxivIDRe.FindString(raw); m != "" {
			ref.ArxivID = m
		}
		if m := refDOIRe.FindString(raw); m != "" {
			ref.DOI = m
		}
		references = append(references, ref)
	})
	return references
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// pdfHeadingRe matches lines that look like the start of a section in
// extracted PDF text: numbered headings, lettered appendix headings, or the
// standard unnumbered ones.
var pdfHeadingRe = regexp.MustCompile(`^(\d+\.?\s+|[A-Z]\.\s+|Abstract|Introduction|Conclusion|References|Acknowledgments)`)

// ParsePDFText splits plain text extracted from a PDF into sections by
// heading heuristics. PDFs carry no reference structure worth trusting, so
// no references are returned.
func ParsePDFText(text string) *ParsedContent {
	var sections []ParsedSection

	currentHeading := "Abstract"
	var currentContent []string
	position := 0

	flush := func() {
		if len(currentContent) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentContent, " "))
		if len(content) > minSectionLength {
			sections = append(sections, ParsedSection{
				Heading:  currentHeading,
				Level:    1,
				Content:  content,
				Position: position,
			})
			position++
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if pdfHeadingRe.MatchString(trimmed) && len(trimmed) < 100 {
			flush()
			currentHeading = trimmed
			currentContent = nil
		} else if trimmed != "" {
			currentContent = append(currentContent, trimmed)
		}
	}
	flush()

	return &ParsedContent{Sections: sections}
}
