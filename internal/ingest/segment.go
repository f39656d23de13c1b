package ingest

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// openingHeading matches opening h1-h6 tags, the only split boundaries the
// segmenter recognizes.
var openingHeading = regexp.MustCompile(`(?i)<h[1-6].*?>`)

// shortChunkWords is the plain-text word count at or below which a candidate
// fragment is deferred and merged into the next one.
const shortChunkWords = 5

// Chunk is a heading-anchored HTML fragment paired with the text of the
// first heading element inside it. Heading is empty only for material that
// precedes the document's first heading tag.
type Chunk struct {
	Heading string `json:"heading"`
	HTML    string `json:"html"`
}

// SegmentHTML splits an HTML document into heading-anchored chunks. Each
// opening h1-h6 tag starts a new candidate fragment; fragments whose plain
// text is shortChunkWords words or fewer are held and prepended (joined by a
// single space) to the following fragment rather than emitted. At end of
// input the tail fragment is emitted even if short, merged with any held
// fragment; a held fragment with no tail is emitted as-is. Empty input
// yields no chunks; input without heading tags yields exactly one chunk with
// an empty heading.
func SegmentHTML(doc string) []Chunk {
	var chunks []Chunk
	var current string
	var short string
	haveShort := false
	lastEnd := 0

	emitOrHold := func() {
		trimmed := strings.TrimSpace(current)
		if haveShort {
			current = short + " " + trimmed
			haveShort = false
		} else {
			current = trimmed
		}
		if wordCount(current) > shortChunkWords {
			chunks = append(chunks, Chunk{Heading: firstHeading(current), HTML: current})
		} else {
			short = current
			haveShort = true
		}
	}

	for _, loc := range openingHeading.FindAllStringIndex(doc, -1) {
		if lastEnd != loc[0] {
			current += doc[lastEnd:loc[0]]
		}
		if current != "" {
			emitOrHold()
		}
		current = doc[loc[0]:loc[1]]
		lastEnd = loc[1]
	}

	if lastEnd < len(doc) {
		current += doc[lastEnd:]
	}

	if current != "" {
		trimmed := strings.TrimSpace(current)
		if haveShort {
			current = short + " " + trimmed
			haveShort = false
		} else {
			current = trimmed
		}
		chunks = append(chunks, Chunk{Heading: firstHeading(current), HTML: current})
	} else if haveShort {
		chunks = append(chunks, Chunk{Heading: firstHeading(short), HTML: short})
	}

	return chunks
}

// wordCount strips markup from the fragment and counts whitespace-separated
// words. Text nodes are joined with a space so adjacent words in different
// elements stay distinct.
func wordCount(fragment string) int {
	tok := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.Write(tok.Text())
		}
	}
	return len(strings.Fields(b.String()))
}

// firstHeading returns the text of the first h1-h6 element in the fragment,
// or the empty string if there is none.
func firstHeading(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return doc.Find("h1, h2, h3, h4, h5, h6").First().Text()
}
