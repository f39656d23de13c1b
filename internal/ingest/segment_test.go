package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentHTMLSplitsOnHeadings(t *testing.T) {
	t.Parallel()

	chunks := SegmentHTML(`<h1>A</h1>one two three four five six<h2>B</h2>hi`)
	require.Len(t, chunks, 2)
	require.Equal(t, Chunk{Heading: "A", HTML: "<h1>A</h1>one two three four five six"}, chunks[0])
	// The trailing fragment is only two words but is flushed at end of input.
	require.Equal(t, Chunk{Heading: "B", HTML: "<h2>B</h2>hi"}, chunks[1])
}

func TestSegmentHTMLNoHeadings(t *testing.T) {
	t.Parallel()

	chunks := SegmentHTML("just text")
	require.Equal(t, []Chunk{{Heading: "", HTML: "just text"}}, chunks)
}

func TestSegmentHTMLEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, SegmentHTML(""))
}

func TestSegmentHTMLShortChunkCarryForward(t *testing.T) {
	t.Parallel()

	// Every span is five words or fewer, so everything collapses into a
	// single chunk emitted at end of input.
	chunks := SegmentHTML(`<h1>A</h1>hi<h2>B</h2>ok`)
	require.Equal(t, []Chunk{{Heading: "A", HTML: "<h1>A</h1>hi <h2>B</h2>ok"}}, chunks)
}

func TestSegmentHTMLHeldShortChunkWithNoTail(t *testing.T) {
	t.Parallel()

	// The final heading tag ends the input, so the held short fragment is
	// merged into it and flushed.
	chunks := SegmentHTML(`<h1>A</h1>hi<h2>B</h2>`)
	require.Equal(t, []Chunk{{Heading: "A", HTML: "<h1>A</h1>hi <h2>B</h2>"}}, chunks)
}

func TestSegmentHTMLLeadingFragmentHasNoHeading(t *testing.T) {
	t.Parallel()

	chunks := SegmentHTML(`intro words before any heading at all<h2>Topic</h2>body one two three four five six`)
	require.Len(t, chunks, 2)
	require.Equal(t, "", chunks[0].Heading)
	require.Equal(t, "intro words before any heading at all", chunks[0].HTML)
	require.Equal(t, "Topic", chunks[1].Heading)
	require.Equal(t, "<h2>Topic</h2>body one two three four five six", chunks[1].HTML)
}

func TestSegmentHTMLHeadingTagsWithAttributes(t *testing.T) {
	t.Parallel()

	chunks := SegmentHTML(`<H3 class="title" id="x">Mixed Case</H3><p>alpha beta gamma delta epsilon zeta</p>`)
	require.Len(t, chunks, 1)
	require.Equal(t, "Mixed Case", chunks[0].Heading)
}

func TestSegmentHTMLWordCountIgnoresMarkup(t *testing.T) {
	t.Parallel()

	// Six plain-text words spread across nested tags: long enough to emit
	// before the next heading.
	doc := `<h2>T</h2><p>one <b>two</b> three</p><p>four five</p><h2>U</h2>tail words here after the heading`
	chunks := SegmentHTML(doc)
	require.Len(t, chunks, 2)
	require.Equal(t, "T", chunks[0].Heading)
	require.Equal(t, "U", chunks[1].Heading)
}
