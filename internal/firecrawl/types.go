// Package firecrawl talks to a Firecrawl-compatible crawl provider: job
// submission and paginated result aggregation.
package firecrawl

// Status is the provider-side state of a crawl job.
type Status string

// Job statuses reported by the provider.
const (
	StatusScraping  Status = "scraping"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IngestResult is one page of the provider's status+data payload for a job.
// FetchAll returns it with Next cleared and Data holding the accumulation
// across all pages.
type IngestResult struct {
	Status      Status `json:"status"`
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	CreditsUsed int    `json:"creditsUsed"`
	ExpiresAt   string `json:"expiresAt"`
	// Next is an absolute URL for the following page, when present.
	Next *string `json:"next,omitempty"`
	// Data is the page's document list. A nil entry is a slot the provider
	// has allocated but not yet filled.
	Data []*Document `json:"data,omitempty"`
}

// Document is one fetched page in a crawl result.
type Document struct {
	Markdown   string   `json:"markdown,omitempty"`
	Extract    string   `json:"extract,omitempty"`
	HTML       string   `json:"html,omitempty"`
	RawHTML    string   `json:"rawHtml,omitempty"`
	Links      []string `json:"links,omitempty"`
	Screenshot string   `json:"screenshot,omitempty"`
	Metadata   Metadata `json:"metadata"`
}

// Body returns the document's HTML, preferring the cleaned variant.
func (d *Document) Body() string {
	if d.HTML != "" {
		return d.HTML
	}
	return d.RawHTML
}

// Metadata is the page metadata block the provider attaches to each
// document. It is carried through to consumers, never interpreted here.
type Metadata struct {
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Language      string   `json:"language,omitempty"`
	Keywords      string   `json:"keywords,omitempty"`
	Robots        string   `json:"robots,omitempty"`
	OgTitle       string   `json:"ogTitle,omitempty"`
	OgDescription string   `json:"ogDescription,omitempty"`
	OgURL         string   `json:"ogUrl,omitempty"`
	OgImage       string   `json:"ogImage,omitempty"`
	OgSiteName    string   `json:"ogSiteName,omitempty"`
	OgLocaleAlt   []string `json:"ogLocaleAlternate,omitempty"`
	ModifiedTime  string   `json:"modifiedTime,omitempty"`
	PublishedTime string   `json:"publishedTime,omitempty"`
	SourceURL     string   `json:"sourceURL,omitempty"`
	StatusCode    int      `json:"statusCode,omitempty"`
	Error         string   `json:"error,omitempty"`
}
