package quotes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quotecrawl/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func quoteBlock(text, author, authorPath string, tags ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="quote">`)
	fmt.Fprintf(&b, `<span class="text">%s</span>`, text)
	fmt.Fprintf(&b, `<span>by <small class="author">%s</small>`, author)
	if authorPath != "" {
		fmt.Fprintf(&b, ` <a href="%s">(about)</a>`, authorPath)
	}
	b.WriteString(`</span><div class="tags">`)
	for _, tag := range tags {
		fmt.Fprintf(&b, `<a class="tag" href="/tag/%s/">%s</a>`, tag, tag)
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func listingPage(next string, blocks ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, block := range blocks {
		b.WriteString(block)
	}
	b.WriteString(`<nav><ul class="pager">`)
	if next != "" {
		fmt.Fprintf(&b, `<li class="next"><a href="%s">Next</a></li>`, next)
	}
	b.WriteString("</ul></nav></body></html>")
	return b.String()
}

func authorPage(name, born, location, bio string) string {
	return fmt.Sprintf(`<html><body><div class="author-details">
		<h3 class="author-title">%s</h3>
		<p>Born: <span class="author-born-date">%s</span>
		<span class="author-born-location">%s</span></p>
		<div class="author-description">%s</div>
	</div></body></html>`, name, born, location, bio)
}

// mockSite serves canned pages and counts GETs per path.
type mockSite struct {
	mu    sync.Mutex
	pages map[string]string
	// failAfter holds per-path request counts after which the path
	// starts returning 500. zero means always fail.
	failAfter map[string]int
	hits      map[string]int
}

func newMockSite() *mockSite {
	return &mockSite{
		pages:     map[string]string{},
		failAfter: map[string]int{},
		hits:      map[string]int{},
	}
}

func (m *mockSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.hits[r.URL.Path]++
	hit := m.hits[r.URL.Path]
	page, found := m.pages[r.URL.Path]
	threshold, failing := m.failAfter[r.URL.Path]
	m.mu.Unlock()

	if failing && hit > threshold {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, page)
}

func (m *mockSite) hitCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

func newTestCrawler(t *testing.T, site *mockSite) (*Crawler, *httptest.Server) {
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{
		BaseURL: srv.URL,
		Timeout: time.Second * 5,
	})
	require.NoError(t, err)
	return NewCrawler(client), srv
}

// twoPageSite builds the reference fixture: page one carries ten quotes
// from three distinct authors plus a next link, page two carries two
// quotes from one new author and no next link.
func twoPageSite() *mockSite {
	site := newMockSite()

	var pageOne []string
	for i := 0; i < 8; i++ {
		pageOne = append(pageOne, quoteBlock(
			fmt.Sprintf("“Insight number %d.”", i),
			"Albert Einstein", "/author/Albert-Einstein", "science",
		))
	}
	pageOne = append(pageOne,
		quoteBlock("“On human nature.”", "Jane Austen", "/author/Jane-Austen", "classic", "love"),
		quoteBlock("“On perseverance.”", "Marie Curie", "/author/Marie-Curie"),
	)
	site.pages["/"] = listingPage("/page/2/", pageOne...)

	site.pages["/page/2/"] = listingPage("",
		quoteBlock("“First of two.”", "Mark Twain", "/author/Mark-Twain", "humor"),
		quoteBlock("“Second of two.”", "Mark Twain", "/author/Mark-Twain", "humor"),
	)

	site.pages["/author/Albert-Einstein"] = authorPage(
		"Albert Einstein", "March 14, 1879", "in Ulm, Germany", "Theoretical physicist.")
	site.pages["/author/Jane-Austen"] = authorPage(
		"Jane Austen", "December 16, 1775", "in Steventon, England", "Novelist.")
	site.pages["/author/Marie-Curie"] = authorPage(
		"Marie Curie", "sometime long ago", "in Warsaw, Poland", "Physicist and chemist.")
	site.pages["/author/Mark-Twain"] = authorPage(
		"Mark Twain", "November 30, 1835", "in Florida, Missouri", "Humorist.")

	return site
}

func TestScrapeAll(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	site := twoPageSite()
	crawler, srv := newTestCrawler(t, site)

	allQuotes, allAuthors := crawler.ScrapeAll(context.Background())

	require.Len(t, allQuotes, 12)
	require.Len(t, allAuthors, 4)

	// every distinct author page fetched exactly once across the crawl
	for _, path := range []string{
		"/author/Albert-Einstein",
		"/author/Jane-Austen",
		"/author/Marie-Curie",
		"/author/Mark-Twain",
	} {
		require.Equal(t, 1, site.hitCount(path), "author path %s", path)
	}

	// each listing page is fetched twice: once to scrape, once to
	// locate the next link
	require.Equal(t, 2, site.hitCount("/"))
	require.Equal(t, 2, site.hitCount("/page/2/"))

	first := allQuotes[0]
	require.Equal(t, "“Insight number 0.”", first.Text)
	require.Equal(t, "Albert Einstein", first.Author)
	require.NotNil(t, first.AuthorURL)
	require.Equal(t, srv.URL+"/author/Albert-Einstein", *first.AuthorURL)
	require.Equal(t, []string{"science"}, first.Tags)

	byName := map[string]Author{}
	for _, author := range allAuthors {
		byName[author.Fullname] = author
	}
	einstein := byName["Albert Einstein"]
	require.NotNil(t, einstein.BirthDate)
	require.Equal(t, "1879-03-14", *einstein.BirthDate)
	require.Equal(t, "in Ulm, Germany", einstein.BirthPlace)
	require.Equal(t, "Theoretical physicist.", einstein.Bio)

	// unparseable birth date resolves to null, not an error
	curie := byName["Marie Curie"]
	require.Nil(t, curie.BirthDate)
	require.Equal(t, "in Warsaw, Poland", curie.BirthPlace)
}

func TestScrapeAllDeduplicatesAcrossPages(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	site := newMockSite()
	site.pages["/"] = listingPage("/page/2/",
		quoteBlock("“One.”", "Mark Twain", "/author/Mark-Twain"))
	site.pages["/page/2/"] = listingPage("",
		quoteBlock("“Two.”", "Mark Twain", "/author/Mark-Twain"))
	site.pages["/author/Mark-Twain"] = authorPage(
		"Mark Twain", "November 30, 1835", "in Florida, Missouri", "Humorist.")

	crawler, _ := newTestCrawler(t, site)
	allQuotes, allAuthors := crawler.ScrapeAll(context.Background())

	require.Len(t, allQuotes, 2)
	require.Len(t, allAuthors, 1)
	require.Equal(t, 1, site.hitCount("/author/Mark-Twain"))
}

func TestScrapePageAuthorFailureIsolated(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	site := newMockSite()
	site.pages["/"] = listingPage("",
		quoteBlock("“Good one.”", "Jane Austen", "/author/Jane-Austen"),
		quoteBlock("“Broken one.”", "Marie Curie", "/author/Marie-Curie"),
	)
	site.pages["/author/Jane-Austen"] = authorPage(
		"Jane Austen", "December 16, 1775", "in Steventon, England", "Novelist.")
	// Marie Curie's page always 500s
	site.failAfter["/author/Marie-Curie"] = 0

	crawler, _ := newTestCrawler(t, site)
	seen := map[string]struct{}{}
	quotes, authors := crawler.ScrapePage(context.Background(), "/", seen)

	require.Len(t, quotes, 2)
	require.Len(t, authors, 2)

	// order is first appearance on the page
	require.Equal(t, "Jane Austen", authors[0].Fullname)
	require.Equal(t, Author{}, authors[1])

	// the failed URL still counts as seen, it is never retried
	require.Len(t, seen, 2)
}

func TestScrapePageTransportFailure(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	site := newMockSite()
	site.failAfter["/"] = 0

	crawler, _ := newTestCrawler(t, site)
	quotes, authors := crawler.ScrapePage(context.Background(), "/", map[string]struct{}{})

	require.Empty(t, quotes)
	require.Empty(t, authors)
}

func TestScrapeAllNextLinkFailureStopsEarly(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	site := newMockSite()
	site.pages["/"] = listingPage("/page/2/",
		quoteBlock("“Survives the broken pager.”", "Jane Austen", "/author/Jane-Austen"))
	site.pages["/author/Jane-Austen"] = authorPage(
		"Jane Austen", "December 16, 1775", "in Steventon, England", "Novelist.")
	// the scrape fetch of "/" succeeds, the next-link re-fetch 500s
	site.failAfter["/"] = 1

	crawler, _ := newTestCrawler(t, site)
	allQuotes, allAuthors := crawler.ScrapeAll(context.Background())

	require.Len(t, allQuotes, 1)
	require.Len(t, allAuthors, 1)
	require.Equal(t, "Jane Austen", allAuthors[0].Fullname)
	require.Equal(t, 0, site.hitCount("/page/2/"))
}

func TestFetchQuotesSkipsMalformedElements(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	markup := listingPage("",
		quoteBlock("“Well formed.”", "Jane Austen", "/author/Jane-Austen"),
		`<div class="quote"><div class="tags"></div></div>`,
		quoteBlock("“Also well formed.”", "Mark Twain", "/author/Mark-Twain"),
	)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)

	site := newMockSite()
	crawler, _ := newTestCrawler(t, site)
	quotes := crawler.FetchQuotes(context.Background(), doc)

	require.Len(t, quotes, 2)
	require.Equal(t, "“Well formed.”", quotes[0].Text)
	require.Equal(t, "“Also well formed.”", quotes[1].Text)
}

func TestFetchQuotesDefaultFills(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	markup := listingPage("",
		// author without link, no tags
		`<div class="quote"><span class="text">“No link here.”</span>`+
			`<small class="author">Anonymous</small></div>`,
		// text missing entirely, author present
		`<div class="quote"><small class="author">Terse Author</small></div>`,
	)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)

	site := newMockSite()
	crawler, _ := newTestCrawler(t, site)
	quotes := crawler.FetchQuotes(context.Background(), doc)
	require.Len(t, quotes, 2)

	require.Nil(t, quotes[0].AuthorURL)
	require.Equal(t, []string{}, quotes[0].Tags)

	require.Equal(t, "No text available", quotes[1].Text)
	require.Equal(t, "Terse Author", quotes[1].Author)
}

func TestFetchAuthorDetailsNotFound(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/quotes")
	defer cleanup()

	site := newMockSite()
	crawler, srv := newTestCrawler(t, site)

	author := crawler.FetchAuthorDetails(context.Background(), srv.URL+"/author/Nobody")
	require.Equal(t, Author{}, author)
}
