package quotes

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"quotecrawl/lib/htmlutil"
	"quotecrawl/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// defaults filled in when a field cannot be extracted, matching the
// shape of the output documents.
const (
	noTextPlaceholder = "No text available"
	unknownAuthor     = "Unknown Author"
	unknownLocation   = "Unknown Location"
	noBioPlaceholder  = "No bio available"
)

// Crawler walks a quote site page by page, fanning out to author detail
// pages. one Crawler is good for one site; a single ScrapeAll call owns
// all of its crawl state.
type Crawler struct {
	client *Client
}

func NewCrawler(client *Client) *Crawler {
	return &Crawler{client: client}
}

func (c *Crawler) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := c.client.Http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("unexpected status %q for %q", res.Status(), pageURL)
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}

// FetchQuotes extracts every quote block in the document. a block that
// cannot be parsed is logged and skipped, its siblings are unaffected.
func (c *Crawler) FetchQuotes(ctx context.Context, doc *goquery.Document) []Quote {
	var quotes []Quote
	doc.Find("div.quote").Each(func(i int, sel *goquery.Selection) {
		quote, err := c.parseQuote(sel)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed quote element", "index", i, "err", err)
			return
		}
		quotes = append(quotes, quote)
	})
	return quotes
}

func (c *Crawler) parseQuote(sel *goquery.Selection) (Quote, error) {
	textSel := sel.Find("span.text")
	authorSel := sel.Find("small.author")
	if textSel.Length() == 0 && authorSel.Length() == 0 {
		return Quote{}, fmt.Errorf("element carries neither quote text nor author")
	}

	quote := Quote{
		Text:   htmlutil.ExtractText(textSel, noTextPlaceholder),
		Author: htmlutil.ExtractText(authorSel, unknownAuthor),
		Tags:   []string{},
	}

	if link := htmlutil.ExtractURL(sel.Find("a").First(), "href", "", c.client.BaseURL); link != "" {
		quote.AuthorURL = &link
	}

	sel.Find("a.tag").Each(func(_ int, tagSel *goquery.Selection) {
		tag := htmlutil.ExtractText(tagSel, "")
		if tag != "" {
			quote.Tags = append(quote.Tags, tag)
		}
	})

	return quote, nil
}

// FetchAuthorDetails turns an author page into a record. every failure
// mode, transport or parse, degrades to the zero record after a log
// line, one broken author page never aborts the page or the crawl.
func (c *Crawler) FetchAuthorDetails(ctx context.Context, authorURL string) Author {
	ctx, span := tracer.Start(ctx, "crawler:FetchAuthorDetails")
	defer span.End()

	doc, err := c.fetchDocument(ctx, authorURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch author page")
		slog.ErrorContext(ctx, "failed to fetch author details", "url", authorURL, "err", err)
		return Author{}
	}

	author := Author{
		Fullname:   htmlutil.ExtractText(doc.Find("h3.author-title"), unknownAuthor),
		BirthPlace: htmlutil.ExtractText(doc.Find("span.author-born-location"), unknownLocation),
		Bio:        htmlutil.ExtractText(doc.Find("div.author-description"), noBioPlaceholder),
	}
	born := htmlutil.ExtractText(doc.Find("span.author-born-date"), "")
	if iso, ok := textutil.ParseDate(born, ""); ok {
		author.BirthDate = &iso
	}
	return author
}

// ScrapePage extracts one listing page's quotes and concurrently fetches
// details for every referenced author not yet in `seen`. dispatched URLs
// are added to `seen`; results line up with first-appearance order on
// the page. a page-level fetch failure logs and returns empty results.
//
// `seen` must only ever be touched from the goroutine driving the crawl,
// no page-level work runs concurrently with another page.
func (c *Crawler) ScrapePage(ctx context.Context, pageURL string, seen map[string]struct{}) ([]Quote, []Author) {
	ctx, span := tracer.Start(ctx, "crawler:ScrapePage")
	defer span.End()

	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch listing page")
		slog.ErrorContext(ctx, "failed to scrape page", "url", pageURL, "err", err)
		return nil, nil
	}

	quotes := c.FetchQuotes(ctx, doc)

	var pending []string
	for _, quote := range quotes {
		if quote.AuthorURL == nil {
			continue
		}
		link := *quote.AuthorURL
		if _, fetched := seen[link]; fetched {
			continue
		}
		if slices.Contains(pending, link) {
			continue
		}
		pending = append(pending, link)
	}

	// full fan-out, one goroutine per unseen author. fan-in happens
	// before returning so a slow author delays the page but cannot
	// corrupt it, each slot resolves independently.
	authors := make([]Author, len(pending))
	var wg sync.WaitGroup
	for i, link := range pending {
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			authors[i] = c.FetchAuthorDetails(ctx, link)
		}(i, link)
	}
	wg.Wait()

	for _, link := range pending {
		seen[link] = struct{}{}
	}

	slog.DebugContext(
		ctx, "scraped page",
		"url", pageURL,
		"quotes", len(quotes),
		"new_authors", len(authors),
	)
	return quotes, authors
}

// ScrapeAll walks the site from its root listing page until no next-page
// link remains. pages run strictly sequentially; any error while
// locating the next link ends the walk early rather than aborting it.
func (c *Crawler) ScrapeAll(ctx context.Context) ([]Quote, []Author) {
	ctx, span := tracer.Start(ctx, "crawler:ScrapeAll")
	defer span.End()

	base := c.client.BaseURL.String()
	slog.InfoContext(ctx, "starting crawl", "base_url", base)

	var allQuotes []Quote
	var allAuthors []Author
	seen := map[string]struct{}{}
	current := base
	pages := 0

	for current != "" {
		if ctx.Err() != nil {
			slog.WarnContext(ctx, "crawl cancelled", "url", current)
			break
		}

		quotes, authors := c.ScrapePage(ctx, current, seen)
		allQuotes = append(allQuotes, quotes...)
		allAuthors = append(allAuthors, authors...)
		pages++

		next, err := c.nextPage(ctx, current)
		if err != nil {
			span.RecordError(err)
			slog.ErrorContext(ctx, "failed to locate next page, stopping crawl", "url", current, "err", err)
			break
		}
		current = next
	}

	slog.InfoContext(
		ctx, "crawl complete",
		"base_url", base,
		"pages", pages,
		"quotes", len(allQuotes),
		"authors", len(allAuthors),
	)
	return allQuotes, allAuthors
}

// nextPage re-fetches the current page and resolves its next-page link.
// an empty return with nil error means the crawl is done.
func (c *Crawler) nextPage(ctx context.Context, pageURL string) (string, error) {
	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", err
	}

	link := doc.Find("li.next a[href]")
	if link.Length() == 0 {
		return "", nil
	}
	// an unresolvable href also terminates, there is nowhere to go
	return htmlutil.ExtractURL(link, "href", "", c.client.BaseURL), nil
}
