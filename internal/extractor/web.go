package extractor

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/dataforge/ingest/internal/pipeline"
	"github.com/dataforge/ingest/internal/store/model"
)

// WebExtractor fetches a fixed list of article pages and pulls the title,
// author, publication date and body text out of the markup.
type WebExtractor struct {
	client *http.Client
	urls   []string
}

func NewWebExtractor(client *http.Client, urls []string) *WebExtractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebExtractor{client: client, urls: urls}
}

func (e *WebExtractor) SourceType() model.SourceType {
	return model.SourceWebScrape
}

func (e *WebExtractor) Extract(ctx context.Context) iter.Seq2[model.RawRecord, error] {
	return func(yield func(model.RawRecord, error) bool) {
		for _, pageURL := range e.urls {
			record, err := e.fetchPage(ctx, pageURL)
			if err != nil {
				yield(model.RawRecord{}, err)
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (e *WebExtractor) fetchPage(ctx context.Context, pageURL string) (model.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return model.RawRecord{}, pipeline.NewPermanentExtractionError(err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return model.RawRecord{}, pipeline.NewTransientExtractionError(errors.Wrapf(err, "failed to fetch %s", pageURL))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return model.RawRecord{}, pipeline.NewTransientExtractionError(fmt.Errorf("fetch of %s returned %d", pageURL, resp.StatusCode))
	default:
		return model.RawRecord{}, pipeline.NewPermanentExtractionError(fmt.Errorf("fetch of %s returned %d", pageURL, resp.StatusCode))
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return model.RawRecord{}, pipeline.NewPermanentExtractionError(errors.Wrapf(err, "failed to parse %s", pageURL))
	}

	article := parseArticle(doc)
	return model.RawRecord{
		SourceType: model.SourceWebScrape,
		Payload: model.JSONMap{
			"source_url":     pageURL,
			"title":          article.title,
			"author":         article.author,
			"published_date": article.published,
			"body":           article.body,
		},
		ExtractedAt: time.Now().UTC(),
	}, nil
}

type articleContent struct {
	title     string
	author    string
	published string
	body      string
}

func parseArticle(doc *html.Node) articleContent {
	article := articleContent{}
	var paragraphs []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if article.title == "" {
					article.title = strings.TrimSpace(textOf(n))
				}
			case "h1":
				// prefer the page heading over the document title
				if heading := strings.TrimSpace(textOf(n)); heading != "" {
					article.title = heading
				}
			case "meta":
				name := attrValue(n, "name") + attrValue(n, "property")
				content := attrValue(n, "content")
				switch {
				case strings.Contains(name, "author") && article.author == "":
					article.author = content
				case strings.Contains(name, "published") || name == "date":
					article.published = normalizeDate(content)
				}
			case "time":
				if article.published == "" {
					article.published = normalizeDate(attrValue(n, "datetime"))
				}
			case "p":
				if text := strings.TrimSpace(textOf(n)); text != "" {
					paragraphs = append(paragraphs, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	article.body = strings.Join(paragraphs, "\n")
	return article
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// normalizeDate reduces a timestamp attribute to the YYYY-MM-DD form.
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format("2006-01-02")
	}
	if len(value) >= 10 {
		if _, err := time.Parse("2006-01-02", value[:10]); err == nil {
			return value[:10]
		}
	}
	return value
}
