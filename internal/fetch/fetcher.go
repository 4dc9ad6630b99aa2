// Package fetch retrieves source pages and extracts their readable text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// FetchError is returned when a source is unreachable or answers non-2xx.
type FetchError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Page is the extracted result for one source.
type Page struct {
	URL   string
	Title string
	Text  string // plain text, paragraphs separated by blank lines
}

// Fetcher downloads pages over HTTP and strips them down to readable text.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads the URL and extracts title and visible text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "knowledge-agent/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	title, text := ExtractText(string(body))
	if title == "" {
		title = url
	}
	return &Page{URL: url, Title: title, Text: text}, nil
}

// blockTags close a paragraph when the walk leaves them.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "blockquote": true, "pre": true, "tr": true, "br": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

// ExtractText parses HTML and returns the page title and its visible text,
// with block elements mapped to blank-line paragraph boundaries. Non-HTML
// input falls out as itself, since the parser treats it as one text node.
func ExtractText(rawHTML string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", strings.TrimSpace(rawHTML)
	}

	var sb strings.Builder
	var para strings.Builder

	closePara := func() {
		if p := collapseSpace(para.String()); p != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(p)
		}
		para.Reset()
	}

	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		switch n.Type {
		case html.ElementNode:
			if skipTags[n.Data] {
				return
			}
			if n.Data == "title" && title == "" {
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = collapseSpace(n.FirstChild.Data)
				}
				return
			}
			if n.Data == "body" {
				inBody = true
			}
		case html.TextNode:
			if inBody {
				para.WriteString(n.Data)
				para.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			closePara()
		}
	}
	walk(doc, false)
	closePara()

	if title == "" {
		if h1 := firstParagraph(sb.String()); len(h1) > 0 && len(h1) <= 200 {
			title = h1
		}
	}
	return title, sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstParagraph(s string) string {
	if idx := strings.Index(s, "\n\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}
