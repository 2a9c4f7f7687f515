// Package pagetitle reads the title of documentation pages.
package pagetitle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxBody = 1 << 20

// ErrNoTitle is returned when a page has neither a <title> nor an og:title.
var ErrNoTitle = errors.New("page has no title")

// Fetcher implements service.TitleFetcher over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New builds a fetcher. A nil client uses http.DefaultClient; callers bound
// each fetch with the context deadline.
func New(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// FetchTitle downloads url and returns its title.
func (f *Fetcher) FetchTitle(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return ParseTitle(io.LimitReader(resp.Body, maxBody))
}

// ParseTitle scans an HTML document for its title, preferring <title> and
// falling back to the og:title meta tag. Whitespace is collapsed.
func ParseTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var ogTitle string
	inTitle := false
	var title strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return finish(title.String(), ogTitle)
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = true
			case atom.Meta:
				if ogTitle == "" && attr(tok, "property") == "og:title" {
					ogTitle = attr(tok, "content")
				}
			case atom.Body:
				if t := collapse(title.String()); t != "" {
					return t, nil
				}
			}
		case html.TextToken:
			if inTitle {
				title.Write(z.Text())
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Title {
				if t := collapse(title.String()); t != "" {
					return t, nil
				}
				inTitle = false
			}
		}
	}
}

func finish(title, ogTitle string) (string, error) {
	if t := collapse(title); t != "" {
		return t, nil
	}
	if t := collapse(ogTitle); t != "" {
		return t, nil
	}
	return "", ErrNoTitle
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
