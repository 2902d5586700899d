// Package titlefetch reads the <title> of a web page.
package titlefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultTimeout bounds one fetch, connection included.
	DefaultTimeout = 4 * time.Second
	// MaxBody is how much of the page is scanned for a title.
	MaxBody = 512 << 10
)

// ErrNoTitle is returned when the page has no non-empty <title>.
var ErrNoTitle = errors.New("no title")

// Fetcher fetches page titles.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// New returns a Fetcher with the default timeout.
func New() *Fetcher {
	return &Fetcher{Client: &http.Client{}, Timeout: DefaultTimeout}
}

// Normalize prefixes bare www. hosts with http://.
func Normalize(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if strings.HasPrefix(strings.ToLower(u), "www.") {
		return "http://" + u
	}
	return u
}

// Fetch GETs rawURL and returns its trimmed, whitespace-collapsed title.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Normalize(rawURL), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "dropshelf/1 (+title preview)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return ExtractTitle(io.LimitReader(resp.Body, MaxBody))
}

// ExtractTitle returns the text of the first <title> element in r.
func ExtractTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	inTitle := false
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			if t := collapse(b.String()); t != "" {
				return t, nil
			}
			return "", ErrNoTitle
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "title":
				if t := collapse(b.String()); t != "" {
					return t, nil
				}
				return "", ErrNoTitle
			case "head":
				if !inTitle {
					return "", ErrNoTitle
				}
			}
		}
	}
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }
