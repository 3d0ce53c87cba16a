package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

// FetchResult is the raw payload plus the cleaned Markdown extracted from it.
type FetchResult struct {
	FinalURL string
	Title    string
	Raw      []byte
	Markdown string
}

const maxFetchBytes = 8 * 1000 * 1000

// fetchDocument retrieves sourceURL, extracts the main article with
// go-readability, and converts the cleaned HTML to Markdown.
func fetchDocument(ctx context.Context, sourceURL string) (FetchResult, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return FetchResult{}, fmt.Errorf("invalid source url: %s", sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("User-Agent", "agentruntime-knowledge-ingestor/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	ct, cs := parseContentType(resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return FetchResult{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxFetchBytes {
		return FetchResult{}, fmt.Errorf("response exceeds %d bytes", maxFetchBytes)
	}

	utf8Body, err := toUTF8(body, cs)
	if err != nil {
		return FetchResult{}, fmt.Errorf("charset decode: %w", err)
	}

	finalURL := resp.Request.URL.String()
	res := FetchResult{FinalURL: finalURL, Raw: body}

	if !isHTML(ct) {
		res.Markdown = string(utf8Body)
		return res, nil
	}

	html := string(utf8Body)
	base, _ := url.Parse(finalURL)
	articleHTML := html
	if art, rerr := readability.FromReader(strings.NewReader(html), base); rerr == nil && strings.TrimSpace(art.Content) != "" {
		articleHTML = art.Content
		res.Title = strings.TrimSpace(art.Title)
	}

	md, err := htmltomarkdown.ConvertString(articleHTML, converter.WithDomain(baseOrigin(finalURL)))
	if err != nil {
		return FetchResult{}, fmt.Errorf("html to markdown: %w", err)
	}
	if res.Title != "" && !strings.HasPrefix(strings.TrimLeft(md, "\n"), "# ") {
		md = "# " + res.Title + "\n\n" + md
	}
	res.Markdown = strings.TrimSpace(md)
	return res, nil
}

func parseContentType(h string) (ctype, cset string) {
	if h == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(h)
	if err != nil {
		return h, ""
	}
	return strings.ToLower(mt), strings.ToLower(params["charset"])
}

func isHTML(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml" || strings.HasSuffix(ct, "html")
}

func toUTF8(b []byte, charsetLabel string) ([]byte, error) {
	if charsetLabel == "" || strings.EqualFold(charsetLabel, "utf-8") || strings.EqualFold(charsetLabel, "utf8") {
		return b, nil
	}
	r, err := charset.NewReaderLabel(charsetLabel, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func baseOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
