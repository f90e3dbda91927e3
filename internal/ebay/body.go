package ebay

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
)

// maxBodyBytes bounds how much of a response we are willing to buffer.
const maxBodyBytes = 8 << 20

// readBody reads a response body, undoing any content encoding we asked for.
func readBody(resp *http.Response) ([]byte, error) {
	reader, err := getReader(resp)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(reader, maxBodyBytes))
}

func getReader(resp *http.Response) (io.Reader, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	return reader, nil
}

// summarizeBody turns an error body into one short log-friendly line.
// HTML error pages (gateways, maintenance pages) are reduced to their title.
func summarizeBody(header http.Header, body []byte) string {
	ct := strings.ToLower(header.Get("Content-Type"))
	if strings.Contains(ct, "html") || bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if title == "" {
				title = strings.TrimSpace(doc.Find("h1").First().Text())
			}
			if title != "" {
				return clip(strings.Join(strings.Fields(title), " "), 200)
			}
		}
	}
	return clip(strings.Join(strings.Fields(string(body)), " "), 200)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
