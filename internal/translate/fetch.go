// Remote image dereferencing.
//
// DESIGN: The upstream backend cannot fetch URLs, so remote images are pulled
// by the gateway and inlined as base64 data URIs. The MIME type comes from
// the response Content-Type header, falling back to the URL's file extension.
// A failed fetch forwards the original URL unchanged; it never fails the
// request.
package translate

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ocigw/genai-gateway/internal/config"
)

// ImageFetcher dereferences remote image URLs into data URIs.
type ImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewImageFetcher creates a fetcher with the default timeout and size cap.
func NewImageFetcher() *ImageFetcher {
	return &ImageFetcher{
		client:   &http.Client{Timeout: config.DefaultImageFetchTimeout},
		maxBytes: config.MaxImageBytes,
	}
}

// NewImageFetcherWithClient creates a fetcher with a custom HTTP client,
// used by tests.
func NewImageFetcherWithClient(client *http.Client) *ImageFetcher {
	return &ImageFetcher{client: client, maxBytes: config.MaxImageBytes}
}

// Inline converts an http(s) image URL into a self-contained data URI.
// data: URIs pass through unchanged; any fetch or decode failure returns the
// original URL.
func (f *ImageFetcher) Inline(ctx context.Context, rawURL string) string {
	if strings.HasPrefix(rawURL, "data:") {
		return rawURL
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("image fetch: bad URL, forwarding as-is")
		return rawURL
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("image fetch failed, forwarding as-is")
		return rawURL
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("url", rawURL).Msg("image fetch failed, forwarding as-is")
		return rawURL
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("image read failed, forwarding as-is")
		return rawURL
	}

	mimeType := contentMIME(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = extensionMIME(rawURL)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// contentMIME extracts the media type from a Content-Type header value.
func contentMIME(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return ""
	}
	return mediaType
}

// extensionMIME infers a media type from the URL's file extension.
func extensionMIME(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if ext == "" {
		return ""
	}
	mimeType := mime.TypeByExtension(ext)
	if !strings.HasPrefix(mimeType, "image/") {
		return ""
	}
	return mimeType
}
