package solver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Layout is a downloaded layout reference.
type Layout struct {
	Ref         string
	ContentType string
	Data        []byte
}

// FileName suggests a file name for the layout at position i of a result:
// the last path element of a URL reference, or layoutN plus an extension
// derived from the content type.
func (l Layout) FileName(i int) string {
	if !strings.HasPrefix(strings.ToLower(l.Ref), "data:") {
		base := path.Base(strings.SplitN(l.Ref, "?", 2)[0])
		if base != "" && base != "." && base != ".." && base != "/" {
			return base
		}
	}
	ext := ".bin"
	switch {
	case strings.HasPrefix(l.ContentType, "image/png"):
		ext = ".png"
	case strings.HasPrefix(l.ContentType, "image/jpeg"):
		ext = ".jpg"
	case strings.HasPrefix(l.ContentType, "image/gif"):
		ext = ".gif"
	case strings.HasPrefix(l.ContentType, "image/svg"):
		ext = ".svg"
	case strings.HasPrefix(l.ContentType, "application/pdf"):
		ext = ".pdf"
	}
	return fmt.Sprintf("layout%d%s", i+1, ext)
}

// ResolveRef turns a layout reference into an absolute URL. Relative
// references are resolved against the endpoint.
func (c *Client) ResolveRef(ref string) (*url.URL, error) {
	u, err := c.endpoint.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("layout reference %q: %w", ref, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("layout reference %q: unsupported scheme %q", ref, u.Scheme)
	}
	return u, nil
}

// Fetch downloads one layout reference. data: URIs are decoded without a
// network call. Fetches do not go through the circuit breaker.
func (c *Client) Fetch(ctx context.Context, ref string) (Layout, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "data:") {
		layout, err := decodeDataURI(ref)
		c.metrics.RecordLayoutFetch(err)
		return layout, err
	}

	u, err := c.ResolveRef(ref)
	if err != nil {
		c.metrics.RecordLayoutFetch(err)
		return Layout{}, err
	}
	layout, err := c.get(ctx, ref, u)
	c.metrics.RecordLayoutFetch(err)
	return layout, err
}

// FetchAll downloads refs in order. Both slices run parallel to refs; a
// failed entry keeps its Ref, carries no Data and has a non-nil error.
func (c *Client) FetchAll(ctx context.Context, refs []string) ([]Layout, []error) {
	layouts := make([]Layout, len(refs))
	errs := make([]error, len(refs))
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			layouts[i], errs[i] = Layout{Ref: ref}, &TransportError{Op: "fetch", Err: err}
			continue
		}
		l, err := c.Fetch(ctx, ref)
		if err != nil {
			c.log.Warn().Err(err).Str("ref", ref).Msg("layout fetch failed")
			l = Layout{Ref: ref}
		}
		layouts[i], errs[i] = l, err
	}
	return layouts, errs
}

func (c *Client) get(ctx context.Context, ref string, u *url.URL) (Layout, error) {
	requestID := c.newID()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Layout{}, &TransportError{Op: "fetch", Err: err}
	}
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Layout{}, &TransportError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Layout{}, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLayoutBody+1))
	if err != nil {
		return Layout{}, &TransportError{Op: "fetch", Err: err}
	}
	if len(data) > maxLayoutBody {
		return Layout{}, fmt.Errorf("layout %q exceeds %d bytes", ref, maxLayoutBody)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("url", u.String()).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("layout fetched")

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Layout{Ref: ref, ContentType: contentType, Data: data}, nil
}

// decodeDataURI handles data:[<mediatype>][;base64],<data>.
func decodeDataURI(ref string) (Layout, error) {
	rest := strings.TrimSpace(ref)[len("data:"):]
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Layout{}, errors.New("data URI: missing comma")
	}

	isBase64 := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		isBase64 = true
		meta = meta[:len(meta)-len(";base64")]
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return Layout{}, fmt.Errorf("data URI: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return Layout{}, fmt.Errorf("data URI: %w", err)
		}
		data = []byte(unescaped)
	}
	if len(data) > maxLayoutBody {
		return Layout{}, fmt.Errorf("data URI exceeds %d bytes", maxLayoutBody)
	}

	contentType := meta
	if contentType == "" {
		contentType = "text/plain;charset=US-ASCII"
	}
	return Layout{Ref: ref, ContentType: contentType, Data: data}, nil
}
