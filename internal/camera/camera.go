// Package camera fetches frames from the overhead camera endpoints.
package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoding
	"time"

	"github.com/arena-rover/pilot/internal/httputil"
)

// DefaultFetchTimeout bounds one frame fetch. It must stay shorter than
// the control tick so a stalled camera degrades to "observation
// unavailable" instead of stalling the loop.
const DefaultFetchTimeout = 80 * time.Millisecond

// Client fetches the most recently captured JPEG frame from one camera.
type Client struct {
	name    string
	url     string
	http    *httputil.AuthClient
	timeout time.Duration
}

// New creates a camera client. timeout <= 0 selects DefaultFetchTimeout.
func New(name, url string, hc *httputil.AuthClient, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Client{name: name, url: url, http: hc, timeout: timeout}
}

// Name returns the camera's identifier, carried on observations.
func (c *Client) Name() string { return c.name }

// Frame fetches and decodes the camera's most recent frame. Rapid
// repeated calls may yield an identical cached frame; callers treat
// every frame as a fresh snapshot regardless.
func (c *Client) Frame(ctx context.Context) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.http.GetBody(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", c.name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("camera %s: decode frame: %w", c.name, err)
	}
	return img, nil
}
