// Package detect bridges the pilot to the external marker detector.
//
// The detection algorithm (locating and decoding square binary fiducial
// markers) lives outside this repository; deployments run it as a
// sidecar service that accepts a JPEG frame and returns the markers it
// found. This package implements marker.Detector against that service.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/arena-rover/pilot/internal/geo"
	"github.com/arena-rover/pilot/internal/httputil"
	"github.com/arena-rover/pilot/internal/marker"
)

// HTTPDetector posts frames to a detector sidecar and decodes its
// marker list.
type HTTPDetector struct {
	http *httputil.AuthClient
	url  string
}

// NewHTTPDetector creates a detector client for the sidecar at url.
func NewHTTPDetector(hc *httputil.AuthClient, url string) *HTTPDetector {
	return &HTTPDetector{http: hc, url: url}
}

// wireMarker is the sidecar's response element: the marker ID and the
// quad corners ordered top-left, top-right, bottom-right, bottom-left.
type wireMarker struct {
	ID      int           `json:"id"`
	Corners [4][2]float64 `json:"corners"`
}

// Detect sends the frame and returns the detected markers. An empty
// result is normal: the vehicle or corners may simply be out of view.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) ([]marker.RawDetection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("detect: encode frame: %w", err)
	}

	body, err := d.http.PostBody(ctx, d.url, "image/jpeg", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	var wire []wireMarker
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("detect: decode response: %w", err)
	}

	out := make([]marker.RawDetection, 0, len(wire))
	for _, w := range wire {
		var det marker.RawDetection
		det.ID = w.ID
		for i, c := range w.Corners {
			det.Corners[i] = geo.Pixel{X: c[0], Y: c[1]}
		}
		out = append(out, det)
	}
	return out, nil
}
