package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// LocationImageScan is recorded for camera/upload captures
	LocationImageScan = "Your Location"

	// LocationManualInput is recorded for text captures
	LocationManualInput = "Manual Input"

	// TextScanPlaceholder is the image shown for items captured from text
	TextScanPlaceholder = "data:image/svg+xml;base64,PHN2ZyB4bWxucz0iaHR0cDovL3d3dy53My5vcmcvMjAwMC9zdmciIHZpZXdCb3g9IjAgMCA2NCA2NCI+PHJlY3Qgd2lkdGg9IjY0IiBoZWlnaHQ9IjY0IiByeD0iOCIgZmlsbD0iI2U1ZTdlYiIvPjx0ZXh0IHg9IjMyIiB5PSIzOCIgZm9udC1zaXplPSIxMiIgdGV4dC1hbmNob3I9Im1pZGRsZSIgZmlsbD0iIzZiNzI4MCI+VEVYVDwvdGV4dD48L3N2Zz4="
)

// FoodItem is one scanned product in a user's history.
// Image holds either an inline data URL or a remote URL; the remote URL
// replaces the inline one once the upload has completed.
type FoodItem struct {
	ID       string       `json:"id" firestore:"id"`
	Image    string       `json:"image" firestore:"image"`
	Analysis FoodAnalysis `json:"analysis" firestore:"analysis"`
	Location string       `json:"location" firestore:"location"`
	ScanDate time.Time    `json:"scanDate" firestore:"scanDate"`
}

// HasInlineImage reports whether the image is still a data URL
func (f FoodItem) HasInlineImage() bool {
	return strings.HasPrefix(f.Image, "data:")
}

// Clone returns a copy that shares no slices with f
func (f FoodItem) Clone() FoodItem {
	out := f
	out.Analysis = f.Analysis.Clone()
	return out
}

// Image is raw image content with its MIME type
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageUpload is an image captured by the user, as received from the client
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EncodeDataURL renders data as a base64 data URL
func EncodeDataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURL parses a base64 data URL ("data:<mime>;base64,<payload>")
func DecodeDataURL(s string) (*Image, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mimeType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}
	return &Image{Data: data, MIMEType: mimeType}, nil
}
