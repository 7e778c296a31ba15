// Package qrcode renders the scannable retrieval code of a document: a QR
// code of the document's retrieval URL.
package qrcode

import (
	"errors"
	"fmt"
	"strings"

	qr "github.com/skip2/go-qrcode"
)

// ErrEmptyID is returned for a blank document id.
var ErrEmptyID = errors.New("empty document id")

// ParseLevel maps a configured error correction level to the encoder's.
func ParseLevel(s string) (qr.RecoveryLevel, error) {
	switch strings.ToLower(s) {
	case "low":
		return qr.Low, nil
	case "", "medium":
		return qr.Medium, nil
	case "high":
		return qr.High, nil
	case "highest":
		return qr.Highest, nil
	default:
		return 0, fmt.Errorf("unknown error correction level %q", s)
	}
}

// Generator produces retrieval codes.
type Generator struct {
	BaseURL string
	// Size is the PNG side in pixels.
	Size  int
	Level qr.RecoveryLevel
}

// New creates a generator from configuration values.
func New(baseURL string, size int, level string) (*Generator, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	return &Generator{BaseURL: baseURL, Size: size, Level: lvl}, nil
}

// URL returns the payload encoded for id.
func (g *Generator) URL(id string) string {
	return g.BaseURL + id
}

// PNG renders the code for id.
func (g *Generator) PNG(id string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyID
	}
	data, err := qr.Encode(g.URL(id), g.Level, g.Size)
	if err != nil {
		return nil, fmt.Errorf("encode retrieval code: %w", err)
	}
	return data, nil
}
