// Package qrcode renders the QR codes that point at a user's public link
// page, as raw PNG bytes or as a data URI for direct embedding.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when the content is empty or whitespace.
	ErrEmptyContent = errors.New("qrcode: content cannot be empty")
	// ErrFailedToGenerate is returned when the underlying encoder fails.
	ErrFailedToGenerate = errors.New("qrcode: failed to generate")
	// ErrInvalidColor is returned for an unparsable hex color.
	ErrInvalidColor = errors.New("qrcode: invalid color")
)

// defaultSize is the edge length in pixels used when no size is given.
const defaultSize = 256

// Style holds the customization options available to plans with the
// appearance capability. The zero value renders a plain black-on-white code.
type Style struct {
	Foreground string // hex color like "#1a1a1a"
	Background string // hex color
}

// Generate renders content as a PNG QR code.
func Generate(content string, size int) ([]byte, error) {
	return GenerateStyled(content, size, Style{})
}

// GenerateStyled renders content as a PNG QR code with custom colors.
func GenerateStyled(content string, size int, style Style) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}

	qr, err := skipqrcode.New(content, skipqrcode.Medium)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}

	if style.Foreground != "" {
		c, err := parseHexColor(style.Foreground)
		if err != nil {
			return nil, err
		}
		qr.ForegroundColor = c
	}
	if style.Background != "" {
		c, err := parseHexColor(style.Background)
		if err != nil {
			return nil, err
		}
		qr.BackgroundColor = c
	}

	png, err := qr.PNG(size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return png, nil
}

// GenerateBase64Image renders content as a data URI suitable for an
// <img src="..."> attribute.
func GenerateBase64Image(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(png)), nil
}

func parseHexColor(s string) (color.Color, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
