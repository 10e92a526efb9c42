package generator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var dataURLPrefix = regexp.MustCompile(`^data:(image/\w+);base64,`)

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeImage accepts either a data URL or bare base64 and returns the image.
func DecodeImage(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, errors.New("image data is empty")
	}
	mime := "image/png"
	if m := dataURLPrefix.FindStringSubmatch(s); m != nil {
		mime = m[1]
		s = s[len(m[0]):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Image{}, fmt.Errorf("decode base64 image: %w", err)
	}
	if len(data) == 0 {
		return Image{}, errors.New("image data is empty")
	}
	return Image{Data: data, MimeType: mime}, nil
}

// CleanRewrite trims model output and strips one layer of matching
// enclosing double or single quotes.
func CleanRewrite(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return s
}
