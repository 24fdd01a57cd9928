// Package media stores product images and returns the URL they are served from.
package media

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// ErrNotFound reports a key with no stored object.
var ErrNotFound = errors.New("media: not found")

// Store uploads, downloads and deletes images by key.
type Store interface {
	// Upload stores data under key and returns its public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// KeyFor derives the object key of a product image from the product name.
func KeyFor(productName string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(productName)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "item"
	}
	return "products/" + slug + ".jpg"
}
