package application

import "context"

// PhotoStore uploads a photo and returns the URL it can be read from
type PhotoStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
