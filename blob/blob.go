// Package blob uploads report media and returns durable URLs.
package blob

import "context"

//go:generate mockgen -source=blob.go -destination=../mocks/mock_blob.go -package=mocks

// Store accepts a payload and returns a URL that stays resolvable.
type Store interface {
	Put(ctx context.Context, pathHint string, data []byte, contentType string) (string, error)
}
