package ai

import "context"

type Client interface {
	// Coach produces coaching feedback for the handwriting sample at the
	// given image URL.
	Coach(ctx context.Context, imageURL string) (string, error)
}
