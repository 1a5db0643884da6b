package vision

import "context"

// Annotation is the parsed outcome of one document-text-detection call.
// It only drives the state transition; nothing downstream scores it.
type Annotation struct {
	Text         string
	TextDetected bool
	// Raw is the service response as JSON, kept for archival.
	Raw []byte
}

// Client port for the external OCR/vision service.
type Client interface {
	DetectDocumentText(ctx context.Context, imageURI string) (*Annotation, error)
}

// ArchiveStore port for persisting raw annotation payloads.
type ArchiveStore interface {
	Archive(ctx context.Context, key string, data []byte) (string, error)
}
