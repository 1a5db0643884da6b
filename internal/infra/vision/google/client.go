package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	domain "github.com/inkwise/inkwise-backend/internal/domain/vision"
)

const featureDocumentText = "DOCUMENT_TEXT_DETECTION"

// Client wraps the Vision v1 images.annotate endpoint.
type Client struct {
	svc *vision.Service
}

// New builds the client. The API key is required unless explicit client
// options (e.g. a custom HTTP client in tests) are supplied.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" && len(opts) == 0 {
		return nil, errors.New("vision api key is not configured")
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init vision service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// DetectDocumentText requests a single DOCUMENT_TEXT_DETECTION feature
// against the image URI. A transport failure and a service-level error
// object are both failures; the transport can succeed while the
// operation logically fails.
func (c *Client) DetectDocumentText(ctx context.Context, imageURI string) (*domain.Annotation, error) {
	batch := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Source: &vision.ImageSource{ImageUri: imageURI}},
			Features: []*vision.Feature{{Type: featureDocumentText, MaxResults: 1}},
		}},
	}

	resp, err := c.svc.Images.Annotate(batch).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("annotate %s: %w", imageURI, err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty batch response", domain.ErrAnnotation)
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("%w: %s (code %d)", domain.ErrAnnotation, r.Error.Message, r.Error.Code)
	}

	ann := &domain.Annotation{}
	if r.FullTextAnnotation != nil {
		ann.Text = r.FullTextAnnotation.Text
	}
	if ann.Text == "" && len(r.TextAnnotations) > 0 {
		ann.Text = r.TextAnnotations[0].Description
	}
	ann.TextDetected = r.FullTextAnnotation != nil || len(r.TextAnnotations) > 0

	if raw, merr := json.Marshal(r); merr == nil {
		ann.Raw = raw
	}
	return ann, nil
}
