package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

const visionTimeout = 60 * time.Second

type visionOCR struct {
	client *vision.ImageAnnotatorClient
	hints  []string
}

// NewVision uses Google Cloud Vision document text detection. An empty
// credentials path falls back to application default credentials.
func NewVision(ctx context.Context, credentials, languages string) (OCR, error) {
	opts := []option.ClientOption{}
	if credentials = strings.TrimSpace(credentials); credentials != "" {
		if strings.HasPrefix(credentials, "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
		} else {
			opts = append(opts, option.WithCredentialsFile(credentials))
		}
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionOCR{client: client, hints: languageHints(languages)}, nil
}

func (v *visionOCR) Name() string {
	return "vision"
}

func (v *visionOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()
	req := &visionpb.AnnotateImageRequest{
		Image:        &visionpb.Image{Content: image},
		Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		ImageContext: &visionpb.ImageContext{LanguageHints: v.hints},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation == nil {
		return "", nil
	}
	return strings.TrimSpace(r0.FullTextAnnotation.Text), nil
}

// languageHints maps tesseract style codes ("rus+eng") to BCP-47 hints.
func languageHints(languages string) []string {
	known := map[string]string{"rus": "ru", "eng": "en", "ukr": "uk", "deu": "de", "fra": "fr"}
	var hints []string
	for _, part := range strings.Split(languages, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if code, ok := known[part]; ok {
			part = code
		}
		hints = append(hints, part)
	}
	return hints
}
