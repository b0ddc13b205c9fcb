package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type AnnotatorConfig struct {
	Credentials  string
	Images       bool
	Videos       bool
	LanguageCode string
	MaxLabels    int
}

// Annotator describes media objects that live in the bucket: labels and
// printed text for images, speech and on-screen text for videos. URLs that
// do not belong to the bucket are skipped.
type Annotator struct {
	log        *logger.Logger
	bucket     *BucketService
	images     *vision.ImageAnnotatorClient
	videos     *videointelligence.Client
	language   string
	maxLabels  int32
	maxRetries int
}

func NewAnnotator(ctx context.Context, log *logger.Logger, bucket *BucketService, cfg AnnotatorConfig) (*Annotator, error) {
	if bucket == nil {
		return nil, fmt.Errorf("annotator requires a GCS bucket")
	}
	a := &Annotator{
		log:        log.With("service", "gcp.Annotator"),
		bucket:     bucket,
		language:   strings.TrimSpace(cfg.LanguageCode),
		maxLabels:  int32(cfg.MaxLabels),
		maxRetries: 3,
	}
	if a.language == "" {
		a.language = "en-US"
	}
	if a.maxLabels <= 0 {
		a.maxLabels = 8
	}
	opts := ClientOptions(cfg.Credentials)
	if cfg.Images {
		c, err := vision.NewImageAnnotatorClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("vision client: %w", err)
		}
		a.images = c
	}
	if cfg.Videos {
		c, err := videointelligence.NewClient(ctx, opts...)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("videointelligence client: %w", err)
		}
		a.videos = c
	}
	return a, nil
}

func (a *Annotator) Close() error {
	if a == nil {
		return nil
	}
	if a.images != nil {
		_ = a.images.Close()
	}
	if a.videos != nil {
		return a.videos.Close()
	}
	return nil
}

// DescribeImage returns alt text for an image stored in the bucket, or ""
// when the image cannot be annotated here.
func (a *Annotator) DescribeImage(ctx context.Context, mediaURL string) (string, error) {
	if a == nil || a.images == nil {
		return "", nil
	}
	uri, ok := a.bucket.ObjectURI(mediaURL)
	if !ok {
		return "", nil
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Source: &visionpb.ImageSource{GcsImageUri: uri}},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: a.maxLabels},
				{Type: visionpb.Feature_TEXT_DETECTION},
			},
		}},
	}
	var resp *visionpb.BatchAnnotateImagesResponse
	err := a.retry(ctx, func() error {
		var err error
		resp, err = a.images.BatchAnnotateImages(ctx, req)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.GetResponses()) == 0 {
		return "", nil
	}
	r := resp.GetResponses()[0]
	if msg := r.GetError().GetMessage(); msg != "" {
		return "", fmt.Errorf("vision annotate %s: %s", uri, msg)
	}
	return imageDescription(r), nil
}

// TranscribeVideo returns spoken and on-screen text of a video stored in the
// bucket, or "" when the video cannot be annotated here.
func (a *Annotator) TranscribeVideo(ctx context.Context, mediaURL string) (string, error) {
	if a == nil || a.videos == nil {
		return "", nil
	}
	uri, ok := a.bucket.ObjectURI(mediaURL)
	if !ok {
		return "", nil
	}
	req := &vipb.AnnotateVideoRequest{
		InputUri: uri,
		Features: []vipb.Feature{vipb.Feature_SPEECH_TRANSCRIPTION, vipb.Feature_TEXT_DETECTION},
		VideoContext: &vipb.VideoContext{
			SpeechTranscriptionConfig: &vipb.SpeechTranscriptionConfig{
				LanguageCode:               a.language,
				EnableAutomaticPunctuation: true,
			},
			TextDetectionConfig: &vipb.TextDetectionConfig{},
		},
	}
	var resp *vipb.AnnotateVideoResponse
	err := a.retry(ctx, func() error {
		op, err := a.videos.AnnotateVideo(ctx, req)
		if err != nil {
			return err
		}
		resp, err = op.Wait(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}
	if resp == nil || len(resp.GetAnnotationResults()) == 0 {
		return "", nil
	}
	return videoTranscript(resp.GetAnnotationResults()[0]), nil
}

func (a *Annotator) retry(ctx context.Context, fn func() error) error {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn()
		if last == nil {
			return nil
		}
		switch status.Code(last) {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		default:
			return last
		}
		if attempt == a.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return last
}

func imageDescription(r *visionpb.AnnotateImageResponse) string {
	labels := make([]string, 0, len(r.GetLabelAnnotations()))
	for _, l := range r.GetLabelAnnotations() {
		if d := strings.TrimSpace(l.GetDescription()); d != "" {
			labels = append(labels, strings.ToLower(d))
		}
	}
	text := ""
	// The first text annotation holds the full detected text.
	if ta := r.GetTextAnnotations(); len(ta) > 0 {
		text = strings.Join(strings.Fields(ta[0].GetDescription()), " ")
	}
	var parts []string
	if len(labels) > 0 {
		parts = append(parts, "Shows "+strings.Join(labels, ", "))
	}
	if text != "" {
		parts = append(parts, "Text: "+text)
	}
	return strings.Join(parts, ". ")
}

func videoTranscript(ar *vipb.VideoAnnotationResults) string {
	var lines []string
	for _, tr := range ar.GetSpeechTranscriptions() {
		alts := tr.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if s := strings.TrimSpace(alts[0].GetTranscript()); s != "" {
			lines = append(lines, s)
		}
	}
	seen := map[string]bool{}
	for _, ta := range ar.GetTextAnnotations() {
		s := strings.TrimSpace(ta.GetText())
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		lines = append(lines, "[on_screen] "+s)
	}
	return strings.Join(lines, "\n")
}
