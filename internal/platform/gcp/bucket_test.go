package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicURL(t *testing.T) {
	cases := []struct {
		name                string
		cdn, base, emulator string
		want                string
	}{
		{name: "default", want: "https://storage.googleapis.com/media/videos/a.mp4"},
		{name: "cdn", cdn: "cdn.example.com", want: "https://cdn.example.com/videos/a.mp4"},
		{name: "base", base: "http://localhost:9000", want: "http://localhost:9000/media/videos/a.mp4"},
		{name: "emulator", emulator: "http://localhost:4443", want: "http://localhost:4443/storage/v1/b/media/o/videos%2Fa.mp4?alt=media"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, publicURL("media", "videos/a.mp4", tc.cdn, tc.base, tc.emulator))
		})
	}
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentTypeForKey("x/y.MP4"))
	assert.Equal(t, "image/png", ContentTypeForKey("thumb.png?v=1"))
	assert.Equal(t, "", ContentTypeForKey("noext"))
}

func TestObjectURIInvertsPublicURL(t *testing.T) {
	cases := []struct {
		name                string
		cdn, base, emulator string
	}{
		{name: "default"},
		{name: "cdn", cdn: "cdn.example.com"},
		{name: "base", base: "http://localhost:9000"},
		{name: "emulator", emulator: "http://localhost:4443"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := publicURL("canvas-media", "media/videos/a.mp4", tc.cdn, tc.base, tc.emulator)
			got, ok := objectURI("canvas-media", u, tc.cdn, tc.base, tc.emulator)
			assert.True(t, ok)
			assert.Equal(t, "gs://canvas-media/media/videos/a.mp4", got)
		})
	}

	_, ok := objectURI("canvas-media", "https://cdn.openai.com/v.mp4", "", "", "")
	assert.False(t, ok)
	_, ok = objectURI("canvas-media", "", "", "", "")
	assert.False(t, ok)
}
