package media

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/platform/thumbnail"
)

// ThumbnailMaker renders title cards for pending videos.
type ThumbnailMaker struct {
	renderer *thumbnail.Renderer
	store    MediaStore
}

func NewThumbnailMaker(store MediaStore) (*ThumbnailMaker, error) {
	if store == nil {
		return nil, fmt.Errorf("thumbnail maker requires a media store")
	}
	r, err := thumbnail.NewRenderer(640, 360)
	if err != nil {
		return nil, err
	}
	return &ThumbnailMaker{renderer: r, store: store}, nil
}

func (t *ThumbnailMaker) TitleCard(ctx context.Context, moduleID uuid.UUID, title string) (string, error) {
	png, err := t.renderer.TitleCard(title, "Video in progress")
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("thumbnails/%s-%d.png", moduleID, time.Now().UnixNano())
	return t.store.Put(ctx, key, "image/png", png)
}
