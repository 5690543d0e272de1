package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vidshare/internal/domain"
)

type stubVideosStore struct {
	t *testing.T

	createVideoFunc      func(context.Context, domain.NewVideo) (domain.Video, error)
	getVideoFunc         func(context.Context, string) (domain.Video, error)
	recordShareViewFunc  func(context.Context, string) (domain.Video, error)
	listVideosFunc       func(context.Context, int, int) ([]domain.Video, int, error)
	listVideosByUserFunc func(context.Context, string, int, int) ([]domain.Video, int, error)
	updateVideoFunc      func(context.Context, string, domain.VideoPatch) (domain.Video, error)
	deleteVideoFunc      func(context.Context, string) error
}

func (s *stubVideosStore) CreateVideo(ctx context.Context, v domain.NewVideo) (domain.Video, error) {
	if s.createVideoFunc != nil {
		return s.createVideoFunc(ctx, v)
	}
	s.t.Fatalf("CreateVideo called unexpectedly")
	return domain.Video{}, errors.New("unexpected call")
}

func (s *stubVideosStore) GetVideo(ctx context.Context, id string) (domain.Video, error) {
	if s.getVideoFunc != nil {
		return s.getVideoFunc(ctx, id)
	}
	s.t.Fatalf("GetVideo called unexpectedly")
	return domain.Video{}, errors.New("unexpected call")
}

func (s *stubVideosStore) RecordShareView(ctx context.Context, shareLink string) (domain.Video, error) {
	if s.recordShareViewFunc != nil {
		return s.recordShareViewFunc(ctx, shareLink)
	}
	s.t.Fatalf("RecordShareView called unexpectedly")
	return domain.Video{}, errors.New("unexpected call")
}

func (s *stubVideosStore) ListVideos(ctx context.Context, limit, offset int) ([]domain.Video, int, error) {
	if s.listVideosFunc != nil {
		return s.listVideosFunc(ctx, limit, offset)
	}
	s.t.Fatalf("ListVideos called unexpectedly")
	return nil, 0, errors.New("unexpected call")
}

func (s *stubVideosStore) ListVideosByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Video, int, error) {
	if s.listVideosByUserFunc != nil {
		return s.listVideosByUserFunc(ctx, userID, limit, offset)
	}
	s.t.Fatalf("ListVideosByUser called unexpectedly")
	return nil, 0, errors.New("unexpected call")
}

func (s *stubVideosStore) UpdateVideo(ctx context.Context, id string, patch domain.VideoPatch) (domain.Video, error) {
	if s.updateVideoFunc != nil {
		return s.updateVideoFunc(ctx, id, patch)
	}
	s.t.Fatalf("UpdateVideo called unexpectedly")
	return domain.Video{}, errors.New("unexpected call")
}

func (s *stubVideosStore) DeleteVideo(ctx context.Context, id string) error {
	if s.deleteVideoFunc != nil {
		return s.deleteVideoFunc(ctx, id)
	}
	s.t.Fatalf("DeleteVideo called unexpectedly")
	return errors.New("unexpected call")
}

type memBlobs struct {
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (b *memBlobs) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	b.objects[key] = data
	return int64(len(data)), nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	if _, ok := b.objects[key]; !ok {
		return domain.ErrNotFound
	}
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) URL(key string) string { return "http://files.test/" + key }

func ownedVideo(id, owner string) domain.Video {
	return domain.Video{
		ID:         id,
		Title:      "clip",
		Locator:    "abc123_clip.mp4",
		ShareLink:  "share-" + id,
		UploadedBy: owner,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestVideoServiceUpload(t *testing.T) {
	blobs := newMemBlobs()
	var created domain.NewVideo
	svc := &VideoService{
		Blobs: blobs,
		Videos: &stubVideosStore{t: t, createVideoFunc: func(_ context.Context, v domain.NewVideo) (domain.Video, error) {
			created = v
			return domain.Video{ID: "video-1", Title: v.Title, Locator: v.Locator, Size: v.Size, ShareLink: v.ShareLink, UploadedBy: v.UploadedBy}, nil
		}},
	}

	v, err := svc.Upload(context.Background(), "user-1", UploadInput{
		Title:    "  My clip ",
		Filename: "../Holiday Trip.MP4",
		Body:     strings.NewReader("not really a video"),
	})
	require.NoError(t, err)
	require.Equal(t, "video-1", v.ID)
	require.Equal(t, "My clip", created.Title)
	require.Equal(t, "user-1", created.UploadedBy)
	require.Equal(t, int64(len("not really a video")), created.Size)
	require.Regexp(t, `^[0-9a-f]{6}_Holiday_Trip\.MP4$`, created.Locator)
	require.Len(t, created.ShareLink, 36)
	require.Contains(t, blobs.objects, created.Locator)
	require.Equal(t, "http://files.test/"+created.Locator, svc.URL(v))
}

func TestVideoServiceUploadRejections(t *testing.T) {
	svc := &VideoService{Blobs: newMemBlobs(), Videos: &stubVideosStore{t: t}}
	ctx := context.Background()

	_, err := svc.Upload(ctx, "", UploadInput{Title: "x", Filename: "a.mp4", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Upload(ctx, "user-1", UploadInput{Filename: "a.mp4", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Upload(ctx, "user-1", UploadInput{Title: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Upload(ctx, "user-1", UploadInput{Title: strings.Repeat("t", MaxVideoTitleLength+1), Filename: "a.mp4", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, domain.ErrValidation)

	for _, name := range []string{"a.exe", "a.webm", "noext"} {
		_, err = svc.Upload(ctx, "user-1", UploadInput{Title: "x", Filename: name, Body: strings.NewReader("x")})
		require.ErrorIs(t, err, domain.ErrUnsupportedMedia, name)
	}
}

func TestVideoServiceUploadRemovesFileWhenInsertFails(t *testing.T) {
	blobs := newMemBlobs()
	svc := &VideoService{
		Blobs: blobs,
		Videos: &stubVideosStore{t: t, createVideoFunc: func(context.Context, domain.NewVideo) (domain.Video, error) {
			return domain.Video{}, errors.New("db down")
		}},
	}

	_, err := svc.Upload(context.Background(), "user-1", UploadInput{Title: "x", Filename: "a.mov", Body: bytes.NewReader([]byte("x"))})
	require.Error(t, err)
	require.Empty(t, blobs.objects)
}

func TestVideoServiceUpdateOwnership(t *testing.T) {
	title := "renamed"
	newStore := func(t *testing.T) *stubVideosStore {
		return &stubVideosStore{
			t: t,
			getVideoFunc: func(_ context.Context, id string) (domain.Video, error) {
				if id != "video-1" {
					return domain.Video{}, domain.ErrNotFound
				}
				return ownedVideo(id, "owner"), nil
			},
		}
	}

	t.Run("owner", func(t *testing.T) {
		store := newStore(t)
		store.updateVideoFunc = func(_ context.Context, id string, patch domain.VideoPatch) (domain.Video, error) {
			v := ownedVideo(id, "owner")
			v.Title = *patch.Title
			return v, nil
		}
		svc := &VideoService{Videos: store}
		v, err := svc.Update(context.Background(), "owner", "video-1", domain.VideoPatch{Title: &title})
		require.NoError(t, err)
		require.Equal(t, "renamed", v.Title)
	})

	t.Run("stranger", func(t *testing.T) {
		svc := &VideoService{Videos: newStore(t)}
		_, err := svc.Update(context.Background(), "stranger", "video-1", domain.VideoPatch{Title: &title})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("anonymous", func(t *testing.T) {
		svc := &VideoService{Videos: newStore(t)}
		_, err := svc.Update(context.Background(), "", "video-1", domain.VideoPatch{Title: &title})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("missing before ownership", func(t *testing.T) {
		svc := &VideoService{Videos: newStore(t)}
		_, err := svc.Update(context.Background(), "stranger", "video-2", domain.VideoPatch{Title: &title})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty title", func(t *testing.T) {
		svc := &VideoService{Videos: newStore(t)}
		empty := " "
		_, err := svc.Update(context.Background(), "owner", "video-1", domain.VideoPatch{Title: &empty})
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("empty patch", func(t *testing.T) {
		svc := &VideoService{Videos: newStore(t)}
		v, err := svc.Update(context.Background(), "owner", "video-1", domain.VideoPatch{})
		require.NoError(t, err)
		require.Equal(t, "clip", v.Title)
	})
}

func TestVideoServiceDelete(t *testing.T) {
	blobs := newMemBlobs()
	blobs.objects["abc123_clip.mp4"] = []byte("x")
	deleted := ""
	store := &stubVideosStore{
		t: t,
		getVideoFunc: func(_ context.Context, id string) (domain.Video, error) {
			if id != "video-1" {
				return domain.Video{}, domain.ErrNotFound
			}
			return ownedVideo(id, "owner"), nil
		},
		deleteVideoFunc: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := &VideoService{Videos: store, Blobs: blobs}
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, "owner", "video-9"), domain.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "stranger", "video-1"), domain.ErrForbidden)
	require.Empty(t, deleted)

	require.NoError(t, svc.Delete(ctx, "owner", "video-1"))
	require.Equal(t, "video-1", deleted)
	require.Empty(t, blobs.objects)
}

func TestVideoServiceListPaging(t *testing.T) {
	store := &stubVideosStore{
		t: t,
		listVideosFunc: func(_ context.Context, limit, offset int) ([]domain.Video, int, error) {
			require.Equal(t, PublicFeedPageSize, limit)
			require.Equal(t, 2, offset)
			return []domain.Video{ownedVideo("video-3", "owner")}, 3, nil
		},
		listVideosByUserFunc: func(_ context.Context, userID string, limit, offset int) ([]domain.Video, int, error) {
			require.Equal(t, "owner", userID)
			require.Equal(t, DefaultUserVideosPageSize, limit)
			require.Zero(t, offset)
			return nil, 0, nil
		},
	}
	svc := &VideoService{Videos: store}

	page, err := svc.List(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.False(t, page.HasNext())
	require.True(t, page.HasPrevious())

	byUser, err := svc.ListByUser(context.Background(), "owner", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, byUser.Page)
	require.NotNil(t, byUser.Videos)
	require.False(t, byUser.HasNext())
	require.False(t, byUser.HasPrevious())
}

func TestVideoServiceListPastLastPage(t *testing.T) {
	store := &stubVideosStore{
		t: t,
		listVideosByUserFunc: func(_ context.Context, _ string, limit, offset int) ([]domain.Video, int, error) {
			require.Equal(t, 20, limit)
			require.GreaterOrEqual(t, offset, 0)
			return nil, 3, nil
		},
	}
	svc := &VideoService{Videos: store}

	for _, p := range []int{math.MaxInt, math.MaxInt/20 + 2, 461168601842738792} {
		page, err := svc.ListByUser(context.Background(), "owner", p, 20)
		require.NoError(t, err)
		require.Empty(t, page.Videos)
		require.Equal(t, 3, page.Total)
		require.False(t, page.HasNext())
		require.True(t, page.HasPrevious())
	}
}

func TestVideoServiceGetByShareLink(t *testing.T) {
	views := 0
	store := &stubVideosStore{t: t, recordShareViewFunc: func(_ context.Context, link string) (domain.Video, error) {
		if link != "share-video-1" {
			return domain.Video{}, domain.ErrNotFound
		}
		views++
		v := ownedVideo("video-1", "owner")
		v.Views = views
		return v, nil
	}}
	svc := &VideoService{Videos: store}

	v, err := svc.GetByShareLink(context.Background(), "share-video-1")
	require.NoError(t, err)
	require.Equal(t, 1, v.Views)
	v, err = svc.GetByShareLink(context.Background(), "share-video-1")
	require.NoError(t, err)
	require.Equal(t, 2, v.Views)

	_, err = svc.GetByShareLink(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetByShareLink(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"clip.mp4":            "clip.mp4",
		"My Clip (1).mov":     "My_Clip_1.mov",
		"../../etc/passwd":    "passwd",
		`C:\videos\trip.mkv`:  "trip.mkv",
		".hidden.avi":         "hidden.avi",
		"видео.mp4":           "mp4",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeFilename(in), in)
	}
}
