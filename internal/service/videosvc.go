package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
)

const (
	// PublicFeedPageSize is the fixed page size of the public feed.
	PublicFeedPageSize = 1

	DefaultUserVideosPageSize = 20
	MaxUserVideosPageSize     = 100

	MaxVideoTitleLength = 50
)

var allowedVideoExtensions = map[string]bool{
	"mp4": true,
	"avi": true,
	"mkv": true,
	"mov": true,
}

type VideosStore interface {
	CreateVideo(ctx context.Context, v domain.NewVideo) (domain.Video, error)
	GetVideo(ctx context.Context, id string) (domain.Video, error)
	// RecordShareView increments the view count of the video behind
	// shareLink and returns it with the new count.
	RecordShareView(ctx context.Context, shareLink string) (domain.Video, error)
	ListVideos(ctx context.Context, limit, offset int) ([]domain.Video, int, error)
	ListVideosByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Video, int, error)
	UpdateVideo(ctx context.Context, id string, patch domain.VideoPatch) (domain.Video, error)
	DeleteVideo(ctx context.Context, id string) error
}

// BlobStore holds uploaded video files under opaque keys.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (int64, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

type UploadInput struct {
	Title       string
	Description string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type VideoService struct {
	Videos VideosStore
	Blobs  BlobStore
	Logger *slog.Logger
}

func (s *VideoService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// URL is the client facing location of v's file.
func (s *VideoService) URL(v domain.Video) string {
	if s.Blobs == nil {
		return v.Locator
	}
	return s.Blobs.URL(v.Locator)
}

// Upload stores the file and records a video owned by callerID.
func (s *VideoService) Upload(ctx context.Context, callerID string, in UploadInput) (domain.Video, error) {
	if callerID == "" {
		return domain.Video{}, domain.ErrUnauthorized
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || in.Body == nil || in.Filename == "" {
		return domain.Video{}, domain.NewValidationMessage("Missing required fields: title and video file", nil)
	}
	if utf8.RuneCountInString(title) > MaxVideoTitleLength {
		return domain.Video{}, domain.NewValidationMessage(
			fmt.Sprintf("Title must be %d characters or less", MaxVideoTitleLength),
			map[string]string{"title": "too long"})
	}
	if !AllowedVideoFile(in.Filename) {
		return domain.Video{}, domain.ErrUnsupportedMedia
	}

	key, err := newBlobKey(in.Filename)
	if err != nil {
		return domain.Video{}, err
	}

	written, err := s.Blobs.Put(ctx, key, in.Body, in.Size, in.ContentType)
	if err != nil {
		return domain.Video{}, fmt.Errorf("store video file: %w", err)
	}

	v, err := s.Videos.CreateVideo(ctx, domain.NewVideo{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Locator:     key,
		Size:        written,
		ShareLink:   uuid.NewString(),
		UploadedBy:  callerID,
	})
	if err != nil {
		s.removeBlob(ctx, key)
		return domain.Video{}, err
	}
	return v, nil
}

func (s *VideoService) List(ctx context.Context, page int) (domain.VideoPage, error) {
	return s.page(ctx, page, PublicFeedPageSize, func(limit, offset int) ([]domain.Video, int, error) {
		return s.Videos.ListVideos(ctx, limit, offset)
	})
}

func (s *VideoService) ListByUser(ctx context.Context, userID string, page, perPage int) (domain.VideoPage, error) {
	if perPage <= 0 {
		perPage = DefaultUserVideosPageSize
	}
	if perPage > MaxUserVideosPageSize {
		perPage = MaxUserVideosPageSize
	}
	return s.page(ctx, page, perPage, func(limit, offset int) ([]domain.Video, int, error) {
		return s.Videos.ListVideosByUser(ctx, userID, limit, offset)
	})
}

func (s *VideoService) page(ctx context.Context, page, perPage int, list func(limit, offset int) ([]domain.Video, int, error)) (domain.VideoPage, error) {
	if page < 1 {
		page = 1
	}
	// Pages past the representable offset are empty, not a wrapped-around offset.
	offset := math.MaxInt
	if page-1 <= math.MaxInt/perPage {
		offset = (page - 1) * perPage
	}
	videos, total, err := list(perPage, offset)
	if err != nil {
		return domain.VideoPage{}, err
	}
	if videos == nil {
		videos = []domain.Video{}
	}
	return domain.VideoPage{Videos: videos, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *VideoService) Get(ctx context.Context, id string) (domain.Video, error) {
	return s.Videos.GetVideo(ctx, id)
}

// GetByShareLink counts a view on every successful lookup.
func (s *VideoService) GetByShareLink(ctx context.Context, shareLink string) (domain.Video, error) {
	if strings.TrimSpace(shareLink) == "" {
		return domain.Video{}, domain.ErrNotFound
	}
	return s.Videos.RecordShareView(ctx, shareLink)
}

// Update changes title and description only. A missing video is reported
// before any ownership check.
func (s *VideoService) Update(ctx context.Context, callerID, videoID string, patch domain.VideoPatch) (domain.Video, error) {
	v, err := s.Videos.GetVideo(ctx, videoID)
	if err != nil {
		return domain.Video{}, err
	}
	if err := auth.AuthorizeMutation(callerID, v.UploadedBy); err != nil {
		return domain.Video{}, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.Video{}, domain.NewValidationMessage("Title cannot be empty", map[string]string{"title": "required"})
		}
		if utf8.RuneCountInString(title) > MaxVideoTitleLength {
			return domain.Video{}, domain.NewValidationMessage(
				fmt.Sprintf("Title must be %d characters or less", MaxVideoTitleLength),
				map[string]string{"title": "too long"})
		}
		patch.Title = &title
	}
	if patch.Title == nil && patch.Description == nil {
		return v, nil
	}
	return s.Videos.UpdateVideo(ctx, videoID, patch)
}

func (s *VideoService) Delete(ctx context.Context, callerID, videoID string) error {
	v, err := s.Videos.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if err := auth.AuthorizeMutation(callerID, v.UploadedBy); err != nil {
		return err
	}
	if err := s.Videos.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	s.removeBlob(ctx, v.Locator)
	return nil
}

func (s *VideoService) removeBlob(ctx context.Context, key string) {
	if s.Blobs == nil || key == "" {
		return
	}
	if err := s.Blobs.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger().Error("delete video file failed", "key", key, "err", err)
	}
}

// AllowedVideoFile reports whether filename carries one of the accepted
// video extensions.
func AllowedVideoFile(filename string) bool {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	return allowedVideoExtensions[strings.ToLower(ext)]
}

// SanitizeFilename reduces name to a safe base name made of ASCII letters,
// digits, dots, dashes and underscores.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "._")
}

func newBlobKey(filename string) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read key prefix: %w", err)
	}
	name := SanitizeFilename(filename)
	if name == "" || !AllowedVideoFile(name) {
		name = "video" + strings.ToLower(path.Ext(filename))
	}
	return hex.EncodeToString(buf) + "_" + name, nil
}
