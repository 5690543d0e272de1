package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
	"vidshare/internal/service"
)

// Multipart parts above this size spill to temp files.
const multipartMemoryBytes = 32 << 20

type videoResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoURL    string    `json:"video_url"`
	VideoSize   int64     `json:"video_size"`
	ShareLink   string    `json:"share_link"`
	UploadedBy  string    `json:"uploaded_by"`
	Shares      int       `json:"shares"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type videoEnvelope struct {
	Video videoResponse `json:"video"`
}

type videoPageResponse struct {
	Videos        []videoResponse `json:"videos"`
	TotalVideos   int             `json:"total_videos"`
	CurrentPage   int             `json:"current_page"`
	VideosPerPage int             `json:"videos_per_page"`
	HasNext       bool            `json:"has_next"`
	HasPrevious   bool            `json:"has_previous"`
}

func (a *api) toVideoResponse(v domain.Video) videoResponse {
	return videoResponse{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		VideoURL:    a.videoSvc.URL(v),
		VideoSize:   v.Size,
		ShareLink:   v.ShareLink,
		UploadedBy:  v.UploadedBy,
		Shares:      v.Shares,
		Views:       v.Views,
		CreatedAt:   v.CreatedAt.UTC(),
		UpdatedAt:   v.UpdatedAt.UTC(),
	}
}

func (a *api) toVideoPageResponse(p domain.VideoPage) videoPageResponse {
	out := videoPageResponse{
		Videos:        make([]videoResponse, 0, len(p.Videos)),
		TotalVideos:   p.Total,
		CurrentPage:   p.Page,
		VideosPerPage: p.PerPage,
		HasNext:       p.HasNext(),
		HasPrevious:   p.HasPrevious(),
	}
	for _, v := range p.Videos {
		out.Videos = append(out.Videos, a.toVideoResponse(v))
	}
	return out
}

func (a *api) handleVideoCreate(w http.ResponseWriter, r *http.Request) {
	callerID, _ := CurrentUserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := service.UploadInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		in.Body = file
		in.Filename = header.Filename
		in.Size = header.Size
		in.ContentType = header.Header.Get("Content-Type")
	case errors.Is(err, http.ErrMissingFile):
	default:
		WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	v, err := a.videoSvc.Upload(r.Context(), callerID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, "Video created successfully", a.toVideoResponse(v))
}

func (a *api) handleVideoList(w http.ResponseWriter, r *http.Request) {
	page, err := a.videoSvc.List(r.Context(), queryInt(r, "page", 1))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Videos retrieved successfully", a.toVideoPageResponse(page))
}

func (a *api) handleVideoListByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	page, err := a.videoSvc.ListByUser(r.Context(), userID, queryInt(r, "page", 1), queryInt(r, "size", service.DefaultUserVideosPageSize))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, fmt.Sprintf("Videos uploaded by user %s retrieved successfully", userID), a.toVideoPageResponse(page))
}

func (a *api) handleVideoGet(w http.ResponseWriter, r *http.Request) {
	v, err := a.videoSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, withMessage(err, domain.ErrNotFound, "Video not found"))
		return
	}
	WriteSuccess(w, http.StatusOK, "Video retrieved successfully", videoEnvelope{Video: a.toVideoResponse(v)})
}

func (a *api) handleVideoShare(w http.ResponseWriter, r *http.Request) {
	v, err := a.videoSvc.GetByShareLink(r.Context(), r.PathValue("share_id"))
	if err != nil {
		a.fail(w, r, withMessage(err, domain.ErrNotFound, "Video not found"))
		return
	}
	WriteSuccess(w, http.StatusOK, "Video retrieved successfully", videoEnvelope{Video: a.toVideoResponse(v)})
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (a *api) handleVideoUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateVideoRequest
	decodeErr := decodeJSON(w, r, &req)

	// A bad body is reported only after the video is found and owned.
	callerID, _ := CurrentUserID(r.Context())
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		existing, err := a.videoSvc.Get(r.Context(), r.PathValue("id"))
		if err == nil {
			err = auth.AuthorizeMutation(callerID, existing.UploadedBy)
		}
		if err != nil {
			err = withMessage(err, domain.ErrNotFound, "Video not found")
			err = withMessage(err, domain.ErrForbidden, "Unauthorized to update this video")
			a.fail(w, r, err)
			return
		}
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	v, err := a.videoSvc.Update(r.Context(), callerID, r.PathValue("id"), domain.VideoPatch{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		err = withMessage(err, domain.ErrNotFound, "Video not found")
		err = withMessage(err, domain.ErrForbidden, "Unauthorized to update this video")
		a.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, "Video updated successfully", a.toVideoResponse(v))
}

func (a *api) handleVideoDelete(w http.ResponseWriter, r *http.Request) {
	callerID, _ := CurrentUserID(r.Context())
	if err := a.videoSvc.Delete(r.Context(), callerID, r.PathValue("id")); err != nil {
		err = withMessage(err, domain.ErrNotFound, "Video not found")
		err = withMessage(err, domain.ErrForbidden, "Unauthorized to delete this video")
		a.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Video deleted successfully", nil)
}

// queryInt reads a positive integer query parameter, falling back to def
// when it is absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}
