package domain

import "time"

type Video struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Locator     string    `db:"video_url"`
	Size        int64     `db:"video_size"`
	ShareLink   string    `db:"share_link"`
	UploadedBy  string    `db:"uploaded_by"`
	Shares      int       `db:"shares"`
	Views       int       `db:"views"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type NewVideo struct {
	Title       string
	Description string
	Locator     string
	Size        int64
	ShareLink   string
	UploadedBy  string
}

// VideoPatch holds the mutable fields of a video; nil means unchanged.
type VideoPatch struct {
	Title       *string
	Description *string
}

type VideoPage struct {
	Videos  []Video
	Total   int
	Page    int
	PerPage int
}

// HasNext is Page*PerPage < Total without the multiplication.
func (p VideoPage) HasNext() bool {
	return p.PerPage > 0 && p.Total > 0 && p.Page <= (p.Total-1)/p.PerPage
}

func (p VideoPage) HasPrevious() bool { return p.Page > 1 }
