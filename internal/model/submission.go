package model

import (
	"database/sql"
	"strings"
	"time"
)

// Submission is one forum post as stored in the corpus. Rows are appended by
// the acquisition process and never mutated here.
type Submission struct {
	ID            string         `db:"id" json:"id"`
	Author        sql.NullString `db:"author" json:"author,omitempty"`
	Title         string         `db:"title" json:"title"`
	CreatedUTC    sql.NullTime   `db:"created_utc" json:"created_utc,omitempty"`
	Selftext      string         `db:"selftext" json:"selftext"`
	Subreddit     string         `db:"subreddit" json:"subreddit"`
	LinkFlairText sql.NullString `db:"link_flair_text" json:"link_flair_text,omitempty"`
	Link          sql.NullString `db:"link" json:"link,omitempty"`
	NumComments   int            `db:"num_comments" json:"num_comments"`
	Score         int            `db:"score" json:"score"`
}

// Labeled reports whether the submission carries an observed flair and can
// serve as a training example.
func (s Submission) Labeled() bool {
	return s.LinkFlairText.Valid && s.LinkFlairText.String != ""
}

// Flair returns the observed flair, or "" for unlabeled submissions.
func (s Submission) Flair() string {
	if !s.LinkFlairText.Valid {
		return ""
	}
	return s.LinkFlairText.String
}

// Text returns the combined title and body used for classification.
func (s Submission) Text() string {
	return strings.TrimSpace(s.Title + " " + s.Selftext)
}

// Example is a labeled training row: the raw text paired with its flair.
type Example struct {
	ID    string
	Title string
	Body  string
	Flair string
}

// Prediction is the inference output for one submission.
type Prediction struct {
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
	PredictedAt  time.Time `json:"predicted_at"`
}
