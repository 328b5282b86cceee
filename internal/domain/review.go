package domain

import (
	"time"
	"unicode/utf8"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

type Review struct {
	ID         uint
	OrderID    uint
	ReviewerID uint
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// CommentLength counts characters, not bytes.
func CommentLength(comment string) int {
	return utf8.RuneCountInString(comment)
}
