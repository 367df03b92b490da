package models

import "gorm.io/gorm"

// Rating is a single grade given to a book by one user. A user may rate a
// given book at most once.
type Rating struct {
	UserID string `json:"userId"`
	Grade  int    `json:"grade" validate:"gte=0,lte=5"`
}

// Book represents a catalogued book. UserID is the owner (the account that
// created the record) and never changes afterwards. Ratings are stored as a
// JSON column so the whole row can be replaced in a single conditional
// update; Version is the optimistic-lock counter guarding that update.
type Book struct {
	ID            string   `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID        string   `json:"userId" gorm:"type:varchar(36);index"`
	Title         string   `json:"title" validate:"required,max=200"`
	Author        string   `json:"author" validate:"required,max=200"`
	Year          int      `json:"year" validate:"omitempty,gte=0"`
	Genre         string   `json:"genre" validate:"omitempty,max=100"`
	ImageURL      string   `json:"imageUrl"`
	Ratings       []Rating `json:"ratings" gorm:"serializer:json"`
	AverageRating float64  `json:"averageRating"`
	Version       int      `json:"-"`
	gorm.Model             // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
