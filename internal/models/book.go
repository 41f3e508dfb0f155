package models

import (
	"time"
)

// BookStatus is derived from the copy counters except for maintenance,
// which is set explicitly by staff and sticks until explicitly cleared.
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "available"
	BookStatusExhausted   BookStatus = "exhausted"
	BookStatusMaintenance BookStatus = "maintenance"
)

// Book is a catalog title with copy inventory.
type Book struct {
	ID              int32      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	ISBN            string     `json:"isbn"`
	Category        *string    `json:"category,omitempty"`
	Publisher       *string    `json:"publisher,omitempty"`
	PublishedYear   *int32     `json:"published_year,omitempty"`
	TotalCopies     int32      `json:"total_copies"`
	AvailableCopies int32      `json:"available_copies"`
	Status          BookStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateBookRequest represents a catalog create request (staff only).
type CreateBookRequest struct {
	Title         string  `json:"title" binding:"required,max=200"`
	Author        string  `json:"author" binding:"required,max=100"`
	ISBN          string  `json:"isbn" binding:"required,max=20"`
	Category      *string `json:"category"`
	Publisher     *string `json:"publisher"`
	PublishedYear *int32  `json:"published_year"`
	TotalCopies   int32   `json:"total_copies" binding:"min=0"`
}

// UpdateBookRequest represents a bounded catalog update. Copy counters are
// changed through their dedicated operations, not here.
type UpdateBookRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	Category      *string `json:"category"`
	Publisher     *string `json:"publisher"`
	PublishedYear *int32  `json:"published_year"`
}

// SetTotalCopiesRequest resizes the inventory of a title.
type SetTotalCopiesRequest struct {
	TotalCopies int32 `json:"total_copies" binding:"min=0"`
}

// BookResponse is the wire representation of a book.
type BookResponse struct {
	ID              int32      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	ISBN            string     `json:"isbn"`
	Category        *string    `json:"category,omitempty"`
	Publisher       *string    `json:"publisher,omitempty"`
	PublishedYear   *int32     `json:"published_year,omitempty"`
	TotalCopies     int32      `json:"total_copies"`
	AvailableCopies int32      `json:"available_copies"`
	Status          BookStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
