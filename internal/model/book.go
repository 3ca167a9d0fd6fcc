package model

import "time"

// Book is a catalog entry with copy accounting.
type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Category        string    `json:"category,omitempty"`
	ISBN            string    `json:"isbn,omitempty"`
	Price           float64   `json:"price"`
	Description     string    `json:"description,omitempty"`
	CoverMime       string    `json:"-"`
	CoverImage      string    `json:"cover_image,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BookPatch holds the optional fields of a catalog edit. Nil fields are left untouched.
type BookPatch struct {
	Title       *string  `json:"title"`
	Author      *string  `json:"author"`
	Category    *string  `json:"category"`
	ISBN        *string  `json:"isbn"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
	TotalCopies *int     `json:"total_copies"`
}

// Empty reports whether the patch changes nothing.
func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Category == nil && p.ISBN == nil &&
		p.Price == nil && p.Description == nil && p.TotalCopies == nil
}

// BookFilter narrows a catalog listing.
type BookFilter struct {
	Category string
	Query    string
	Limit    int
}

// CategoryCount is a category with the number of books in it.
type CategoryCount struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	CoverImage string `json:"cover_image,omitempty"`
}

// UncategorizedLabel is reported for books without a category.
const UncategorizedLabel = "Uncategorized"
