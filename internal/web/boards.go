package web

import "strings"

// Board is one post as returned by the external API.
type Board struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	CreatedAt     string `json:"createdAt"`
	ImageURL      string `json:"imageUrl,omitempty"`
	BoardCategory string `json:"boardCategory,omitempty"`
	CategoryName  string `json:"category,omitempty"`
}

// Category returns the post's category; list and detail replies name the field differently.
func (b Board) Category() string {
	if b.BoardCategory != "" {
		return b.BoardCategory
	}
	return b.CategoryName
}

// Date returns the date part of CreatedAt.
func (b Board) Date() string {
	date, _, _ := strings.Cut(b.CreatedAt, "T")
	return date
}

// BoardList is one page of posts.
type BoardList struct {
	Content       []Board `json:"content"`
	TotalPages    int     `json:"totalPages"`
	TotalElements int64   `json:"totalElements"`
	Size          int     `json:"size"`
	Number        int     `json:"number"`
	First         bool    `json:"first"`
	Last          bool    `json:"last"`
}
