package models

import "time"

// books table
type Book struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Description  string    `json:"description"`
	CoverImage   *string   `json:"cover_image"`
	SamplePDF    *string   `json:"sample_pdf"`
	PurchaseLink *string   `json:"purchase_link"`
	Published    bool      `json:"published"`
	Featured     bool      `json:"featured"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Colors struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
	Text      string `json:"text"`
}

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Enabled  bool   `json:"enabled"`
}

type BackgroundImage struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// settings table, stored as one JSON document
type Settings struct {
	Theme            string            `json:"theme"`
	Colors           Colors            `json:"colors"`
	SocialMedia      []SocialLink      `json:"social_media"`
	BackgroundImages []BackgroundImage `json:"background_images"`
	ContactEmail     string            `json:"contact_email"`
	AnalyticsCode    string            `json:"analytics_code"`
	MaintenanceMode  bool              `json:"maintenance_mode"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}

// admin identity returned by the auth endpoints
type AdminUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}
