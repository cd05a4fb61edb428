// Package settings persists the site-wide design, social and general
// settings as one JSON document.
package settings

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"authorsite/pkg/models"
	"authorsite/pkg/patch"
)

const (
	ThemeBlack    = "black"
	ThemeDarkGray = "dark-gray"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Defaults is what a fresh install shows before anything was saved.
func Defaults() models.Settings {
	return models.Settings{
		Theme: ThemeBlack,
		Colors: models.Colors{
			Primary:   "#000000",
			Secondary: "#1a1a1a",
			Accent:    "#c0c0c0",
			Text:      "#c0c0c0",
		},
		SocialMedia: []models.SocialLink{
			{Platform: "Facebook", URL: "https://facebook.com/matthiassilberhain", Enabled: true},
			{Platform: "Twitter", URL: "https://twitter.com/msilberhain", Enabled: true},
			{Platform: "Instagram", URL: "https://instagram.com/matthiassilberhain", Enabled: true},
			{Platform: "Goodreads", URL: "https://goodreads.com/matthiassilberhain", Enabled: true},
		},
		BackgroundImages: []models.BackgroundImage{
			{ID: 1, Name: "Dark Pattern", URL: "/assets/backgrounds/pattern1.jpg", Active: true},
			{ID: 2, Name: "Gradient", URL: "/assets/backgrounds/gradient1.jpg"},
		},
		ContactEmail: "kontakt@silberhain.de",
	}
}

// Patch replaces whole sections; absent sections stay as they are.
// A null section resets it to its default.
type Patch struct {
	Theme            patch.Field[string]                   `json:"theme"`
	Colors           patch.Field[models.Colors]            `json:"colors"`
	SocialMedia      patch.Field[[]models.SocialLink]      `json:"social_media"`
	BackgroundImages patch.Field[[]models.BackgroundImage] `json:"background_images"`
	ContactEmail     patch.Field[string]                   `json:"contact_email"`
	AnalyticsCode    patch.Field[string]                   `json:"analytics_code"`
	MaintenanceMode  patch.Field[bool]                     `json:"maintenance_mode"`
}

func (p Patch) apply(s models.Settings) models.Settings {
	def := Defaults()
	if p.Theme.Set {
		s.Theme = pick(p.Theme, def.Theme)
	}
	if p.Colors.Set {
		s.Colors = pick(p.Colors, def.Colors)
	}
	if p.SocialMedia.Set {
		s.SocialMedia = pick(p.SocialMedia, def.SocialMedia)
	}
	if p.BackgroundImages.Set {
		s.BackgroundImages = pick(p.BackgroundImages, def.BackgroundImages)
	}
	if p.ContactEmail.Set {
		s.ContactEmail = pick(p.ContactEmail, def.ContactEmail)
	}
	if p.AnalyticsCode.Set {
		s.AnalyticsCode = pick(p.AnalyticsCode, "")
	}
	if p.MaintenanceMode.Set {
		s.MaintenanceMode = p.MaintenanceMode.Present() && p.MaintenanceMode.Value
	}
	return s
}

func pick[T any](f patch.Field[T], def T) T {
	if f.Null {
		return def
	}
	return f.Value
}

// normalize trims free text, assigns ids to new background images and
// validates the result.
func normalize(s *models.Settings) error {
	s.Theme = strings.TrimSpace(s.Theme)
	if s.Theme != ThemeBlack && s.Theme != ThemeDarkGray {
		return invalid("theme", "must be black or dark-gray")
	}

	for name, c := range map[string]*string{
		"colors.primary":   &s.Colors.Primary,
		"colors.secondary": &s.Colors.Secondary,
		"colors.accent":    &s.Colors.Accent,
		"colors.text":      &s.Colors.Text,
	} {
		*c = strings.ToLower(strings.TrimSpace(*c))
		if !hexColor.MatchString(*c) {
			return invalid(name, "must be a #rrggbb color")
		}
	}

	if len(s.SocialMedia) == 0 {
		return invalid("social_media", "must keep at least one profile")
	}
	for i := range s.SocialMedia {
		l := &s.SocialMedia[i]
		l.Platform = strings.TrimSpace(l.Platform)
		l.URL = strings.TrimSpace(l.URL)
		if l.Platform == "" {
			return invalid(fmt.Sprintf("social_media[%d].platform", i), "is required")
		}
		if l.URL != "" && !isHTTPURL(l.URL) {
			return invalid(fmt.Sprintf("social_media[%d].url", i), "must be an http(s) URL")
		}
	}

	if s.BackgroundImages == nil {
		s.BackgroundImages = []models.BackgroundImage{}
	}
	seen := make(map[int]bool)
	maxID, active := 0, 0
	for _, b := range s.BackgroundImages {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	for i := range s.BackgroundImages {
		b := &s.BackgroundImages[i]
		b.Name = strings.TrimSpace(b.Name)
		b.URL = strings.TrimSpace(b.URL)
		if b.ID <= 0 {
			maxID++
			b.ID = maxID
		}
		if seen[b.ID] {
			return invalid(fmt.Sprintf("background_images[%d].id", i), "is duplicated")
		}
		seen[b.ID] = true
		if b.URL == "" {
			return invalid(fmt.Sprintf("background_images[%d].url", i), "is required")
		}
		if b.Active {
			active++
		}
	}
	if active > 1 {
		return invalid("background_images", "allow at most one active image")
	}

	s.ContactEmail = strings.TrimSpace(s.ContactEmail)
	if s.ContactEmail != "" {
		if _, err := mail.ParseAddress(s.ContactEmail); err != nil {
			return invalid("contact_email", "is not a valid address")
		}
	}
	s.AnalyticsCode = strings.TrimSpace(s.AnalyticsCode)
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// EnabledSocial filters the links shown on the public site.
func EnabledSocial(s models.Settings) []models.SocialLink {
	out := []models.SocialLink{}
	for _, l := range s.SocialMedia {
		if l.Enabled && l.URL != "" {
			out = append(out, l)
		}
	}
	return out
}

// ActiveBackground returns the active background image, if any.
func ActiveBackground(s models.Settings) (models.BackgroundImage, bool) {
	for _, b := range s.BackgroundImages {
		if b.Active {
			return b, true
		}
	}
	return models.BackgroundImage{}, false
}
