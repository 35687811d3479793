package entity

import "time"

// SiteConfig is one immutable version of the storefront theming record.
// Updates insert a new version instead of mutating shared state; readers
// fetch the latest version per request.
type SiteConfig struct {
	Version         int       `json:"version"`
	SiteName        string    `json:"site_name"`
	PrimaryColor    string    `json:"primary_color"`
	SecondaryColor  string    `json:"secondary_color"`
	BackgroundLight string    `json:"bg_light"`
	BackgroundDark  string    `json:"bg_dark"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultSiteConfig is served before any version has been stored.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		Version:         0,
		SiteName:        "SoleMates",
		PrimaryColor:    "#e94c20",
		SecondaryColor:  "#FF69B4",
		BackgroundLight: "#f8f6f6",
		BackgroundDark:  "#1A1A1A",
	}
}
