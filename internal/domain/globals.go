package domain

import "strings"

// Globals are the site-wide documents every page is rendered with.
type Globals struct {
	Header Navigation `json:"Header"`
	Footer Navigation `json:"Footer"`
}

type Navigation struct {
	NavItems []NavItem `json:"navItems"`
}

type NavItem struct {
	Link Link `json:"link"`
}

type Link struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	URL    string `json:"url"`
	NewTab bool   `json:"newTab"`
}

// Href falls back to the site root for links without a usable target.
func (l Link) Href() string {
	url := strings.TrimSpace(l.URL)
	if url == "" {
		return "/"
	}
	return url
}
