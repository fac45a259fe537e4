// Package commerce provides models, repository and ranking for commerce
// discovery: the Explore listing with classic, keyword and semantic modes.
package commerce

import (
	"strings"
	"time"
)

// Commerce represents a business listing, the primary discoverable entity.
// Only active commerces are ever ranked or returned by discovery paths;
// deactivation flips the flag and never deletes the row.
type Commerce struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url,omitempty"`

	// SectionID references the category catalog; SectionName is resolved on
	// read and feeds the keyword scorer's category signal.
	SectionID   *int64 `json:"section_id,omitempty"`
	SectionName string `json:"section_name,omitempty"`

	Province  string `json:"province"`
	City      string `json:"city"`
	Address   string `json:"address,omitempty"`
	Whatsapp  string `json:"whatsapp,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	MapsURL   string `json:"maps_url,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileText builds the textual profile embedded for semantic search.
// The format is kept stable so vectors only change when the profile does.
func (c *Commerce) ProfileText() string {
	parts := make([]string, 0, 5)
	for _, part := range []string{c.Name, c.Description, c.City, c.Province, c.SectionName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " | ")
}
