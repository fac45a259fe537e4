package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		want        string
		wantErr     error
	}{
		{
			name:        "valid string",
			input:       "Cafe Central",
			constraints: StringConstraints{MinLength: 1, MaxLength: 100},
			want:        "Cafe Central",
		},
		{
			name:        "trims whitespace",
			input:       "  Cafe Central  ",
			constraints: StringConstraints{MinLength: 1, MaxLength: 100, TrimSpace: true},
			want:        "Cafe Central",
		},
		{
			name:        "empty rejected by default",
			input:       "",
			constraints: StringConstraints{MaxLength: 100},
			wantErr:     ErrEmpty,
		},
		{
			name:        "whitespace only rejected when trimmed",
			input:       "   ",
			constraints: StringConstraints{MinLength: 1, TrimSpace: true},
			wantErr:     ErrEmpty,
		},
		{
			name:        "empty allowed when configured",
			input:       "",
			constraints: StringConstraints{MaxLength: 100, AllowEmpty: true},
			want:        "",
		},
		{
			name:        "too short",
			input:       "ab",
			constraints: StringConstraints{MinLength: 3},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "too long",
			input:       strings.Repeat("a", 11),
			constraints: StringConstraints{MaxLength: 10},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "length counts runes not bytes",
			input:       strings.Repeat("ñ", 10),
			constraints: StringConstraints{MaxLength: 10},
			want:        strings.Repeat("ñ", 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDomainHelpers(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) (string, error)
		input   string
		wantErr error
	}{
		{"commerce name ok", CommerceName, "Panaderia Lola", nil},
		{"commerce name empty", CommerceName, "", ErrEmpty},
		{"commerce name too long", CommerceName, strings.Repeat("a", MaxCommerceNameLength+1), ErrStringTooLong},
		{"post title ok", PostTitle, "Oferta de verano", nil},
		{"post title empty", PostTitle, "  ", ErrEmpty},
		{"post title too long", PostTitle, strings.Repeat("a", MaxPostTitleLength+1), ErrStringTooLong},
		{"description optional", Description, "", nil},
		{"description too long", Description, strings.Repeat("a", MaxDescriptionLength+1), ErrStringTooLong},
		{"caption optional", Caption, "", nil},
		{"caption too long", Caption, strings.Repeat("a", MaxCaptionLength+1), ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSanitizeHTML(t *testing.T) {
	got := SanitizeHTML(`<script>alert("x")</script>`)
	if strings.Contains(got, "<script>") {
		t.Errorf("expected script tag to be escaped, got %q", got)
	}
}
