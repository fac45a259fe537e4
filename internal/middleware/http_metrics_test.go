package middleware

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"root", "/", "/"},
		{"static commerces", "/commerces", "/commerces"},
		{"static active search", "/commerces/active", "/commerces/active"},
		{"static feed", "/feed", "/feed"},
		{"static ranking", "/ranking", "/ranking"},
		{"commerce by id", "/commerces/123", "/commerces/{id}"},
		{"commerce posts", "/commerces/123/posts", "/commerces/{id}/posts"},
		{"commerce stories", "/commerces/123/stories", "/commerces/{id}/stories"},
		{"commerce deactivate", "/commerces/55/deactivate", "/commerces/{id}/deactivate"},
		{"post by id", "/posts/9", "/posts/{id}"},
		{"post like", "/posts/9/like", "/posts/{id}/like"},
		{"post save", "/posts/9/save", "/posts/{id}/save"},
		{"story view", "/stories/4/view", "/stories/{id}/view"},
		{"story by id", "/stories/4", "/stories/{id}"},
		{"section by id", "/sections/2", "/sections/{id}"},
		{"unknown path passes through", "/unknown/thing", "/unknown/thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
