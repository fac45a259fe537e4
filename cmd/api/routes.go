package main

import (
	"net/http"
	"strings"

	"github.com/miplaza/backend/internal/api"
	"github.com/miplaza/backend/internal/auth"
	"github.com/miplaza/backend/internal/middleware"
)

// routerDeps carries the handlers and middleware inputs the router mounts.
type routerDeps struct {
	commerceHandlers *api.CommerceHandlers
	postHandlers     *api.PostHandlers
	storyHandlers    *api.StoryHandlers
	sectionHandlers  *api.SectionHandlers
	feedHandlers     *api.FeedHandlers
	uploadHandlers   *api.UploadHandlers
	healthHandlers   *api.HealthHandlers
	jwtService       *auth.JWTService

	// searchLimiter throttles the discovery listing separately from the
	// global limit; nil disables the extra throttle.
	searchLimiter func(http.Handler) http.Handler
}

// newRouter wires every endpoint onto a ServeMux. Handlers parse their own
// path parameters, so routes register by prefix with method dispatch here.
func newRouter(deps routerDeps) *http.ServeMux {
	requireAuth := middleware.RequireAuth(deps.jwtService)
	optionalAuth := middleware.OptionalAuth(deps.jwtService)

	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return requireAuth(h).ServeHTTP
	}
	public := func(h http.HandlerFunc) http.HandlerFunc {
		return optionalAuth(h).ServeHTTP
	}
	searchLimited := func(h http.HandlerFunc) http.HandlerFunc {
		if deps.searchLimiter == nil {
			return h
		}
		return deps.searchLimiter(h).ServeHTTP
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/commerces", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			protected(deps.commerceHandlers.CreateCommerce)(w, r)
		case http.MethodGet:
			protected(deps.commerceHandlers.ListMyCommerces)(w, r)
		default:
			writeMethodNotAllowed(w, r)
		}
	})

	mux.HandleFunc("/commerces/", func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/commerces/")

		if len(parts) == 1 && parts[0] == "active" {
			if r.Method != http.MethodGet {
				writeMethodNotAllowed(w, r)
				return
			}
			searchLimited(deps.commerceHandlers.ListActiveCommerces)(w, r)
			return
		}

		switch {
		case len(parts) == 1:
			switch r.Method {
			case http.MethodGet:
				deps.commerceHandlers.GetCommerce(w, r)
			case http.MethodPut:
				protected(deps.commerceHandlers.UpdateCommerce)(w, r)
			default:
				writeMethodNotAllowed(w, r)
			}
		case len(parts) == 2 && parts[1] == "posts" && r.Method == http.MethodGet:
			deps.postHandlers.ListCommercePosts(w, r)
		case len(parts) == 2 && parts[1] == "stories" && r.Method == http.MethodGet:
			public(deps.storyHandlers.ListCommerceStories)(w, r)
		case len(parts) == 2 && parts[1] == "deactivate" && r.Method == http.MethodPost:
			protected(deps.commerceHandlers.DeactivateCommerce)(w, r)
		case len(parts) == 2 && parts[1] == "reactivate" && r.Method == http.MethodPost:
			protected(deps.commerceHandlers.ReactivateCommerce)(w, r)
		default:
			writeNotFound(w, r)
		}
	})

	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, r)
			return
		}
		protected(deps.postHandlers.CreatePost)(w, r)
	})

	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/posts/")

		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			deps.postHandlers.GetPost(w, r)
		case len(parts) == 2 && parts[1] == "like" && r.Method == http.MethodPost:
			protected(deps.postHandlers.ToggleLike)(w, r)
		case len(parts) == 2 && parts[1] == "save" && r.Method == http.MethodPost:
			protected(deps.postHandlers.SavePost)(w, r)
		case len(parts) == 2 && parts[1] == "save" && r.Method == http.MethodDelete:
			protected(deps.postHandlers.UnsavePost)(w, r)
		default:
			writeNotFound(w, r)
		}
	})

	mux.HandleFunc("/stories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, r)
			return
		}
		protected(deps.storyHandlers.CreateStory)(w, r)
	})

	mux.HandleFunc("/stories/", func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/stories/")
		if len(parts) == 2 && parts[1] == "view" && r.Method == http.MethodPost {
			protected(deps.storyHandlers.MarkStoryViewed)(w, r)
			return
		}
		writeNotFound(w, r)
	})

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		public(deps.feedHandlers.GetFeed)(w, r)
	})

	mux.HandleFunc("/ranking", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		deps.feedHandlers.GetRanking(w, r)
	})

	mux.HandleFunc("/sections", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		deps.sectionHandlers.ListSections(w, r)
	})

	mux.HandleFunc("/sections/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		deps.sectionHandlers.GetSection(w, r)
	})

	mux.HandleFunc("/saved-posts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		protected(deps.postHandlers.ListSavedPosts)(w, r)
	})

	if deps.uploadHandlers != nil {
		mux.HandleFunc("/uploads/sign", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				writeMethodNotAllowed(w, r)
				return
			}
			protected(deps.uploadHandlers.SignUpload)(w, r)
		})
	}

	mux.HandleFunc("/health", deps.healthHandlers.Health)
	mux.HandleFunc("/ready", deps.healthHandlers.Ready)
	mux.Handle("/metrics", promHandler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			writeNotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"miplaza-api","version":"0.1.0"}`))
	})

	return mux
}

// splitPath returns the non-empty segments after the given prefix.
func splitPath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeBadRequest)
	api.WriteError(w, ctx, http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
}
