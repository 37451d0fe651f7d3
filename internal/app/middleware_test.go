package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/klokku/daybook/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMiddleware(t *testing.T) {
	repo := user.NewStubUserRepository()
	_, err := repo.CreateUser(context.Background(), user.User{Uid: "abc", Username: "jane"})
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Use(userMiddleware(user.NewUserService(repo, "UTC")))
	router.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		u, err := user.CurrentUser(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(u.Username))
	})

	tests := []struct {
		name     string
		header   string
		status   int
		username string
	}{
		{"known user", "abc", http.StatusOK, "jane"},
		{"unknown user", "nope", http.StatusForbidden, ""},
		{"no header", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("X-User-Id", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.username != "" {
				assert.Equal(t, tt.username, w.Body.String())
			}
		})
	}
}
