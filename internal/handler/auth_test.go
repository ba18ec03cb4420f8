package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosegold-gallery/storefront/internal/auth"
	"github.com/rosegold-gallery/storefront/internal/handler"
	"github.com/rosegold-gallery/storefront/internal/user"
)

type mockUserService struct {
	registerFunc func(ctx context.Context, u *user.User, password string) (*user.User, error)
	loginFunc    func(ctx context.Context, email, password string) (*user.User, string, error)
}

func (m *mockUserService) Register(ctx context.Context, u *user.User, password string) (*user.User, error) {
	return m.registerFunc(ctx, u, password)
}

func (m *mockUserService) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	return m.loginFunc(ctx, email, password)
}

func newAuthRouter(svc user.Service) chi.Router {
	r := chi.NewRouter()
	handler.NewAuthHandler(svc).RegisterRoutes(r)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	validBody := `{
		"first_name": "Sara",
		"last_name": "Ahmadi",
		"email": "sara@example.com",
		"password": "password123",
		"city": "Tehran",
		"street": "Azadi"
	}`

	t.Run("success", func(t *testing.T) {
		svc := &mockUserService{
			registerFunc: func(ctx context.Context, u *user.User, password string) (*user.User, error) {
				assert.Equal(t, "sara@example.com", u.Email)
				assert.Equal(t, "password123", password)
				u.ID = uuid.Must(uuid.NewV4())
				u.Role = auth.RoleUser
				return u, nil
			},
		}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(validBody))
		newAuthRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), `"email":"sara@example.com"`)
		assert.NotContains(t, rr.Body.String(), "password", "hash must never leave the server")
	})

	t.Run("duplicate_email", func(t *testing.T) {
		svc := &mockUserService{
			registerFunc: func(ctx context.Context, u *user.User, password string) (*user.User, error) {
				return nil, user.ErrEmailExists
			},
		}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(validBody))
		newAuthRouter(svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("validation_failures", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"malformed_json", `{"first_name":`},
			{"unknown_field", `{"first_name":"Sara","nickname":"sa"}`},
			{"short_password", `{"first_name":"Sara","last_name":"Ahmadi","email":"sara@example.com","password":"short","city":"Tehran","street":"Azadi"}`},
			{"bad_email", `{"first_name":"Sara","last_name":"Ahmadi","email":"not-an-email","password":"password123","city":"Tehran","street":"Azadi"}`},
			{"missing_address", `{"first_name":"Sara","last_name":"Ahmadi","email":"sara@example.com","password":"password123"}`},
		}

		svc := &mockUserService{
			registerFunc: func(ctx context.Context, u *user.User, password string) (*user.User, error) {
				t.Fatal("service must not be reached on invalid input")
				return nil, nil
			},
		}
		router := newAuthRouter(svc)

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
				router.ServeHTTP(rr, req)

				assert.Equal(t, http.StatusBadRequest, rr.Code)
			})
		}
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		stored := &user.User{
			ID:    uuid.Must(uuid.NewV4()),
			Email: "sara@example.com",
			Role:  auth.RoleUser,
		}
		svc := &mockUserService{
			loginFunc: func(ctx context.Context, email, password string) (*user.User, string, error) {
				return stored, "signed-token", nil
			},
		}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"sara@example.com","password":"password123"}`))
		newAuthRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"token":"signed-token"`)
		assert.Contains(t, rr.Body.String(), `"email":"sara@example.com"`)
	})

	t.Run("invalid_credentials", func(t *testing.T) {
		svc := &mockUserService{
			loginFunc: func(ctx context.Context, email, password string) (*user.User, string, error) {
				return nil, "", user.ErrInvalidCredentials
			},
		}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"sara@example.com","password":"wrong"}`))
		newAuthRouter(svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, rr.Body.String())
	})

	t.Run("missing_password", func(t *testing.T) {
		svc := &mockUserService{
			loginFunc: func(ctx context.Context, email, password string) (*user.User, string, error) {
				t.Fatal("service must not be reached on invalid input")
				return nil, "", nil
			},
		}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"sara@example.com"}`))
		newAuthRouter(svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
