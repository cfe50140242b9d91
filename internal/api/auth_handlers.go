package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/register",
		Summary:     "Register new user",
		Description: "Creates a new account and signs it in",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns access and refresh tokens",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for new tokens. The old refresh token stops working.",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/logout",
		Summary:       "Logout",
		Description:   "Revokes the session behind the refresh token",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleLogout)
}

// === DTOs ===

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email       string `json:"email" doc:"User email address"`
	Password    string `json:"password" doc:"User password, at least 8 characters"`
	DisplayName string `json:"display_name,omitempty" doc:"Name shown in the app"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body      RegisterRequest
	UserAgent string `header:"User-Agent"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" doc:"User email"`
	Password string `json:"password" doc:"User password"`
}

// LoginInput wraps the login request with headers for Huma.
type LoginInput struct {
	Body      LoginRequest
	UserAgent string `header:"User-Agent"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" doc:"Refresh token"`
}

// RefreshInput wraps the refresh request with headers for Huma.
type RefreshInput struct {
	Body      RefreshRequest
	UserAgent string `header:"User-Agent"`
}

// LogoutInput wraps the logout request for Huma.
type LogoutInput struct {
	Body RefreshRequest
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string    `json:"id" doc:"User ID"`
	Email       string    `json:"email" doc:"Email address"`
	DisplayName string    `json:"display_name" doc:"Display name"`
	CreatedAt   time.Time `json:"created_at" doc:"Account creation time"`
	LastLoginAt time.Time `json:"last_login_at,omitzero" doc:"Last successful login"`
}

// AuthResponse contains tokens and the signed-in user.
type AuthResponse struct {
	User         UserResponse `json:"user" doc:"Signed-in user"`
	SessionID    string       `json:"session_id" doc:"Auth session ID"`
	AccessToken  string       `json:"access_token" doc:"PASETO access token"`
	RefreshToken string       `json:"refresh_token" doc:"Opaque refresh token"`
	TokenType    string       `json:"token_type" doc:"Token type"`
	ExpiresIn    int          `json:"expires_in" doc:"Access token lifetime in seconds"`
	ExpiresAt    time.Time    `json:"expires_at" doc:"Access token expiry"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// CreatedAuthOutput is AuthOutput with a 201 status.
type CreatedAuthOutput struct {
	Status int
	Body   AuthResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*CreatedAuthOutput, error) {
	resp, err := s.services.Auth.Register(ctx, service.RegisterRequest{
		Email:       input.Body.Email,
		Password:    input.Body.Password,
		DisplayName: input.Body.DisplayName,
		UserAgent:   input.UserAgent,
		IPAddress:   clientIP(ctx),
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &CreatedAuthOutput{Status: http.StatusCreated, Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:     input.Body.Email,
		Password:  input.Body.Password,
		UserAgent: input.UserAgent,
		IPAddress: clientIP(ctx),
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Refresh(ctx, service.RefreshRequest{
		RefreshToken: input.Body.RefreshToken,
		UserAgent:    input.UserAgent,
		IPAddress:    clientIP(ctx),
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleLogout(ctx context.Context, input *LogoutInput) (*struct{}, error) {
	if err := s.services.Auth.Logout(ctx, input.Body.RefreshToken); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

// === Mappers ===

func mapAuthResponse(resp *service.AuthResponse) AuthResponse {
	return AuthResponse{
		User:         mapUser(resp.User),
		SessionID:    resp.SessionID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    resp.ExpiresAt,
	}
}

func mapUser(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.Name(),
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
