package api

import "github.com/pagetrail/pagetrail-server/internal/service"

// Services groups the application services the handlers call.
type Services struct {
	Auth    *service.AuthService
	Book    *service.BookService
	Session *service.SessionService
}
