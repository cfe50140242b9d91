package providers

import (
	"github.com/samber/do/v2"

	"github.com/pagetrail/pagetrail-server/internal/auth"
	"github.com/pagetrail/pagetrail-server/internal/config"
	"github.com/pagetrail/pagetrail-server/internal/logger"
	"github.com/pagetrail/pagetrail-server/internal/media/covers"
	"github.com/pagetrail/pagetrail-server/internal/progress"
	"github.com/pagetrail/pagetrail-server/internal/projection"
	"github.com/pagetrail/pagetrail-server/internal/service"
	"github.com/pagetrail/pagetrail-server/internal/validation"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	hasher := do.MustInvoke[*auth.PasswordHasher](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, hasher, validator, log.Logger), nil
}

// ProvideBookService provides the book service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	policy := do.MustInvoke[*covers.Policy](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(storeHandle.Store, policy, validator, log.Logger), nil
}

// ProvideCommitCoordinator provides the atomic session commit coordinator.
func ProvideCommitCoordinator(i do.Injector) (*progress.Coordinator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return progress.NewCoordinator(storeHandle.Store, log.Logger), nil
}

// ProvideSessionService provides the reading session service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coordinator := do.MustInvoke[*progress.Coordinator](i)
	validator := do.MustInvoke[*validation.Validator](i)
	tel := do.MustInvoke[*TelemetryHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(
		storeHandle.Store,
		coordinator,
		validator,
		tel.Provider,
		cfg.Progress.CommitRetries,
		log.Logger,
	), nil
}

// ProvideFeed provides the live book projection feed.
func ProvideFeed(i do.Injector) (*projection.Feed, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return projection.NewFeed(storeHandle.Store, sseHandle.Manager, log.Logger), nil
}
