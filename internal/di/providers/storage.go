package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/pagetrail/pagetrail-server/internal/config"
	"github.com/pagetrail/pagetrail-server/internal/logger"
	"github.com/pagetrail/pagetrail-server/internal/media/covers"
	"github.com/pagetrail/pagetrail-server/internal/media/images"
)

// ProvideCoverStorage provides the blob store for uploaded covers.
func ProvideCoverStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := images.NewStorage(cfg.Data.CoversPath(), cfg.Server.PublicURL, cfg.Covers.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("cover storage: %w", err)
	}

	log.Info("Cover storage initialized",
		"path", cfg.Data.CoversPath(),
		"public_url", cfg.Server.PublicURL,
	)

	return storage, nil
}

// ProvideImageProcessor provides the image processor for cover art.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	storage := do.MustInvoke[*images.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return images.NewProcessor(storage, log.Logger), nil
}

// ProvideCoverPolicy provides the cover resolution policy.
func ProvideCoverPolicy(i do.Injector) (*covers.Policy, error) {
	cfg := do.MustInvoke[*config.Config](i)
	processor := do.MustInvoke[*images.Processor](i)
	log := do.MustInvoke[*logger.Logger](i)

	return covers.NewPolicy(processor, covers.NewPlaceholder(cfg.Covers.PlaceholderBase), log.Logger), nil
}
