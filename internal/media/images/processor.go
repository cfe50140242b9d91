package images

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
)

// Stored describes an image accepted into storage.
type Stored struct {
	Ref      Ref
	URL      string
	BlurHash string
	Width    int
	Height   int
	Size     int
}

// Processor validates uploaded cover images, stores them and computes
// their BlurHash previews.
type Processor struct {
	storage *Storage
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storage *Storage, logger *slog.Logger) *Processor {
	return &Processor{
		storage: storage,
		logger:  logger,
	}
}

// Storage returns the blob store the processor writes to.
func (p *Processor) Storage() *Storage {
	return p.storage
}

// Process stores data as a new cover for ownerID. The data must decode as
// an image; a BlurHash failure is logged and leaves BlurHash empty.
func (p *Processor) Process(ownerID string, data []byte, suggestedName string) (*Stored, error) {
	if _, err := p.storage.Sniff(data); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	ref, err := p.storage.Put(ownerID, data, suggestedName)
	if err != nil {
		return nil, err
	}

	stored := &Stored{
		Ref:    ref,
		URL:    p.storage.URL(ref),
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   len(data),
	}

	hash, err := ComputeBlurHash(data)
	if err != nil {
		p.logger.Warn("failed to compute cover blurhash",
			"key", ref.Key(),
			"error", err,
		)
	} else {
		stored.BlurHash = hash
	}

	p.logger.Debug("stored cover image",
		"key", ref.Key(),
		"name", suggestedName,
		"size", stored.Size,
		"width", stored.Width,
		"height", stored.Height,
	)

	return stored, nil
}
