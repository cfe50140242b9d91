// Package covers decides which image becomes a book's cover and keeps the
// blob store free of covers no book points at.
package covers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/media/images"
)

// File is an uploaded cover image.
type File struct {
	Data []byte
	Name string
}

// CoverRequest gathers every cover input of a book create or edit.
type CoverRequest struct {
	OwnerID string
	BookID  string
	Title   string
	// CurrentURL is the persisted cover; empty on create.
	CurrentURL string
	File       *File
	URL        string
	// Clear drops the current cover in favour of the placeholder.
	Clear bool
}

// Action is the outcome kind of Decide.
type Action int

const (
	ActionKeep Action = iota
	ActionUpload
	ActionAdoptURL
	ActionPlaceholder
)

func (a Action) String() string {
	switch a {
	case ActionUpload:
		return "upload"
	case ActionAdoptURL:
		return "adopt_url"
	case ActionPlaceholder:
		return "placeholder"
	default:
		return "keep"
	}
}

// Decision is what Decide chose. URL is set for every action except
// ActionUpload, whose URL only exists once the file is stored.
type Decision struct {
	Action Action
	URL    string
	// Release is the previous cover URL when it stops being used.
	Release string
}

// Decide applies cover precedence: uploaded file, then supplied URL, then
// the existing cover, then a placeholder seeded by the title (or the book
// ID when the title is blank). It has no side effects.
func Decide(req CoverRequest, ph Placeholder) (Decision, error) {
	current := strings.TrimSpace(req.CurrentURL)
	supplied := strings.TrimSpace(req.URL)

	if req.File != nil && len(req.File.Data) > 0 {
		return Decision{Action: ActionUpload, Release: current}, nil
	}

	if supplied != "" {
		if err := CheckURL(supplied); err != nil {
			return Decision{}, err
		}
		if supplied == current {
			return Decision{Action: ActionKeep, URL: current}, nil
		}
		return Decision{Action: ActionAdoptURL, URL: supplied, Release: current}, nil
	}

	if current != "" && !req.Clear {
		return Decision{Action: ActionKeep, URL: current}, nil
	}

	seed := strings.TrimSpace(req.Title)
	if seed == "" {
		seed = req.BookID
	}
	placeholder := ph.URL(seed)
	d := Decision{Action: ActionPlaceholder, URL: placeholder}
	if current != placeholder {
		d.Release = current
	}
	return d, nil
}

// CheckURL accepts only absolute http(s) URLs with a host.
func CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return domainerrors.Policyf("cover URL is not a valid URL: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domainerrors.Policyf("cover URL must use http or https: %q", raw)
	}
	if u.Host == "" {
		return domainerrors.Policyf("cover URL has no host: %q", raw)
	}
	return nil
}

// Resolution is the cover a book should persist.
type Resolution struct {
	Action   Action
	URL      string
	BlurHash string
	// Uploaded is set when a new file was stored, so the caller can Discard
	// it if the book write fails.
	Uploaded *images.Ref
	// Release is the previous cover, to Discard once the book write has
	// succeeded.
	Release string
}

// Policy applies Decide against the blob store.
type Policy struct {
	processor   *images.Processor
	placeholder Placeholder
	logger      *slog.Logger
}

// NewPolicy creates a Policy.
func NewPolicy(processor *images.Processor, placeholder Placeholder, logger *slog.Logger) *Policy {
	return &Policy{processor: processor, placeholder: placeholder, logger: logger}
}

// Placeholder returns the placeholder service used for fallbacks.
func (p *Policy) Placeholder() Placeholder {
	return p.placeholder
}

// Resolve decides the cover for req and stores an uploaded file. It never
// deletes anything: the replaced cover is returned as Release for the caller
// to Discard after persisting the book. Malformed URLs, unusable files and
// URLs pointing into the blob store fail with a POLICY error.
func (p *Policy) Resolve(_ context.Context, req CoverRequest) (Resolution, error) {
	decision, err := Decide(req, p.placeholder)
	if err != nil {
		return Resolution{}, err
	}

	// A hosted file belongs to exactly one book.
	if decision.Action == ActionAdoptURL {
		if _, hosted := p.processor.Storage().RefFromURL(decision.URL); hosted {
			return Resolution{}, domainerrors.Policy("hosted covers cannot be shared between books; upload the file instead")
		}
	}

	res := Resolution{Action: decision.Action, URL: decision.URL}

	if decision.Action == ActionUpload {
		stored, err := p.processor.Process(req.OwnerID, req.File.Data, req.File.Name)
		if err != nil {
			if errors.Is(err, images.ErrUnsupportedType) || errors.Is(err, images.ErrTooLarge) || errors.Is(err, images.ErrEmpty) {
				return Resolution{}, domainerrors.Policyf("cover file rejected: %v", err)
			}
			return Resolution{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to store cover")
		}
		res.URL = stored.URL
		res.BlurHash = stored.BlurHash
		res.Uploaded = &stored.Ref
	}

	if decision.Release != res.URL {
		res.Release = decision.Release
	}

	return res, nil
}

// Discard deletes rawURL from the blob store when it is a cover hosted for
// ownerID. Anything else is left alone. Failures are logged and swallowed.
func (p *Policy) Discard(ctx context.Context, ownerID, rawURL string) {
	ref, ok := p.processor.Storage().RefFromURL(rawURL)
	if !ok || ref.OwnerID != ownerID {
		return
	}
	if err := p.processor.Storage().Delete(ref); err != nil {
		p.logger.WarnContext(ctx, "cover cleanup failed",
			"key", ref.Key(),
			"user_id", ownerID,
			"error", err,
		)
	}
}
