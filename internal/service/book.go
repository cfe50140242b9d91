package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/media/covers"
	"github.com/pagetrail/pagetrail-server/internal/normalize"
	"github.com/pagetrail/pagetrail-server/internal/progress"
	"github.com/pagetrail/pagetrail-server/internal/projection"
	"github.com/pagetrail/pagetrail-server/internal/store"
	"github.com/pagetrail/pagetrail-server/internal/validation"
)

// BookService manages a user's books. Progress fields only change here
// through explicit edits; sessions go through SessionService.
type BookService struct {
	store     store.Store
	covers    *covers.Policy
	validator *validation.Validator
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(
	store store.Store,
	covers *covers.Policy,
	validator *validation.Validator,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		store:     store,
		covers:    covers,
		validator: validator,
		logger:    logger,
	}
}

// CreateBookRequest describes a new book. CoverFile wins over CoverURL.
type CreateBookRequest struct {
	Title         string `json:"title" validate:"notblank,max=500"`
	Author        string `json:"author,omitempty" validate:"max=300"`
	Category      string `json:"category,omitempty" validate:"max=100"`
	ISBN          string `json:"isbn,omitempty" validate:"max=20"`
	Description   string `json:"description,omitempty" validate:"max=20000"`
	Status        string `json:"status,omitempty"`
	TotalPages    *int   `json:"total_pages,omitempty" validate:"omitempty,min=1"`
	PagesRead     int    `json:"pages_read,omitempty" validate:"min=0"`
	CoverURL      string `json:"cover_url,omitempty" validate:"max=2048"`
	CoverFile     []byte `json:"cover_file,omitempty"`
	CoverFileName string `json:"cover_file_name,omitempty" validate:"max=255"`
}

// UpdateBookRequest is a partial edit. Nil fields are left unchanged.
type UpdateBookRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank,max=500"`
	Author      *string `json:"author,omitempty" validate:"omitempty,max=300"`
	Category    *string `json:"category,omitempty" validate:"omitempty,max=100"`
	ISBN        *string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=20000"`
	Status      *string `json:"status,omitempty"`
	TotalPages  *int    `json:"total_pages,omitempty" validate:"omitempty,min=1"`
	// ClearTotalPages forgets the page count. It cannot be combined with TotalPages.
	ClearTotalPages bool    `json:"clear_total_pages,omitempty" validate:"excluded_with=TotalPages"`
	PagesRead       *int    `json:"pages_read,omitempty" validate:"omitempty,min=0"`
	CoverURL        *string `json:"cover_url,omitempty" validate:"omitempty,max=2048"`
	CoverFile       []byte  `json:"cover_file,omitempty"`
	CoverFileName   string  `json:"cover_file_name,omitempty" validate:"max=255"`
	// ClearCover replaces the cover with the title placeholder.
	ClearCover bool `json:"clear_cover,omitempty"`
}

func (r UpdateBookRequest) touchesProgress() bool {
	return r.Status != nil || r.TotalPages != nil || r.ClearTotalPages || r.PagesRead != nil
}

// CreateBook validates req, resolves its cover and stores the book.
func (s *BookService) CreateBook(ctx context.Context, ownerID string, req CreateBookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	requested, err := parseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if req.TotalPages != nil && req.PagesRead > *req.TotalPages {
		return nil, domainerrors.ValidationWithDetails(
			fmt.Sprintf("pages_read cannot exceed the book's %d pages", *req.TotalPages),
			map[string]string{"pages_read": fmt.Sprintf("must not exceed %d", *req.TotalPages)},
		)
	}

	book := &domain.Book{
		UserID:      ownerID,
		Title:       normalize.Text(req.Title),
		Author:      normalize.Text(req.Author),
		Category:    normalize.Text(req.Category),
		ISBN:        normalize.Text(req.ISBN),
		Description: normalize.Description(req.Description),
		TotalPages:  req.TotalPages,
		PagesRead:   req.PagesRead,
	}
	book.Status = progress.NormalizeStatus(requested, book.PagesRead, book.TotalPages)

	cover, err := s.covers.Resolve(ctx, covers.CoverRequest{
		OwnerID: ownerID,
		Title:   book.Title,
		File:    coverFile(req.CoverFile, req.CoverFileName),
		URL:     req.CoverURL,
	})
	if err != nil {
		return nil, err
	}
	book.CoverURL = cover.URL
	book.CoverBlurHash = cover.BlurHash

	if err := s.store.CreateBook(ctx, book); err != nil {
		s.discardUpload(ctx, ownerID, cover)
		return nil, storeError(err, "book")
	}
	s.releaseCover(ctx, ownerID, cover)

	s.logger.InfoContext(ctx, "book created",
		"user_id", ownerID,
		"book_id", book.ID,
		"cover", cover.Action.String(),
	)
	return book, nil
}

// UpdateBook applies a partial edit. The edit runs as a mutator inside a
// store transaction so it never overwrites a concurrently committed
// pages_read.
func (s *BookService) UpdateBook(ctx context.Context, ownerID, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var requested *domain.BookStatus
	if req.Status != nil {
		status, err := parseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		requested = &status
	}

	current, err := s.store.GetBook(ctx, ownerID, bookID)
	if err != nil {
		return nil, storeError(err, "book")
	}

	title := current.Title
	if req.Title != nil {
		title = normalize.Text(*req.Title)
	}

	coverReq, changeCover := s.coverEdit(current, title, req)
	var cover covers.Resolution
	if changeCover {
		cover, err = s.covers.Resolve(ctx, coverReq)
		if err != nil {
			return nil, err
		}
	}

	updated, err := s.store.UpdateBook(ctx, ownerID, bookID, func(book *domain.Book) error {
		if changeCover {
			if book.CoverURL != current.CoverURL {
				return domainerrors.Conflict("book cover was changed by another request")
			}
			book.CoverURL = cover.URL
			book.CoverBlurHash = cover.BlurHash
		}

		if req.Title != nil {
			book.Title = title
		}
		if req.Author != nil {
			book.Author = normalize.Text(*req.Author)
		}
		if req.Category != nil {
			book.Category = normalize.Text(*req.Category)
		}
		if req.ISBN != nil {
			book.ISBN = normalize.Text(*req.ISBN)
		}
		if req.Description != nil {
			book.Description = normalize.Description(*req.Description)
		}

		if req.touchesProgress() {
			return applyProgressEdit(book, req, requested)
		}
		return nil
	})
	if err != nil {
		if changeCover {
			s.discardUpload(ctx, ownerID, cover)
		}
		return nil, storeError(err, "book")
	}
	if changeCover {
		s.releaseCover(ctx, ownerID, cover)
	}

	s.logger.InfoContext(ctx, "book updated", "user_id", ownerID, "book_id", bookID)
	return updated, nil
}

// coverEdit builds the cover request for an edit. An explicitly blank
// cover_url without a file clears the cover. A retitled book whose cover is
// still our placeholder gets a fresh placeholder.
func (s *BookService) coverEdit(current *domain.Book, title string, req UpdateBookRequest) (covers.CoverRequest, bool) {
	coverReq := covers.CoverRequest{
		OwnerID:    current.UserID,
		BookID:     current.ID,
		Title:      title,
		CurrentURL: current.CoverURL,
		File:       coverFile(req.CoverFile, req.CoverFileName),
		Clear:      req.ClearCover,
	}
	if req.CoverURL != nil {
		coverReq.URL = *req.CoverURL
		if strings.TrimSpace(coverReq.URL) == "" && coverReq.File == nil {
			coverReq.Clear = true
		}
	}

	if coverReq.File != nil || strings.TrimSpace(coverReq.URL) != "" || coverReq.Clear {
		return coverReq, true
	}
	if title != current.Title && s.covers.Placeholder().Owns(current.CoverURL) {
		coverReq.Clear = true
		return coverReq, true
	}
	return coverReq, false
}

// applyProgressEdit changes the page count, pages read and status of book.
// The page count may not drop below what has already been read.
func applyProgressEdit(book *domain.Book, req UpdateBookRequest, requested *domain.BookStatus) error {
	switch {
	case req.ClearTotalPages:
		book.TotalPages = nil
	case req.TotalPages != nil:
		book.TotalPages = domain.IntPtr(*req.TotalPages)
	}

	if req.PagesRead != nil {
		book.PagesRead = *req.PagesRead
	}

	if book.TotalPages != nil && book.PagesRead > *book.TotalPages {
		field := "total_pages"
		if req.PagesRead != nil {
			field = "pages_read"
		}
		return domainerrors.ValidationWithDetails(
			fmt.Sprintf("pages_read (%d) cannot exceed total_pages (%d)", book.PagesRead, *book.TotalPages),
			map[string]string{field: "conflicts with the book's progress"},
		)
	}

	status := book.Status
	if requested != nil {
		status = *requested
	}
	book.Status = progress.NormalizeStatus(status, book.PagesRead, book.TotalPages)
	return nil
}

// GetBook returns one of the owner's books.
func (s *BookService) GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, ownerID, bookID)
	if err != nil {
		return nil, storeError(err, "book")
	}
	return book, nil
}

// ListBooks returns the owner's books filtered by q and sorted by order.
func (s *BookService) ListBooks(ctx context.Context, ownerID string, q projection.Query, order projection.Order) ([]domain.Book, error) {
	books, err := s.store.ListBooks(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, "books")
	}
	return projection.Apply(derefBooks(books), q, order), nil
}

// Categories returns the distinct categories the owner has used.
func (s *BookService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	books, err := s.store.ListBooks(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, "books")
	}
	return projection.Categories(derefBooks(books)), nil
}

// DeleteBook removes a book with its sessions, then its hosted cover.
func (s *BookService) DeleteBook(ctx context.Context, ownerID, bookID string) error {
	deleted, err := s.store.DeleteBook(ctx, ownerID, bookID)
	if err != nil {
		return storeError(err, "book")
	}

	s.covers.Discard(ctx, ownerID, deleted.CoverURL)
	s.logger.InfoContext(ctx, "book deleted", "user_id", ownerID, "book_id", bookID)
	return nil
}

// releaseCover deletes the cover a successful write replaced.
func (s *BookService) releaseCover(ctx context.Context, ownerID string, res covers.Resolution) {
	if res.Release != "" {
		s.covers.Discard(ctx, ownerID, res.Release)
	}
}

func (s *BookService) discardUpload(ctx context.Context, ownerID string, res covers.Resolution) {
	if res.Uploaded != nil {
		s.covers.Discard(ctx, ownerID, res.URL)
	}
}

func coverFile(data []byte, name string) *covers.File {
	if len(data) == 0 {
		return nil
	}
	return &covers.File{Data: data, Name: name}
}

// parseStatus accepts an empty status as "not specified".
func parseStatus(raw string) (domain.BookStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	status, err := domain.ParseStatus(raw)
	if err != nil {
		return "", domainerrors.ValidationWithDetails(err.Error(),
			map[string]string{"status": "must be one of: want_to_read, reading, finished"})
	}
	return status, nil
}

func derefBooks(books []*domain.Book) []domain.Book {
	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		out = append(out, *b)
	}
	return out
}
