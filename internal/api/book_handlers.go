package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/projection"
	"github.com/pagetrail/pagetrail-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns the caller's books filtered by search text, category and status",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Add book",
		Description:   "Adds a book. The cover comes from an upload, a URL, or a generated placeholder.",
		Tags:          []string{"Books"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  s.bookBodyLimit,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Edit book",
		Description:  "Updates the fields present in the body. Omitted fields keep their value.",
		Tags:         []string{"Books"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: s.bookBodyLimit,
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBook",
		Method:        http.MethodDelete,
		Path:          "/api/v1/books/{id}",
		Summary:       "Delete book",
		Description:   "Deletes a book, its reading sessions, and its hosted cover",
		Tags:          []string{"Books"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List categories",
		Description: "Returns the distinct categories across the caller's books",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListCategories)
}

// === DTOs ===

// BookResponse is the wire form of a book.
type BookResponse struct {
	ID            string    `json:"id" doc:"Book ID"`
	Title         string    `json:"title" doc:"Title"`
	Author        string    `json:"author" doc:"Author"`
	Category      string    `json:"category" doc:"Category"`
	ISBN          string    `json:"isbn,omitempty" doc:"ISBN"`
	Description   string    `json:"description,omitempty" doc:"Description"`
	CoverURL      string    `json:"cover_url" doc:"Cover image URL"`
	CoverBlurHash string    `json:"cover_blur_hash,omitempty" doc:"BlurHash of a hosted cover"`
	Status        string    `json:"status" doc:"want_to_read, reading or finished"`
	TotalPages    *int      `json:"total_pages,omitempty" doc:"Page count, absent when unknown"`
	PagesRead     int       `json:"pages_read" doc:"Pages read so far"`
	Percent       *int      `json:"percent,omitempty" doc:"Whole-number progress, absent when the page count is unknown"`
	Revision      int64     `json:"revision" doc:"Increments on every change"`
	CreatedAt     time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt     time.Time `json:"updated_at" doc:"Last change"`
}

// BookOutput wraps a book for Huma.
type BookOutput struct {
	Body BookResponse
}

// ListBooksInput holds the list filters.
type ListBooksInput struct {
	Search   string `query:"search" doc:"Case-insensitive match on title or author"`
	Category string `query:"category" doc:"Exact category, or All"`
	Status   string `query:"status" doc:"Status filter, or All"`
	Sort     string `query:"sort" doc:"Ordering, default updated_desc"`
}

// ListBooksResponse contains the filtered books.
type ListBooksResponse struct {
	Books []BookResponse `json:"books" doc:"Matching books"`
	Total int            `json:"total" doc:"Number of matching books"`
}

// ListBooksOutput wraps the book list for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// CreateBookRequest is the request body for adding a book.
type CreateBookRequest struct {
	Title         string `json:"title" doc:"Title"`
	Author        string `json:"author,omitempty" doc:"Author"`
	Category      string `json:"category,omitempty" doc:"Category"`
	ISBN          string `json:"isbn,omitempty" doc:"ISBN"`
	Description   string `json:"description,omitempty" doc:"Description"`
	Status        string `json:"status,omitempty" doc:"Initial status, derived from progress when omitted"`
	TotalPages    *int   `json:"total_pages,omitempty" doc:"Page count"`
	PagesRead     int    `json:"pages_read,omitempty" doc:"Pages already read"`
	CoverURL      string `json:"cover_url,omitempty" doc:"Remote cover URL"`
	CoverFile     []byte `json:"cover_file,omitempty" doc:"Uploaded cover image, base64"`
	CoverFileName string `json:"cover_file_name,omitempty" doc:"Original name of the upload"`
}

// CreateBookInput wraps the create request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// BookIDInput addresses one book.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// UpdateBookRequest is the request body for editing a book.
type UpdateBookRequest struct {
	Title           *string `json:"title,omitempty" doc:"Title"`
	Author          *string `json:"author,omitempty" doc:"Author"`
	Category        *string `json:"category,omitempty" doc:"Category"`
	ISBN            *string `json:"isbn,omitempty" doc:"ISBN"`
	Description     *string `json:"description,omitempty" doc:"Description"`
	Status          *string `json:"status,omitempty" doc:"Status"`
	TotalPages      *int    `json:"total_pages,omitempty" doc:"Page count"`
	ClearTotalPages bool    `json:"clear_total_pages,omitempty" doc:"Forget the page count"`
	PagesRead       *int    `json:"pages_read,omitempty" doc:"Pages read"`
	CoverURL        *string `json:"cover_url,omitempty" doc:"Remote cover URL"`
	CoverFile       []byte  `json:"cover_file,omitempty" doc:"Uploaded cover image, base64"`
	CoverFileName   string  `json:"cover_file_name,omitempty" doc:"Original name of the upload"`
	ClearCover      bool    `json:"clear_cover,omitempty" doc:"Replace the cover with a placeholder"`
}

// UpdateBookInput wraps the update request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateBookRequest
}

// CategoriesResponse lists the caller's categories.
type CategoriesResponse struct {
	Categories []string `json:"categories" doc:"Distinct categories, sorted"`
}

// CategoriesOutput wraps the category list for Huma.
type CategoriesOutput struct {
	Body CategoriesResponse
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	q := projection.Query{Search: input.Search, Category: input.Category, Status: input.Status}
	books, err := s.services.Book.ListBooks(ctx, userID, q, projection.ParseOrder(input.Sort))
	if err != nil {
		return nil, apiError(err)
	}

	resp := ListBooksResponse{Books: make([]BookResponse, len(books)), Total: len(books)}
	for i := range books {
		resp.Books[i] = mapBook(&books[i])
	}
	return &ListBooksOutput{Body: resp}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	b := input.Body
	book, err := s.services.Book.CreateBook(ctx, userID, service.CreateBookRequest{
		Title:         b.Title,
		Author:        b.Author,
		Category:      b.Category,
		ISBN:          b.ISBN,
		Description:   b.Description,
		Status:        b.Status,
		TotalPages:    b.TotalPages,
		PagesRead:     b.PagesRead,
		CoverURL:      b.CoverURL,
		CoverFile:     b.CoverFile,
		CoverFileName: b.CoverFileName,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.GetBook(ctx, userID, input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	b := input.Body
	book, err := s.services.Book.UpdateBook(ctx, userID, input.ID, service.UpdateBookRequest{
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		ISBN:            b.ISBN,
		Description:     b.Description,
		Status:          b.Status,
		TotalPages:      b.TotalPages,
		ClearTotalPages: b.ClearTotalPages,
		PagesRead:       b.PagesRead,
		CoverURL:        b.CoverURL,
		CoverFile:       b.CoverFile,
		CoverFileName:   b.CoverFileName,
		ClearCover:      b.ClearCover,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Book.DeleteBook(ctx, userID, input.ID); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (s *Server) handleListCategories(ctx context.Context, _ *struct{}) (*CategoriesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.services.Book.Categories(ctx, userID)
	if err != nil {
		return nil, apiError(err)
	}

	if categories == nil {
		categories = []string{}
	}
	return &CategoriesOutput{Body: CategoriesResponse{Categories: categories}}, nil
}

// === Mappers ===

func mapBook(b *domain.Book) BookResponse {
	resp := BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Category:      b.Category,
		ISBN:          b.ISBN,
		Description:   b.Description,
		CoverURL:      b.CoverURL,
		CoverBlurHash: b.CoverBlurHash,
		Status:        string(b.Status),
		TotalPages:    b.TotalPages,
		PagesRead:     b.PagesRead,
		Revision:      b.Revision,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if p := b.Percent(); p >= 0 {
		resp.Percent = &p
	}
	return resp
}
