package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bjaus/dtoapi"
	"github.com/bjaus/dtoapi/dto"
)

// Book is both the database row and the model behind every book DTO.
// Notes stay server-side: leading-underscore names are private.
type Book struct {
	ID        int64     `db:"id" json:"id" dto:"read-only" doc:"Book ID"`
	Title     string    `db:"title" json:"title" minLength:"1" maxLength:"200" doc:"Title"`
	Author    string    `db:"author" json:"author" doc:"Author name"`
	Pages     int       `db:"pages" json:"pages" minimum:"1"`
	CreatedAt time.Time `db:"created_at" json:"created_at" dto:"read-only"`
	Notes     string    `db:"notes" json:"_notes"`
}

// BookPage wraps a page of books. Only Items goes through the return DTO.
type BookPage struct {
	Items []Book `json:"items"`
	Total int    `json:"total"`
}

type HealthResp struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type ListBooksReq struct {
	Limit  int `query:"limit" doc:"Max results" default:"20" minimum:"1" maximum:"100"`
	Offset int `query:"offset" doc:"Pagination offset" default:"0" minimum:"0"`
}

type BookByIDReq struct {
	ID int64 `path:"id" doc:"Book ID"`
}

type UpdateBookReq struct {
	ID   int64 `path:"id" doc:"Book ID"`
	Body Book
}

type books struct {
	store bookStore
}

func (h *books) health(_ context.Context, _ *dtoapi.Void) (*HealthResp, error) {
	return &HealthResp{Status: "ok", Time: time.Now()}, nil
}

func (h *books) list(ctx context.Context, req *ListBooksReq) (*BookPage, error) {
	items, total, err := h.store.List(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	return &BookPage{Items: items, Total: total}, nil
}

func (h *books) get(ctx context.Context, req *BookByIDReq) (*Book, error) {
	b, err := h.store.Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, req.ID)
	}
	return &b, nil
}

func (h *books) create(ctx context.Context, req *Book) (*Book, error) {
	b, err := h.store.Create(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (h *books) update(ctx context.Context, req *UpdateBookReq) (*Book, error) {
	b, err := h.store.Update(ctx, req.ID, req.Body)
	if err != nil {
		return nil, storeError(err, req.ID)
	}
	return &b, nil
}

func (h *books) remove(ctx context.Context, req *BookByIDReq) (*dtoapi.Void, error) {
	if err := h.store.Delete(ctx, req.ID); err != nil {
		return nil, storeError(err, req.ID)
	}
	return nil, nil
}

func storeError(err error, id int64) error {
	if errors.Is(err, errNotFound) {
		return dtoapi.Errorf(http.StatusNotFound, "book %d not found", id)
	}
	return err
}

func newRouter(store bookStore, logger *slog.Logger, cfg ServerConfig) *dtoapi.Router {
	r := dtoapi.New(
		dtoapi.WithTitle("Books API"),
		dtoapi.WithVersion("1.0.0"),
		dtoapi.WithLogger(logger),
		dtoapi.WithTagDescriptions(map[string]string{
			"books": "Book catalog",
			"ops":   "Operational endpoints",
		}),
	)

	r.Use(dtoapi.Recovery(logger))
	r.Use(dtoapi.RequestID())
	r.Use(dtoapi.Logger(logger))
	if cfg.RateLimit > 0 {
		r.Use(dtoapi.RateLimit(dtoapi.RateLimitConfig{Rate: cfg.RateLimit, Burst: cfg.Burst}))
	}

	r.ServeSpec("/openapi.json")
	r.ServeSpecYAML("/openapi.yaml")

	h := &books{store: store}
	v1 := r.Group("/v1", dtoapi.WithGroupTags("v1"))

	dtoapi.Get(v1, "/health", h.health,
		dtoapi.WithSummary("Health check"),
		dtoapi.WithTags("ops"),
	)

	dtoapi.Get(v1, "/books", h.list,
		dtoapi.WithSummary("List books"),
		dtoapi.WithTags("books"),
		dtoapi.WithReturnDTO(dtoapi.DTOWrapper("Items")),
	)
	dtoapi.Post(v1, "/books", h.create,
		dtoapi.WithStatus(http.StatusCreated),
		dtoapi.WithSummary("Create book"),
		dtoapi.WithTags("books"),
		dtoapi.WithDataDTO(),
		dtoapi.WithReturnDTO(),
	)
	dtoapi.Get(v1, "/books/{id}", h.get,
		dtoapi.WithSummary("Get book by ID"),
		dtoapi.WithTags("books"),
		dtoapi.WithErrors(http.StatusNotFound),
		dtoapi.WithReturnDTO(),
	)
	dtoapi.Patch(v1, "/books/{id}", h.update,
		dtoapi.WithSummary("Update book"),
		dtoapi.WithDescription("Only the fields present in the body are changed."),
		dtoapi.WithTags("books"),
		dtoapi.WithErrors(http.StatusNotFound),
		dtoapi.WithDataDTO(dtoapi.DTOConfig(dto.Config{Partial: true})),
		dtoapi.WithReturnDTO(),
	)
	dtoapi.Delete(v1, "/books/{id}", h.remove,
		dtoapi.WithSummary("Delete book"),
		dtoapi.WithTags("books"),
		dtoapi.WithErrors(http.StatusNotFound),
	)

	return r
}
