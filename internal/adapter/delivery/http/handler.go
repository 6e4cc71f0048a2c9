package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/surl/internal/entity"
	"github.com/vadimbarashkov/surl/internal/shortcode"
)

const (
	maxFormBytes  = 1 << 20
	maxFormMemory = 1 << 20
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

// handleHead answers HEAD on any path without touching the store.
func handleHead(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.Link, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	website  string
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate, website string) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
		website:  website,
	}
}

// newLink handles the form-encoded POST /new and replies with {"url": website + id}.
func (h *urlHandler) newLink(w http.ResponseWriter, r *http.Request) {
	values, err := readForm(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	form := newLinkForm{URL: values.Get("url")}

	if err := h.validate.Struct(form); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	link, ok := h.shorten(w, r, form.URL)
	if !ok {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newLinkResponse{URL: h.website + link.ShortCode})
}

// readForm decodes the body as URL-encoded form data whatever Content-Type
// says; only multipart bodies are parsed as such.
func readForm(r *http.Request) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil {
		return nil, err
	}

	return url.ParseQuery(string(body))
}

// redirect treats the request path as an identifier. Unknown identifiers get
// an empty 200 rather than an error.
func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	link, err := h.useCase.ResolveShortCode(r.Context(), r.URL.Path)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			w.WriteHeader(http.StatusOK)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", link.OriginalURL)
	w.WriteHeader(http.StatusMovedPermanently)
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	link, ok := h.shorten(w, r, req.URL)
	if !ok {
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLinkResponse(link, h.website))
}

// resolveShortCode serves GET /api/v1/shorten/{shortCode}; the code is given
// without its leading prefix.
func (h *urlHandler) resolveShortCode(w http.ResponseWriter, r *http.Request) {
	shortCode := string(shortcode.Prefix) + chi.URLParam(r, "shortCode")

	link, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toLinkResponse(link, h.website))
}

// shorten writes the error response itself and reports whether the caller
// should continue.
func (h *urlHandler) shorten(w http.ResponseWriter, r *http.Request, originalURL string) (*entity.Link, bool) {
	link, err := h.useCase.ShortenURL(r.Context(), originalURL)
	if err != nil {
		if errors.Is(err, entity.ErrEmptyURL) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyURLResponse)
			return nil, false
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return nil, false
	}

	return link, true
}
