package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vadimbarashkov/surl/internal/entity"
	"github.com/vadimbarashkov/surl/internal/kv"
	"github.com/vadimbarashkov/surl/internal/shortcode"
)

type urlAllocator interface {
	Allocate(ctx context.Context, url []byte) (string, error)
}

type linkReader interface {
	Get(ctx context.Context, ns kv.Namespace, key []byte) ([]byte, error)
}

// URLUseCase creates and resolves short links.
// Creation goes through the allocator; resolution reads the store directly and
// never waits on an issuance in progress.
type URLUseCase struct {
	alloc urlAllocator
	links linkReader
}

func NewURLUseCase(alloc urlAllocator, links linkReader) *URLUseCase {
	return &URLUseCase{
		alloc: alloc,
		links: links,
	}
}

// ShortenURL issues a short code for originalURL. The URL is stored exactly as given.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.Link, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if originalURL == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrEmptyURL)
	}

	shortCode, err := uc.alloc.Allocate(ctx, []byte(originalURL))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to shorten url: %w: %w", op, entity.ErrStorage, err)
	}

	return &entity.Link{
		ShortCode:   shortCode,
		OriginalURL: originalURL,
	}, nil
}

// ResolveShortCode returns the URL stored under shortCode or entity.ErrURLNotFound.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	if !shortcode.Valid(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	val, err := uc.links.Get(ctx, kv.Links, []byte(shortCode))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to resolve short code: %w: %w", op, entity.ErrStorage, err)
	}

	return &entity.Link{
		ShortCode:   shortCode,
		OriginalURL: string(val),
	}, nil
}
