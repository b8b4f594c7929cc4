// Package paginator slices ordered results into fixed-size, numbered pages.
package paginator

import (
	"context"
	"strconv"
	"strings"
)

// PageSize is the number of posts shown per page.
const PageSize = 10

// Page is one slice of an ordered result plus its position.
type Page[T any] struct {
	Items    []T
	Number   int
	NumPages int
	Total    int64
}

// HasNext reports whether a later page exists.
func (p Page[T]) HasNext() bool { return p.Number < p.NumPages }

// HasPrevious reports whether an earlier page exists.
func (p Page[T]) HasPrevious() bool { return p.Number > 1 }

// HasOtherPages reports whether navigation links are needed.
func (p Page[T]) HasOtherPages() bool { return p.NumPages > 1 }

// NextNumber is the number of the following page.
func (p Page[T]) NextNumber() int { return p.Number + 1 }

// PreviousNumber is the number of the preceding page.
func (p Page[T]) PreviousNumber() int { return p.Number - 1 }

// Len is the number of items on this page.
func (p Page[T]) Len() int { return len(p.Items) }

// PageRange lists every page number, for rendering navigation.
func (p Page[T]) PageRange() []int {
	r := make([]int, p.NumPages)
	for i := range r {
		r[i] = i + 1
	}
	return r
}

// Offset is the index of the first item of this page in the whole result.
func (p Page[T]) Offset(size int) int {
	return (p.Number - 1) * normalizeSize(size)
}

// NumPages returns ceil(total/size), and 1 for an empty result.
func NumPages(total int64, size int) int {
	size = normalizeSize(size)
	if total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Resolve turns the raw page query value into a valid page number.
// Missing, non-numeric and non-positive values give 1; values past the end
// give the last page.
func Resolve(total int64, size int, raw string) (number, numPages int) {
	numPages = NumPages(total, size)

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case err != nil, n < 1:
		return 1, numPages
	case n > numPages:
		return numPages, numPages
	default:
		return n, numPages
	}
}

// Paginate returns the requested page of items.
func Paginate[T any](items []T, size int, raw string) Page[T] {
	size = normalizeSize(size)
	total := int64(len(items))
	number, numPages := Resolve(total, size, raw)

	start := (number - 1) * size
	end := start + size
	if end > len(items) {
		end = len(items)
	}

	return Page[T]{
		Items:    items[start:end],
		Number:   number,
		NumPages: numPages,
		Total:    total,
	}
}

// Source is an ordered result that can be counted and read in windows.
type Source[T any] interface {
	Count(ctx context.Context) (int64, error)
	Fetch(ctx context.Context, offset, limit int) ([]T, error)
}

// PaginateSource counts src and fetches only the requested page.
func PaginateSource[T any](ctx context.Context, src Source[T], size int, raw string) (Page[T], error) {
	size = normalizeSize(size)

	total, err := src.Count(ctx)
	if err != nil {
		return Page[T]{}, err
	}

	number, numPages := Resolve(total, size, raw)
	page := Page[T]{Number: number, NumPages: numPages, Total: total}
	if total == 0 {
		return page, nil
	}

	items, err := src.Fetch(ctx, (number-1)*size, size)
	if err != nil {
		return Page[T]{}, err
	}
	page.Items = items
	return page, nil
}

func normalizeSize(size int) int {
	if size <= 0 {
		return PageSize
	}
	return size
}
