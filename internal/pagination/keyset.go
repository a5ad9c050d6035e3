package pagination

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var errMissingQuery = errors.New("pagination: base query is required")

// Keyset names the qualified columns a feed is ordered by.
type Keyset struct {
	OrderColumn string
	IDColumn    string
}

// after returns the strict "comes after the cursor" predicate for descending order.
// Comparing on the order key alone would skip or repeat rows that share a timestamp.
func (k Keyset) after(cursor Cursor) (string, []any) {
	predicate := fmt.Sprintf("(%s < ? OR (%s = ? AND %s < ?))", k.OrderColumn, k.OrderColumn, k.IDColumn)
	return predicate, []any{cursor.OrderKey, cursor.OrderKey, cursor.ID}
}

func (k Keyset) orderBy() (string, string) {
	return k.OrderColumn + " DESC", k.IDColumn + " DESC"
}

// KeyFunc extracts the keyset position of a row.
type KeyFunc[T any] func(T) Cursor

// Page is one slice of a feed plus the cursor for the following slice.
// NextCursor is nil on the terminal page.
type Page[T any] struct {
	Items      []T
	NextCursor *Cursor
}

// HasMore reports whether another page follows.
func (p Page[T]) HasMore() bool {
	return p.NextCursor != nil
}

// Paginate applies the keyset predicate, ordering and limit+1 fetch to query and
// scans the rows into T.
func Paginate[T any](ctx context.Context, query *gorm.DB, keyset Keyset, request Request, key KeyFunc[T]) (Page[T], error) {
	if err := request.Validate(); err != nil {
		return Page[T]{}, err
	}
	if query == nil {
		return Page[T]{}, errMissingQuery
	}

	scoped := query.WithContext(ctx)
	if request.Cursor != nil {
		predicate, args := keyset.after(*request.Cursor)
		scoped = scoped.Where(predicate, args...)
	}

	primaryOrder, tiebreakOrder := keyset.orderBy()
	var rows []T
	if err := scoped.
		Order(primaryOrder).
		Order(tiebreakOrder).
		Limit(request.Limit + 1).
		Scan(&rows).Error; err != nil {
		return Page[T]{}, err
	}

	return Window(rows, request.Limit, key), nil
}

// Window trims a limit+1 result set down to one page.
func Window[T any](rows []T, limit int, key KeyFunc[T]) Page[T] {
	if rows == nil || limit < MinLimit {
		return Page[T]{Items: []T{}}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}

	items := rows[:limit]
	next := key(items[len(items)-1])
	return Page[T]{Items: items, NextCursor: &next}
}
