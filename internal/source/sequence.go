package source

import (
	"context"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

// Sequence is a bounded, lazily paginated listing of one relation of one user.
// The pagination cursor only advances after a page was fetched successfully,
// so calling Next again after an error retries the same page.
type Sequence struct {
	src      Source
	rel      Relation
	id       graph.UserID
	limit    int
	pageSize int

	cursor    string
	exhausted bool
	buf       []User
	yielded   int
	pages     int
}

// NewSequence creates a sequence yielding at most limit users, fetched pageSize at a time
func NewSequence(src Source, rel Relation, id graph.UserID, limit, pageSize int) *Sequence {
	if pageSize <= 0 {
		pageSize = limit
	}
	return &Sequence{
		src:      src,
		rel:      rel,
		id:       id,
		limit:    limit,
		pageSize: pageSize,
	}
}

// Next returns the next related user. ok is false once the limit is reached
// or the listing has no more pages.
func (s *Sequence) Next(ctx context.Context) (user User, ok bool, err error) {
	if s.yielded >= s.limit {
		return User{}, false, nil
	}

	for len(s.buf) == 0 {
		if s.exhausted {
			return User{}, false, nil
		}

		count := s.limit - s.yielded
		if count > s.pageSize {
			count = s.pageSize
		}

		page, err := s.src.ListRelations(ctx, s.rel, s.id, s.cursor, count)
		if err != nil {
			return User{}, false, err
		}

		s.pages++
		s.buf = page.Users
		s.cursor = page.NextCursor
		if page.NextCursor == "" {
			s.exhausted = true
		}
	}

	user = s.buf[0]
	s.buf = s.buf[1:]
	s.yielded++
	return user, true, nil
}

// Cursor returns the cursor of the next page to fetch
func (s *Sequence) Cursor() string {
	return s.cursor
}

// Yielded returns how many users have been returned so far
func (s *Sequence) Yielded() int {
	return s.yielded
}

// Pages returns how many pages were fetched successfully
func (s *Sequence) Pages() int {
	return s.pages
}
