package cart

import (
	"github.com/rs/zerolog/log"
)

// Product is the catalog shape fed into AddProduct. The cart copies what it
// needs; it never reaches back into the catalog afterwards.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	ImageRef string  `json:"image_ref,omitempty"`
}

// Line is one product entry in the cart. Quantity never persists at zero:
// a decrement that reaches zero removes the line instead.
type Line struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ImageRef  string  `json:"image_ref,omitempty"`
}

// Store is a single-writer collection of cart lines backed by a snapshot
// port. Every mutation rewrites the whole snapshot, so on reload the last
// write wins; concurrent writers are explicitly out of contract (one
// session owns one cart).
type Store struct {
	port  SnapshotPort
	lines []Line
	total float64
}

// NewStore loads the previous snapshot through port. A missing or unreadable
// snapshot starts an empty cart rather than failing: stale client state is
// never worth blocking a session over.
func NewStore(port SnapshotPort) *Store {
	lines, err := port.Load()
	if err != nil {
		log.Warn().Err(err).Msg("cart: failed to load snapshot, starting empty")
		lines = nil
	}
	return &Store{port: port, lines: lines}
}

// AddProduct merges by product id: an existing line gains quantity 1, a new
// product appends a line with quantity 1.
func (s *Store) AddProduct(p Product) error {
	if line := s.find(p.ID); line != nil {
		line.Quantity++
	} else {
		s.lines = append(s.lines, Line{
			ProductID: p.ID,
			Title:     p.Title,
			UnitPrice: p.Price,
			Quantity:  1,
			ImageRef:  p.ImageRef,
		})
	}
	return s.persist()
}

// PlusFromCart increments the matching line by 1. An unknown product id is
// a no-op, not an error.
func (s *Store) PlusFromCart(productID string) error {
	line := s.find(productID)
	if line == nil {
		return nil
	}
	line.Quantity++
	return s.persist()
}

// MinusFromCart decrements the matching line by 1 and removes the line when
// its quantity reaches zero. An unknown product id is a no-op.
func (s *Store) MinusFromCart(productID string) error {
	line := s.find(productID)
	if line == nil {
		return nil
	}
	line.Quantity--
	if line.Quantity <= 0 {
		s.remove(productID)
	}
	return s.persist()
}

// TotalPrice recomputes the cached total over all lines and returns it.
// It is not kept in sync by the mutation methods; callers recompute once
// after a batch of mutations instead of paying for it on every step.
func (s *Store) TotalPrice() float64 {
	total := 0.0
	for _, line := range s.lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	s.total = total
	return total
}

// Total returns the value cached by the last TotalPrice call.
func (s *Store) Total() float64 {
	return s.total
}

// Lines returns a copy of the current cart lines.
func (s *Store) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) Len() int {
	return len(s.lines)
}

// ClearCart empties the collection and removes the persisted snapshot.
// Called exactly once, right after a successful order submission.
func (s *Store) ClearCart() error {
	s.lines = nil
	s.total = 0
	return s.port.Clear()
}

func (s *Store) find(productID string) *Line {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return &s.lines[i]
		}
	}
	return nil
}

func (s *Store) remove(productID string) {
	kept := s.lines[:0]
	for _, line := range s.lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	s.lines = kept
}

func (s *Store) persist() error {
	return s.port.Save(s.lines)
}
