package repositories

import (
	"sort"
	"sync"

	"grimoire/internal/models"

	"github.com/google/uuid"
)

// MockBookRepository is an in-memory implementation of BookRepository. It
// honors the same version semantics as the GORM implementation so the
// rating write path can be exercised without a database.
type MockBookRepository struct {
	books map[string]models.Book
	mu    sync.RWMutex
}

// NewMockBookRepository creates a new instance of MockBookRepository.
func NewMockBookRepository() *MockBookRepository {
	return &MockBookRepository{
		books: make(map[string]models.Book),
	}
}

// GetAll returns all books.
func (r *MockBookRepository) GetAll() ([]models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bookList := make([]models.Book, 0, len(r.books))
	for _, b := range r.books {
		bookList = append(bookList, b)
	}
	return bookList, nil
}

// GetByID returns a book by its ID.
func (r *MockBookRepository) GetByID(id string) (*models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	book.Ratings = append([]models.Rating(nil), book.Ratings...)
	return &book, nil
}

// GetTopRated returns up to limit books sorted by average rating descending.
func (r *MockBookRepository) GetTopRated(limit int) ([]models.Book, error) {
	books, err := r.GetAll()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].AverageRating > books[j].AverageRating
	})
	if limit < len(books) {
		books = books[:limit]
	}
	return books, nil
}

// Create adds a new book.
func (r *MockBookRepository) Create(book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	r.books[book.ID] = *book
	return nil
}

// Update modifies the metadata and image fields of an existing book,
// matching the column set the GORM implementation writes.
func (r *MockBookRepository) Update(book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.books[book.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Title = book.Title
	existing.Author = book.Author
	existing.Year = book.Year
	existing.Genre = book.Genre
	existing.ImageURL = book.ImageURL
	r.books[book.ID] = existing
	return nil
}

// Delete removes a book by its ID.
func (r *MockBookRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.books[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.books, id)
	return nil
}

// UpdateRatings applies the conditional rating write under the repository
// lock, mirroring the single-statement UPDATE of the GORM implementation.
func (r *MockBookRepository) UpdateRatings(id string, ratings []models.Rating, average float64, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return ErrNotFound
	}
	if book.Version != expectedVersion {
		return ErrVersionConflict
	}
	book.Ratings = append([]models.Rating(nil), ratings...)
	book.AverageRating = average
	book.Version = expectedVersion + 1
	r.books[id] = book
	return nil
}
