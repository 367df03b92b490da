package repositories

import "grimoire/internal/models"

// BookRepository defines the interface for book data access.
//
// UpdateRatings is the only write that replaces the ratings list: it must be
// a single conditional update guarded by the expected version, returning
// ErrVersionConflict when the row changed underneath the caller.
type BookRepository interface {
	GetAll() ([]models.Book, error)
	GetByID(id string) (*models.Book, error)
	GetTopRated(limit int) ([]models.Book, error)
	Create(book *models.Book) error
	Update(book *models.Book) error
	Delete(id string) error
	UpdateRatings(id string, ratings []models.Rating, average float64, expectedVersion int) error
}
