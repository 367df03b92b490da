package repositories

import (
	"errors"
	"fmt"

	"grimoire/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMBookRepository is a GORM implementation of BookRepository.
type GORMBookRepository struct {
	db *gorm.DB
}

// NewGORMBookRepository creates a new instance of GORMBookRepository.
func NewGORMBookRepository(db *gorm.DB) *GORMBookRepository {
	return &GORMBookRepository{
		db: db,
	}
}

// GetAll retrieves all books from the database.
func (r *GORMBookRepository) GetAll() ([]models.Book, error) {
	var books []models.Book
	if err := r.db.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to get all books: %w", err)
	}
	return books, nil
}

// GetByID retrieves a single book by its ID from the database.
func (r *GORMBookRepository) GetByID(id string) (*models.Book, error) {
	var book models.Book
	if err := r.db.First(&book, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book by ID %s: %w", id, err)
	}
	return &book, nil
}

// GetTopRated retrieves up to limit books ordered by average rating,
// highest first. Ties come back in storage order.
func (r *GORMBookRepository) GetTopRated(limit int) ([]models.Book, error) {
	var books []models.Book
	if err := r.db.Order("average_rating DESC").Limit(limit).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to get top rated books: %w", err)
	}
	return books, nil
}

// Create creates a new book in the database.
func (r *GORMBookRepository) Create(book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if err := r.db.Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// Update persists the metadata and image fields of an existing book,
// including zero values. Ratings, average and version are deliberately left
// out so a metadata save can never clobber a concurrent rating write.
func (r *GORMBookRepository) Update(book *models.Book) error {
	res := r.db.Model(&models.Book{}).
		Where("id = ?", book.ID).
		Select("title", "author", "year", "genre", "image_url").
		Updates(book)
	if res.Error != nil {
		return fmt.Errorf("failed to update book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// GORM doesn't return ErrRecordNotFound when no rows match an
		// update, so we check RowsAffected.
		return ErrNotFound
	}
	return nil
}

// Delete deletes a book by its ID from the database.
func (r *GORMBookRepository) Delete(id string) error {
	res := r.db.Delete(&models.Book{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRatings replaces the ratings list and average of one book in a
// single conditional write. The WHERE clause carries the version the caller
// loaded; if another writer bumped it in the meantime no row matches and the
// caller gets ErrVersionConflict to retry from a fresh read.
func (r *GORMBookRepository) UpdateRatings(id string, ratings []models.Rating, average float64, expectedVersion int) error {
	res := r.db.Model(&models.Book{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Select("ratings", "average_rating", "version").
		Updates(models.Book{
			Ratings:       ratings,
			AverageRating: average,
			Version:       expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update ratings for book %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the book is gone or the version moved; tell them apart so
		// the service can fail NotFound instead of retrying forever.
		var count int64
		if err := r.db.Model(&models.Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check book %s after conflict: %w", id, err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}
