package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"grimoire/internal/middleware"
	"grimoire/internal/models"
	"grimoire/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ImageSaver stores an uploaded cover image and returns its public URL.
type ImageSaver interface {
	Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// BookHandler handles HTTP requests for books and ratings.
type BookHandler struct {
	bookService   *services.BookService
	ratingService *services.RatingService
	images        ImageSaver
	validate      *validator.Validate
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookService *services.BookService, ratingService *services.RatingService, images ImageSaver) *BookHandler {
	return &BookHandler{
		bookService:   bookService,
		ratingService: ratingService,
		images:        images,
		validate:      validator.New(),
	}
}

// RegisterRoutes registers the book routes with the Fiber app. Reads are
// public; mutations go through the auth middleware.
func (h *BookHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	bookRoutes := router.Group("/books")
	bookRoutes.Get("/", h.HandleGetBooks)
	bookRoutes.Get("/bestrating", h.HandleGetBestRating)
	bookRoutes.Get("/:id", h.HandleGetBookByID)
	bookRoutes.Post("/", auth, h.HandleCreateBook)
	bookRoutes.Put("/:id", auth, h.HandleUpdateBook)
	bookRoutes.Delete("/:id", auth, h.HandleDeleteBook)
	bookRoutes.Post("/:id/rating", auth, h.HandleAddRating)
}

// HandleGetBooks retrieves all books.
func (h *BookHandler) HandleGetBooks(c *fiber.Ctx) error {
	books, err := h.bookService.GetAllBooks()
	if err != nil {
		log.Printf("Error getting all books: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve books",
		})
	}
	return c.JSON(books)
}

// HandleGetBestRating retrieves the three best-rated books.
func (h *BookHandler) HandleGetBestRating(c *fiber.Ctx) error {
	books, err := h.bookService.GetTopRated(0)
	if err != nil {
		log.Printf("Error getting best rated books: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve books",
		})
	}
	return c.JSON(books)
}

// HandleGetBookByID retrieves a single book by its ID.
func (h *BookHandler) HandleGetBookByID(c *fiber.Ctx) error {
	bookID := c.Params("id")
	book, err := h.bookService.GetBookByID(bookID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Book with ID %s not found", bookID),
			})
		}
		log.Printf("Error getting book by ID %s: %v", bookID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve book",
		})
	}
	return c.JSON(book)
}

// HandleCreateBook creates a new book from a multipart request carrying a
// "book" JSON field and an "image" file part.
func (h *BookHandler) HandleCreateBook(c *fiber.Ctx) error {
	callerID := middleware.CallerID(c)

	var book models.Book
	if err := h.parseBookPayload(c, &book); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(book); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	imageURL, err := h.saveUploadedImage(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Cover image is required",
			"error":   err.Error(),
		})
	}

	created, err := h.bookService.CreateBook(callerID, &book, imageURL)
	if err != nil {
		if errors.Is(err, services.ErrInvalidGrade) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Grade must be between 0 and 5",
			})
		}
		log.Printf("Error creating book: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create book",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleUpdateBook updates a book's metadata and optionally its image.
// Owner only.
func (h *BookHandler) HandleUpdateBook(c *fiber.Ctx) error {
	bookID := c.Params("id")
	callerID := middleware.CallerID(c)

	var patch models.Book
	if err := h.parseBookPayload(c, &patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	// A replacement image is optional on update.
	newImageURL := ""
	if _, err := c.FormFile("image"); err == nil {
		newImageURL, err = h.saveUploadedImage(c)
		if err != nil {
			log.Printf("Error storing replacement image for book %s: %v", bookID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not store image",
			})
		}
	}

	updated, err := h.bookService.UpdateBook(bookID, callerID, &patch, newImageURL)
	if err != nil {
		return bookErrorResponse(c, bookID, err, "Could not update book")
	}

	return c.JSON(fiber.Map{
		"message": "Book updated",
		"book":    updated,
	})
}

// HandleDeleteBook deletes a book. Owner only.
func (h *BookHandler) HandleDeleteBook(c *fiber.Ctx) error {
	bookID := c.Params("id")
	callerID := middleware.CallerID(c)

	if err := h.bookService.DeleteBook(bookID, callerID); err != nil {
		return bookErrorResponse(c, bookID, err, "Could not delete book")
	}

	return c.JSON(fiber.Map{
		"message": "Book deleted",
	})
}

// RatingRequest represents the request body for a rating submission.
type RatingRequest struct {
	Rating int `json:"rating"`
}

// HandleAddRating records the caller's grade for a book.
func (h *BookHandler) HandleAddRating(c *fiber.Ctx) error {
	bookID := c.Params("id")
	callerID := middleware.CallerID(c)

	var req RatingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	book, err := h.ratingService.AddRating(bookID, callerID, req.Rating)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidGrade):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Grade must be between 0 and 5",
			})
		case errors.Is(err, services.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Book with ID %s not found", bookID),
			})
		case errors.Is(err, services.ErrDuplicateRating):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "You have already rated this book",
			})
		}
		log.Printf("Error adding rating to book %s: %v", bookID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not add rating",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(book)
}

// parseBookPayload reads the book document either from the "book" multipart
// field (the contract the upload client uses) or from a plain JSON body.
// Client-supplied id and owner are stripped; the server assigns both.
func (h *BookHandler) parseBookPayload(c *fiber.Ctx, book *models.Book) error {
	if raw := c.FormValue("book"); raw != "" {
		if err := json.Unmarshal([]byte(raw), book); err != nil {
			return fmt.Errorf("invalid book JSON: %w", err)
		}
	} else if err := c.BodyParser(book); err != nil {
		return err
	}
	book.ID = ""
	book.UserID = ""
	return nil
}

// saveUploadedImage stores the "image" file part and returns its URL.
func (h *BookHandler) saveUploadedImage(c *fiber.Ctx) (string, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return "", fmt.Errorf("missing image file: %w", err)
	}
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded image: %w", err)
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	return h.images.Save(c.Context(), fileHeader.Filename, src, fileHeader.Size, contentType)
}

// bookErrorResponse maps the shared mutation errors to responses.
func bookErrorResponse(c *fiber.Ctx, bookID string, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": fmt.Sprintf("Book with ID %s not found", bookID),
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "403: unauthorized request",
		})
	}
	log.Printf("Error mutating book %s: %v", bookID, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": fallback,
	})
}

// validationMessages flattens validator errors into a field -> message map.
func validationMessages(err error) map[string]string {
	validationErrors := err.(validator.ValidationErrors)
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return errorMessages
}
