package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/drgyl/books/pkg/models"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrBorrowerNotFound = errors.New("borrower not found")
	ErrBookBorrowed     = errors.New("book is already borrowed")
	ErrEmailTaken       = errors.New("borrower with this email already exists")
)

// Storage executes the library queries against a single gorm handle. Input
// validation happens at the HTTP layer; methods here only report not-found
// and conflict outcomes through the sentinel errors above.
type Storage struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) ListBooks() ([]models.Book, error) {
	var books []models.Book
	err := s.db.Find(&books).Error
	return books, err
}

func (s *Storage) AddBook(title, author string) (models.Book, error) {
	book := models.Book{
		Title:  title,
		Author: author,
	}
	err := s.db.Create(&book).Error
	return book, err
}

func (s *Storage) ListBorrowers() ([]models.Borrower, error) {
	var borrowers []models.Borrower
	err := s.db.Find(&borrowers).Error
	return borrowers, err
}

func (s *Storage) GetBorrower(id uint) (models.Borrower, error) {
	var borrower models.Borrower
	err := s.db.First(&borrower, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Borrower{}, ErrBorrowerNotFound
	}
	return borrower, err
}

func (s *Storage) AddBorrower(name, email string) (models.Borrower, error) {
	borrower := models.Borrower{
		Name:  name,
		Email: email,
	}
	err := s.db.Create(&borrower).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.Borrower{}, ErrEmailTaken
	}
	return borrower, err
}

func (s *Storage) ListBorrowedBooks() ([]models.BorrowRecord, error) {
	var records []models.BorrowRecord
	err := s.db.Preload("Book").Preload("Borrower").Find(&records).Error
	return records, err
}

// ListBorrowedBooksByBorrower returns the borrower's records, an empty slice
// if there are none, and ErrBorrowerNotFound if the borrower id is unknown.
func (s *Storage) ListBorrowedBooksByBorrower(borrowerID uint) ([]models.BorrowRecord, error) {
	var borrower models.Borrower
	if err := s.db.First(&borrower, borrowerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowerNotFound
		}
		return nil, err
	}

	var records []models.BorrowRecord
	err := s.db.Preload("Book").Where("borrower_id = ?", borrowerID).Find(&records).Error
	return records, err
}

// BorrowBook inserts a borrow record and marks the book borrowed in one
// transaction. Preconditions are checked in order: book exists, borrower
// exists, book not already borrowed.
func (s *Storage) BorrowBook(borrowerID, bookID uint) (models.BorrowRecord, error) {
	var record models.BorrowRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var book models.Book
		if err := tx.First(&book, bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		var borrower models.Borrower
		if err := tx.First(&borrower, borrowerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBorrowerNotFound
			}
			return err
		}

		if book.IsBorrowed {
			return ErrBookBorrowed
		}

		// Guarded update so concurrent borrow attempts on the same book
		// cannot both flip the flag.
		res := tx.Model(&models.Book{}).
			Where("id = ? AND is_borrowed = ?", bookID, false).
			Update("is_borrowed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBookBorrowed
		}

		record = models.BorrowRecord{
			BookID:     bookID,
			BorrowerID: borrowerID,
			BorrowDate: time.Now().UTC(),
		}
		return tx.Omit(clause.Associations).Create(&record).Error
	})
	if err != nil {
		return models.BorrowRecord{}, err
	}

	return record, nil
}
