package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/drgyl/books/pkg/database"
	"github.com/drgyl/books/pkg/models"
	"github.com/drgyl/books/pkg/storage"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var (
	db    *gorm.DB
	store *storage.Storage
)

func main() {
	log.Println("Starting library service...")

	var err error
	db, err = database.Open()
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}

	log.Println("Database connected successfully")

	store = storage.New(db)

	server := setupRouter()

	port := getEnv("PORT", "8888")
	log.Printf("Library service starting on :%s", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func setupRouter() *gin.Engine {
	server := gin.Default()
	server.Use(requestID(), limitBody())

	server.GET("/books", listBooks)
	server.POST("/books", addBook)
	server.GET("/borrowers", listBorrowers)
	server.POST("/borrowers", addBorrower)
	server.GET("/borrowers/:id", getBorrower)
	server.GET("/borrowed-books", listBorrowedBooks)
	server.GET("/borrowed-books/:id", listBorrowedBooksByBorrower)
	server.POST("/borrowed-books", borrowBook)
	server.GET("/manage/health", healthCheck)

	server.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "path not found"})
	})

	return server
}

// requestID tags every response with an X-Request-ID so log lines can be
// correlated by the telemetry collector.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}

func listBooks(c *gin.Context) {
	books, err := store.ListBooks()
	if err != nil {
		storageError(c, err)
		return
	}
	items := make([]gin.H, len(books))
	for i, book := range books {
		items[i] = gin.H{
			"id":          book.ID,
			"title":       book.Title,
			"author":      book.Author,
			"is_borrowed": book.IsBorrowed,
		}
	}
	c.JSON(http.StatusOK, items)
}

func addBook(c *gin.Context) {
	var request struct {
		Title  string `json:"title" binding:"required"`
		Author string `json:"author" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and author are required"})
		return
	}
	title := strings.TrimSpace(request.Title)
	author := strings.TrimSpace(request.Author)
	if title == "" || author == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and author are required"})
		return
	}

	book, err := store.AddBook(title, author)
	if err != nil {
		storageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          book.ID,
		"title":       book.Title,
		"author":      book.Author,
		"is_borrowed": book.IsBorrowed,
	})
}

func listBorrowers(c *gin.Context) {
	borrowers, err := store.ListBorrowers()
	if err != nil {
		storageError(c, err)
		return
	}
	items := make([]gin.H, len(borrowers))
	for i, borrower := range borrowers {
		items[i] = gin.H{
			"id":    borrower.ID,
			"name":  borrower.Name,
			"email": borrower.Email,
		}
	}
	c.JSON(http.StatusOK, items)
}

func getBorrower(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	borrower, err := store.GetBorrower(id)
	if err != nil {
		if err == storage.ErrBorrowerNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "borrower not found"})
			return
		}
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":    borrower.ID,
		"name":  borrower.Name,
		"email": borrower.Email,
	})
}

func addBorrower(c *gin.Context) {
	var request struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
		return
	}
	name := strings.TrimSpace(request.Name)
	email := strings.TrimSpace(request.Email)
	if name == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
		return
	}

	borrower, err := store.AddBorrower(name, email)
	if err != nil {
		if err == storage.ErrEmailTaken {
			c.JSON(http.StatusConflict, gin.H{"error": "borrower with this email already exists"})
			return
		}
		storageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":    borrower.ID,
		"name":  borrower.Name,
		"email": borrower.Email,
	})
}

func listBorrowedBooks(c *gin.Context) {
	records, err := store.ListBorrowedBooks()
	if err != nil {
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowedItems(records))
}

func listBorrowedBooksByBorrower(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	records, err := store.ListBorrowedBooksByBorrower(id)
	if err != nil {
		if err == storage.ErrBorrowerNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "borrower not found"})
			return
		}
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowedItems(records))
}

func borrowBook(c *gin.Context) {
	var request struct {
		BorrowerID int `json:"borrower_id" binding:"required"`
		BookID     int `json:"book_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "borrower_id and book_id are required"})
		return
	}
	if request.BorrowerID < 1 || request.BookID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "borrower_id and book_id must be positive integers"})
		return
	}

	record, err := store.BorrowBook(uint(request.BorrowerID), uint(request.BookID))
	if err != nil {
		switch err {
		case storage.ErrBookNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		case storage.ErrBorrowerNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "borrower not found"})
		case storage.ErrBookBorrowed:
			c.JSON(http.StatusConflict, gin.H{"error": "book is already borrowed"})
		default:
			storageError(c, err)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          record.ID,
		"book_id":     record.BookID,
		"borrower_id": record.BorrowerID,
		"borrow_date": record.BorrowDate.Format(time.RFC3339),
	})
}

func healthCheck(c *gin.Context) {
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func borrowedItems(records []models.BorrowRecord) []gin.H {
	items := make([]gin.H, len(records))
	for i, record := range records {
		items[i] = gin.H{
			"id":          record.ID,
			"book_id":     record.BookID,
			"borrower_id": record.BorrowerID,
			"borrow_date": record.BorrowDate.Format(time.RFC3339),
			"title":       record.Book.Title,
			"author":      record.Book.Author,
		}
	}
	return items
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid borrower ID format"})
		return 0, false
	}
	return uint(id), true
}

// storageError hides the engine failure from the client; the cause goes to
// the operator log keyed by request id.
func storageError(c *gin.Context, err error) {
	log.Printf("request %s: storage error: %v", c.GetString("requestID"), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
