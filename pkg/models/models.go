package models

import (
	"time"
)

type Book struct {
	ID         uint   `gorm:"primaryKey"`
	Title      string `gorm:"not null"`
	Author     string `gorm:"not null"`
	IsBorrowed bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Borrower struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:80;not null"`
	Email     string `gorm:"size:254;not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BorrowRecord struct {
	ID         uint      `gorm:"primaryKey"`
	BookID     uint      `gorm:"not null;index"`
	BorrowerID uint      `gorm:"not null;index"`
	BorrowDate time.Time `gorm:"not null"`

	Book     Book     `gorm:"foreignKey:BookID"`
	Borrower Borrower `gorm:"foreignKey:BorrowerID"`
}
