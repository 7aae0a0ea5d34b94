package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInvalidRecord = errors.New("invalid product record")

type Product struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	Name        string    `gorm:"not null"                    json:"name"`
	Description string    `gorm:"not null"                    json:"description"`
	Price       float64   `gorm:"not null"                    json:"price"`
	Quantity    int       `gorm:"not null"                    json:"quantity"`
	Image       string    `gorm:"not null"                    json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CheckRecord is the store side presence check, independent of request validation.
func (p *Product) CheckRecord() error {
	switch {
	case p.Name == "":
		return errors.Join(ErrInvalidRecord, errors.New("name is required"))
	case p.Description == "":
		return errors.Join(ErrInvalidRecord, errors.New("description is required"))
	case p.Image == "":
		return errors.Join(ErrInvalidRecord, errors.New("image is required"))
	case p.Price < 0:
		return errors.Join(ErrInvalidRecord, errors.New("price is negative"))
	case p.Quantity < 0:
		return errors.Join(ErrInvalidRecord, errors.New("quantity is negative"))
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Product) BeforeSave(tx *gorm.DB) error {
	return p.CheckRecord()
}

// ProductPatch carries the fields of an update; nil means unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
	Image       *string
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Quantity == nil && p.Image == nil
}

func (p ProductPatch) Apply(prod *Product) {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Quantity != nil {
		prod.Quantity = *p.Quantity
	}
	if p.Image != nil {
		prod.Image = *p.Image
	}
}
