// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"

	"press/internal/models"

	"gorm.io/gorm"
)

// storageError passes AppErrors through and wraps everything else as internal.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

// lookupError maps a missing row to NOT_FOUND for resource.
func lookupError(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return storageError(err)
}

// objectScope restricts a query to the comments of one content object.
func objectScope(ref models.ObjectRef) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("content_type = ? AND object_id = ?", ref.ContentType, ref.ObjectID)
	}
}
