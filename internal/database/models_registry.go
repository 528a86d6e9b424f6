package database

import "chronicle/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Author{},
		&models.Post{},
		&models.PostTag{},
		&models.Comment{},
		&models.Reply{},
	}
}
