package database

import "koydenal/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters: referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Category{},
		&models.User{},
		&models.Listing{},
		&models.AdminAction{},
		&models.ListingMessage{},
		&models.Favorite{},
		&models.ListingView{},
	}
}
