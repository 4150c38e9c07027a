package models

// Category groups listings. Categories are managed by seeding, not by the workflow.
type Category struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:80;uniqueIndex;not null" json:"name" yaml:"name"`
	Slug         string `gorm:"size:80;uniqueIndex;not null" json:"slug" yaml:"slug"`
	Icon         string `gorm:"size:40" json:"icon" yaml:"icon"`
	DisplayOrder int    `gorm:"not null;default:0" json:"display_order" yaml:"display_order"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active" yaml:"is_active"`
}
