package models

import (
	"gorm.io/gorm"
)

// GetCategoryByName retrieves a category from the database by its unique name
func GetCategoryByName(name string, db *gorm.DB) (*Category, error) {
	category := &Category{}
	if err := db.Where("name = ?", name).First(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// GetGroupByName retrieves a group by name within a category
func GetGroupByName(categoryID, name string, db *gorm.DB) (*Group, error) {
	group := &Group{}
	if err := db.Where("category_id = ? AND name = ?", categoryID, name).First(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

// GetUserByDisplayName retrieves a user by their unique display name
func GetUserByDisplayName(name string, db *gorm.DB) (*User, error) {
	user := &User{}
	if err := db.Where("display_name = ?", name).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func GetFileByID(id string, db *gorm.DB) (*File, error) {
	file := &File{}
	if err := db.Where("id = ?", id).First(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}
