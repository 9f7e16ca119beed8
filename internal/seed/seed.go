package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skilllink/skilllink-api/internal/models"
)

//go:embed categories.yaml
var categoriesYAML []byte

type categoryDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
}

// Categories returns the built-in category list.
func Categories() ([]models.Category, error) {
	var defs []categoryDef
	if err := yaml.Unmarshal(categoriesYAML, &defs); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	out := make([]models.Category, 0, len(defs))
	for _, d := range defs {
		out = append(out, models.Category{Name: d.Name, Description: d.Description, Icon: d.Icon})
	}
	return out, nil
}

// EnsureCategories inserts any built-in category that is missing by name.
// Returns how many rows were inserted.
func EnsureCategories(gdb *gorm.DB) (int64, error) {
	cats, err := Categories()
	if err != nil {
		return 0, err
	}
	res := gdb.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&cats)
	return res.RowsAffected, res.Error
}

// ResetCategories drops every category and reinserts the built-in list.
func ResetCategories(gdb *gorm.DB) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Category{}).Error; err != nil {
			return err
		}
		cats, err := Categories()
		if err != nil {
			return err
		}
		return tx.Create(&cats).Error
	})
}
