package repositories

import (
	"fmt"

	"github.com/Mishari713/BMS/models"

	"gorm.io/gorm"
)

// RoleRepository reads the seeded reference roles.
type RoleRepository interface {
	FindByName(name models.RoleName) (*models.Role, error)
	FindByNames(names []models.RoleName) ([]models.Role, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByName(name models.RoleName) (*models.Role, error) {
	var role models.Role
	if err := r.db.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByNames fails unless every requested role exists.
func (r *roleRepository) FindByNames(names []models.RoleName) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.Where("name IN ?", names).Find(&roles).Error; err != nil {
		return nil, err
	}
	if len(roles) != len(names) {
		return nil, fmt.Errorf("role lookup: found %d of %d roles %v", len(roles), len(names), names)
	}
	return roles, nil
}
