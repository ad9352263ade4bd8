package database

import (
	"testing"

	"github.com/Mishari713/BMS/config"
	"github.com/Mishari713/BMS/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestOpenMigratesAndSeeds(t *testing.T) {
	log := zap.NewNop()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", URL: "file:seed_test?mode=memory&cache=shared"}, log)
	require.NoError(t, err)

	require.NoError(t, SeedRoles(db, log.Sugar()))
	// seeding twice is a no-op
	require.NoError(t, SeedRoles(db, log.Sugar()))

	var roles []models.Role
	require.NoError(t, db.Find(&roles).Error)
	assert.Len(t, roles, 3)

	admin := config.AdminConfig{Username: "SystemAdmin1", Email: "Admin.1@email.com", Password: "adminPass"}
	require.NoError(t, SeedAdmin(db, admin, log.Sugar()))
	require.NoError(t, SeedAdmin(db, admin, log.Sugar()))

	var users []models.User
	require.NoError(t, db.Preload("Roles").Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "systemadmin1", users[0].Username)
	assert.Equal(t, "admin.1@email.com", users[0].Email)
	assert.True(t, users[0].HasRole(models.RoleAdmin))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("adminPass")))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}
