package services

import (
	"path/filepath"
	"testing"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	utils.SetJWTSecret("test-secret-for-service-testing")
}

// newTestDB opens a throwaway SQLite database with the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
		&models.Task{},
		&models.Notification{},
		&models.RefreshToken{},
		&models.SystemConfig{},
		&models.SystemLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := models.EnsureScrumMasterIndex(db); err != nil {
		t.Fatalf("failed to create scrum master index: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()

	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		AuthType: "local",
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return &user
}

func createTestTeam(t *testing.T, db *gorm.DB, name string, parentID *uint, createdBy uint) *models.Team {
	t.Helper()

	team := models.Team{
		Name:      name,
		ParentID:  parentID,
		CreatedBy: createdBy,
	}
	if err := db.Create(&team).Error; err != nil {
		t.Fatalf("failed to create team %s: %v", name, err)
	}
	return &team
}

func addTestMember(t *testing.T, db *gorm.DB, teamID, userID uint, role string) *models.TeamMembership {
	t.Helper()

	membership := models.TeamMembership{
		TeamID: teamID,
		UserID: userID,
		Role:   role,
	}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}
	return &membership
}
