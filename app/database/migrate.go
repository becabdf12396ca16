package database

import (
	"auto-tube/app/model"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Job{},
		&model.StageAttempt{},
		&model.QualityReport{},
		&model.ScheduleEntry{},
		&model.PublishedTitle{},
	)
}
