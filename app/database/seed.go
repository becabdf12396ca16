package database

import (
	"fmt"

	"auto-tube/app/config"
	"auto-tube/app/logger"
	"auto-tube/app/model"
	"auto-tube/app/utils"

	"gorm.io/gorm"
)

// InitAdminUser 初始化管理员账户，用户名密码来自配置文件
func InitAdminUser(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	if cfg.Server.Username == "" || cfg.Server.Password == "" {
		return fmt.Errorf("管理员账户配置不能为空，请在配置文件中设置 username 和 password")
	}

	var admin model.User
	result := db.Where("is_admin = ?", true).First(&admin)

	if result.Error == gorm.ErrRecordNotFound {
		hash, err := utils.HashPassword(cfg.Server.Password)
		if err != nil {
			return fmt.Errorf("哈希密码失败: %w", err)
		}
		admin = model.User{
			Username: cfg.Server.Username,
			Password: hash,
			IsActive: true,
			IsAdmin:  true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("创建管理员账户失败: %w", err)
		}
		log.Infof("管理员账户已创建: %s", cfg.Server.Username)
		return nil
	}
	if result.Error != nil {
		return result.Error
	}

	// 配置变化时同步用户名和密码
	changed := false
	if admin.Username != cfg.Server.Username {
		admin.Username = cfg.Server.Username
		changed = true
	}
	if !utils.VerifyPassword(cfg.Server.Password, admin.Password) {
		hash, err := utils.HashPassword(cfg.Server.Password)
		if err != nil {
			return fmt.Errorf("哈希密码失败: %w", err)
		}
		admin.Password = hash
		changed = true
	}
	if changed {
		if err := db.Save(&admin).Error; err != nil {
			return fmt.Errorf("更新管理员账户失败: %w", err)
		}
		log.Infof("管理员账户已更新: %s", cfg.Server.Username)
	}
	return nil
}

// SeedDefaultSchedules 调度表为空时写入默认的周更计划
func SeedDefaultSchedules(db *gorm.DB, log *logger.Logger) error {
	var count int64
	if err := db.Model(&model.ScheduleEntry{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []model.ScheduleEntry{
		{Name: "monday-technology", CronExpr: "0 20 * * 1", Category: "technology", Enabled: true},
		{Name: "wednesday-business", CronExpr: "0 19 * * 3", Category: "business", Enabled: true},
		{Name: "friday-technology", CronExpr: "0 20 * * 5", Category: "technology", Enabled: true},
		{Name: "sunday-weekly-summary", CronExpr: "0 18 * * 0", Category: "weekly_summary", Enabled: true},
	}
	if err := db.Create(&defaults).Error; err != nil {
		return err
	}
	log.Infof("默认调度表已写入，共 %d 个调度项", len(defaults))
	return nil
}
