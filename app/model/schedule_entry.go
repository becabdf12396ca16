package model

import (
	"time"
)

// ScheduleEntry 定时触发配置，运行时只读，仅通过管理接口修改
type ScheduleEntry struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	CronExpr  string    `json:"cron_expr" gorm:"not null"` // 标准五段 cron 表达式
	Category  string    `json:"category" gorm:"size:32;not null"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ScheduleEntry) TableName() string {
	return "schedule_entries"
}
