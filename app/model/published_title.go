package model

import (
	"time"
)

// PublishedTitle 最近发布的标题，构成判重的滚动窗口
type PublishedTitle struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	Title       string    `json:"title" gorm:"not null"`
	JobID       string    `json:"job_id" gorm:"size:36;index"`
	PublishedAt time.Time `json:"published_at" gorm:"index"`
}

// TableName 指定表名
func (PublishedTitle) TableName() string {
	return "published_titles"
}
