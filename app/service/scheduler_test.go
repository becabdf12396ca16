package service

import (
	"path/filepath"
	"testing"

	"auto-tube/app/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func serviceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.ScheduleEntry{}); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	return db
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{
		"0 20 * * 1",
		"*/5 * * * *",
		"0 18 * * 0",
		"@daily",
	}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Fatalf("表达式 %q 应当有效: %v", expr, err)
		}
	}

	invalid := []string{
		"",
		"not a cron",
		"61 * * * *",
		"* * * *",
	}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Fatalf("表达式 %q 应当无效", expr)
		}
	}
}

func TestSchedulerReloadSkipsInvalidEntries(t *testing.T) {
	db := serviceTestDB(t)
	entries := []model.ScheduleEntry{
		{Name: "valid-entry", CronExpr: "0 20 * * 1", Category: "technology", Enabled: true},
		{Name: "broken-entry", CronExpr: "not a cron", Category: "business", Enabled: true},
		{Name: "disabled-entry", CronExpr: "0 19 * * 3", Category: "business", Enabled: false},
	}
	for i := range entries {
		if err := db.Create(&entries[i]).Error; err != nil {
			t.Fatalf("写入调度项失败: %v", err)
		}
	}

	s := NewSchedulerService(db, serviceTestLogger(), nil)
	defer s.Stop()

	// 无效表达式只跳过, 不阻止其余调度项加载
	if err := s.Reload(); err != nil {
		t.Fatalf("加载调度表失败: %v", err)
	}

	s.mu.Lock()
	loaded := len(s.cron.Entries())
	s.mu.Unlock()
	if loaded != 1 {
		t.Fatalf("期望 1 个调度项生效, 得到 %d", loaded)
	}
}

func TestSchedulerStartAndStop(t *testing.T) {
	db := serviceTestDB(t)

	s := NewSchedulerService(db, serviceTestLogger(), nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动调度服务失败: %v", err)
	}
	s.Stop()

	// 停止后可以安全地再次停止
	s.Stop()
}
