package service

import (
	"os"
	"path/filepath"
	"testing"

	"auto-tube/app/config"
	"auto-tube/app/logger"
)

func serviceTestLogger() *logger.Logger {
	return logger.New(config.LogConfig{Level: "error", Format: "text", Output: "stdout"})
}

func writeWordsFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入词表文件失败: %v", err)
	}
}

func TestForbiddenWordsLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forbidden.txt")
	writeWordsFile(t, path, "暴力\n犯罪\n\n# 注释行\n  诈骗  \n")

	f := NewForbiddenWords(path, serviceTestLogger())

	terms := f.Terms()
	want := []string{"暴力", "犯罪", "诈骗"}
	if len(terms) != len(want) {
		t.Fatalf("期望 %d 条词, 得到 %d: %v", len(want), len(terms), terms)
	}
	for i, w := range want {
		if terms[i] != w {
			t.Fatalf("第 %d 条期望 %q, 得到 %q", i, w, terms[i])
		}
	}
}

func TestForbiddenWordsMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	f := NewForbiddenWords(path, serviceTestLogger())
	if terms := f.Terms(); len(terms) != 0 {
		t.Fatalf("文件缺失应以空词表启动, 得到 %v", terms)
	}
}

func TestForbiddenWordsReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forbidden.txt")
	writeWordsFile(t, path, "暴力\n")

	f := NewForbiddenWords(path, serviceTestLogger())
	if len(f.Terms()) != 1 {
		t.Fatalf("初始词表异常: %v", f.Terms())
	}

	writeWordsFile(t, path, "暴力\n赌博\n")
	if err := f.reload(); err != nil {
		t.Fatalf("重新加载失败: %v", err)
	}

	terms := f.Terms()
	if len(terms) != 2 || terms[1] != "赌博" {
		t.Fatalf("更新后的词表异常: %v", terms)
	}
}

func TestForbiddenWordsTermsReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forbidden.txt")
	writeWordsFile(t, path, "暴力\n")

	f := NewForbiddenWords(path, serviceTestLogger())
	got := f.Terms()
	got[0] = "改掉了"

	if f.Terms()[0] != "暴力" {
		t.Fatal("Terms 返回值被修改不应影响内部词表")
	}
}
