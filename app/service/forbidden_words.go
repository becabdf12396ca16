package service

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"auto-tube/app/logger"

	"github.com/fsnotify/fsnotify"
)

// ForbiddenWords 违禁词列表。从文件加载，文件变更时热更新，
// 供质量闸在每次评估时读取当前生效的词表。
type ForbiddenWords struct {
	path    string
	log     *logger.Logger
	mu      sync.RWMutex
	terms   []string
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewForbiddenWords 创建违禁词服务并完成首次加载。
// 文件不存在时以空词表启动，后续创建文件会被监控捕获。
func NewForbiddenWords(path string, log *logger.Logger) *ForbiddenWords {
	f := &ForbiddenWords{
		path: path,
		log:  log,
	}
	if err := f.reload(); err != nil {
		log.Warnf("违禁词文件加载失败，暂用空词表: %s, 错误: %v", path, err)
	}
	return f
}

// Terms 返回当前生效的违禁词列表
func (f *ForbiddenWords) Terms() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

// Watch 启动文件监控。监控目录而不是文件本身，编辑器原子替换也能捕获。
func (f *ForbiddenWords) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	f.watcher = watcher
	f.wg.Add(1)
	go f.watchLoop()

	f.log.Infof("违禁词文件监控已启动: %s", f.path)
	return nil
}

// Stop 停止文件监控
func (f *ForbiddenWords) Stop() {
	if f.watcher != nil {
		f.watcher.Close()
		f.wg.Wait()
	}
}

func (f *ForbiddenWords) watchLoop() {
	defer f.wg.Done()

	target := filepath.Clean(f.path)
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.reload(); err != nil {
				f.log.Errorf("违禁词文件重新加载失败: %v", err)
				continue
			}
			f.log.Infof("违禁词列表已更新，共 %d 条", len(f.Terms()))
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Errorf("违禁词文件监控出错: %v", err)
		}
	}
}

// reload 读取文件，每行一个词，忽略空行和 # 开头的注释
func (f *ForbiddenWords) reload() error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.terms = terms
	f.mu.Unlock()
	return nil
}
