package filewatcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"
	"summary-fusion/app/service"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// InboxWatcher 投递目录监控器
// 监控投递目录，文本文件落盘后自动提交为 file 类型的摘要任务
type InboxWatcher struct {
	inboxDir string
	jobs     *service.JobService
	logger   *logger.Logger
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	wg       sync.WaitGroup
	watching bool
	mu       sync.RWMutex
}

// NewInboxWatcher 创建投递目录监控器
func NewInboxWatcher(inboxDir string, jobs *service.JobService, log *logger.Logger) (*InboxWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &InboxWatcher{
		inboxDir: inboxDir,
		jobs:     jobs,
		logger:   log,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start 启动监控
func (w *InboxWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return fmt.Errorf("投递目录监控器已经在运行")
	}

	// 投递目录不存在时自动创建
	if err := os.MkdirAll(w.inboxDir, 0755); err != nil {
		return fmt.Errorf("创建投递目录失败: %w", err)
	}

	if err := w.watcher.Add(w.inboxDir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	w.watching = true
	w.wg.Add(1)
	go w.watchLoop()

	w.logger.Infof("投递目录监控器已启动: %s", w.inboxDir)
	return nil
}

// Stop 停止监控
func (w *InboxWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return nil
	}

	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()
	w.watching = false

	w.logger.Info("投递目录监控器已停止")
	return nil
}

// watchLoop 监控事件循环
func (w *InboxWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("投递目录监控器错误: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

// handleEvent 处理文件系统事件
func (w *InboxWatcher) handleEvent(event fsnotify.Event) {
	// 只处理创建事件
	if event.Op&fsnotify.Create == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		w.logger.Warnf("获取文件信息失败: %s, 错误: %v", event.Name, err)
		return
	}
	if info.IsDir() {
		return
	}

	if !isTextFile(event.Name) {
		w.logger.Debugf("跳过非文本文件: %s", event.Name)
		return
	}

	// 匿名提交为 file 类型任务
	job, err := w.jobs.Submit(model.SourceTypeFile, event.Name, "", nil)
	if err != nil {
		w.logger.Errorf("投递文件提交任务失败: %s, 错误: %v", event.Name, err)
		return
	}

	w.logger.Infof("投递文件已提交为任务: %s -> JobID=%s", filepath.Base(event.Name), job.JobID)
}

// isTextFile 检查是否为可提交的文本文件
func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".srt", ".vtt":
		return true
	}
	return false
}
