package service

import (
	"summary-fusion/app/config"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SweeperService 僵死任务回收器
// 编排器崩溃可能把任务留在处理中状态，回收器周期性扫描超过僵死窗口
// 没有进度更新的任务，按已有结果归档为完成或失败。
// 这是兜底的正确性保障，不是主控制路径
type SweeperService struct {
	db     *gorm.DB
	log    *logger.Logger
	state  *JobStateMachine
	window time.Duration
	cron   *cron.Cron
}

// NewSweeperService 创建回收器
func NewSweeperService(db *gorm.DB, cfg *config.Config, log *logger.Logger, state *JobStateMachine) *SweeperService {
	windowMin := cfg.Pipeline.StalenessWindow
	if windowMin <= 0 {
		windowMin = 5
	}
	return &SweeperService{
		db:     db,
		log:    log,
		state:  state,
		window: time.Duration(windowMin) * time.Minute,
	}
}

// Start 启动周期扫描，每分钟一次
func (s *SweeperService) Start() {
	s.cron = cron.New()
	s.cron.AddFunc("@every 1m", s.Sweep)
	s.cron.Start()
	s.log.Infof("僵死任务回收器已启动，僵死窗口: %v", s.window)
}

// Stop 停止扫描，等待在途的扫描完成
func (s *SweeperService) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	s.log.Info("僵死任务回收器已停止")
}

// Sweep 执行一轮扫描
// 僵死窗口加上状态机的条件更新共同保证不会和活跃的编排器打架：
// 活跃编排器会持续刷新进度时间，僵死判断不会命中它的任务
func (s *SweeperService) Sweep() {
	cutoff := time.Now().Add(-s.window)

	var stale []model.Job
	err := s.db.Where("status = ? AND (progress_at < ? OR (progress_at IS NULL AND started_at < ?))",
		model.JobStatusProcessing, cutoff, cutoff).
		Find(&stale).Error
	if err != nil {
		s.log.Errorf("扫描僵死任务失败: %v", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	s.log.Warnf("发现 %d 个僵死任务", len(stale))

	for i := range stale {
		job := &stale[i]

		var succeeded int64
		if err := s.db.Model(&model.SummaryResult{}).
			Where("job_id = ? AND status = ?", job.ID, model.ResultStatusSucceeded).
			Count(&succeeded).Error; err != nil {
			s.log.Errorf("统计任务结果失败: JobID=%s, %v", job.JobID, err)
			continue
		}

		status, err := s.state.ReconcileStale(job.ID, succeeded)
		if err != nil {
			// 条件更新失败说明任务状态刚刚被别人改过，跳过即可
			s.log.Debugf("归档僵死任务跳过: JobID=%s, %v", job.JobID, err)
			continue
		}

		s.log.Infof("僵死任务已归档: JobID=%s, 成功结果=%d, 归档状态=%s", job.JobID, succeeded, status)
	}
}
