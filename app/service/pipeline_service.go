package service

import (
	"context"
	"fmt"
	"summary-fusion/app/config"
	"summary-fusion/app/extractor"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"
	"summary-fusion/app/provider"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

// PipelineService 流水线编排器
// 有界工作池从队列认领待处理任务，每个任务内再按提示词并发扇出；
// 任务状态只通过状态机变更，认领竞争失败静默放弃
type PipelineService struct {
	db        *gorm.DB
	cfg       *config.Config
	log       *logger.Logger
	state     *JobStateMachine
	engine    *SummarizeEngine
	catalog   *PromptCatalog
	extractor extractor.Extractor

	workers   chan struct{} // 工作池槽位
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewPipelineService 创建流水线服务
func NewPipelineService(db *gorm.DB, cfg *config.Config, log *logger.Logger,
	state *JobStateMachine, engine *SummarizeEngine, catalog *PromptCatalog, ext extractor.Extractor) *PipelineService {

	ctx, cancel := context.WithCancel(context.Background())

	workerCount := cfg.Pipeline.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	return &PipelineService{
		db:        db,
		cfg:       cfg,
		log:       log,
		state:     state,
		engine:    engine,
		catalog:   catalog,
		extractor: ext,
		workers:   make(chan struct{}, workerCount),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start 启动流水线工作池
func (s *PipelineService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.log.Warn("流水线服务已经在运行中")
		return
	}

	s.isRunning = true
	s.log.Infof("启动流水线服务，工作池: %d, 扇出宽度: %d",
		s.cfg.Pipeline.WorkerCount, s.cfg.Pipeline.FanoutWidth)

	// 回收上次进程退出时留在处理中的任务
	s.recoverOrphans()

	go s.processQueue()
}

// Stop 停止流水线工作池，等待在途任务结束
func (s *PipelineService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.log.Info("正在停止流水线服务...")
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.log.Info("流水线服务已停止")
}

// processQueue 轮询待处理任务
func (s *PipelineService) processQueue() {
	interval := time.Duration(s.cfg.Pipeline.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatchPendingJobs()
		}
	}
}

// dispatchPendingJobs 把待处理任务分发给空闲的工作者
func (s *PipelineService) dispatchPendingJobs() {
	var jobs []model.Job
	if err := s.db.Where("status = ?", model.JobStatusPending).
		Order("created_at ASC").
		Limit(cap(s.workers)).
		Find(&jobs).Error; err != nil {
		s.log.Errorf("获取待处理任务失败: %v", err)
		return
	}

	for _, job := range jobs {
		select {
		case s.workers <- struct{}{}: // 获取工作者槽位
			s.wg.Add(1)
			go s.runJob(job)
		default:
			// 没有空闲槽位，下一轮再处理
			return
		}
	}
}

// runJob 在工作者槽位内执行单个任务
func (s *PipelineService) runJob(job model.Job) {
	defer func() {
		<-s.workers // 释放工作者槽位
		s.wg.Done()
	}()

	// 编排器自身的意外错误归类为 internal_error，按剩余尝试次数决定重试还是失败
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("任务处理发生内部错误: JobID=%s, %v", job.JobID, r)
			s.handleInternalError(&job, fmt.Sprintf("%v", r))
		}
	}()

	s.Run(&job)
}

// Run 执行编排流程，对同一任务幂等
// 认领失败（已被处理或已是终态）时直接返回，没有任何副作用
func (s *PipelineService) Run(job *model.Job) {
	claimed, err := s.state.Claim(job)
	if err != nil {
		s.log.Errorf("认领任务失败: JobID=%s, %v", job.JobID, err)
		return
	}
	if !claimed {
		return
	}

	s.log.Infof("🔄 开始处理摘要任务: JobID=%s, 来源=%s, 第%d次尝试",
		job.JobID, job.SourceType, job.AttemptCount)
	start := time.Now()

	status := s.runPipeline(job)

	s.log.Infof("⏱️ 任务处理结束: JobID=%s, 状态=%s, 耗时: %v", job.JobID, status, time.Since(start))
}

// runPipeline 认领成功后的主流程，返回最终状态（用于日志）
func (s *PipelineService) runPipeline(job *model.Job) model.JobStatus {
	// 1. 提取内容
	if err := s.state.UpdateProgress(job.ID, 5, "提取内容"); err != nil {
		s.log.Errorf("更新进度失败: JobID=%s, %v", job.JobID, err)
	}

	ext, err := s.extractor.Extract(s.ctx, job.SourceType, job.SourceRef)
	if err != nil {
		// 服务停止导致的提取中断不是来源的问题，放回队列等下次启动
		if s.ctx.Err() != nil {
			s.handleInternalError(job, "服务停止，提取中断")
			return model.JobStatusPending
		}
		s.log.Warnf("❌ 内容提取失败: JobID=%s, 错误: %v", job.JobID, err)
		s.state.Fail(job.ID, model.ErrorKindExtraction, err.Error())
		return model.JobStatusFailed
	}

	// 2. 持久化提取结果；旧的提取记录取消活跃标记
	s.db.Model(&model.SourceContent{}).
		Where("job_id = ? AND active = ?", job.ID, true).
		Update("active", false)

	content := &model.SourceContent{
		JobID:     job.ID,
		RawText:   ext.RawText,
		Language:  ext.Language,
		WordCount: ext.WordCount,
		Active:    true,
	}
	if err := s.db.Create(content).Error; err != nil {
		s.log.Errorf("保存提取内容失败: JobID=%s, %v", job.JobID, err)
		s.handleInternalError(job, "保存提取内容失败: "+err.Error())
		return model.JobStatusFailed
	}

	if err := s.state.UpdateProgress(job.ID, 20, "内容提取完成"); err != nil {
		s.log.Errorf("更新进度失败: JobID=%s, %v", job.JobID, err)
	}

	// 3. 加载启用的提示词
	prompts, err := s.catalog.ActivePrompts()
	if err != nil {
		s.handleInternalError(job, "加载提示词失败: "+err.Error())
		return model.JobStatusFailed
	}
	if len(prompts) == 0 {
		s.log.Warnf("❌ 没有启用的提示词: JobID=%s", job.JobID)
		s.state.Fail(job.ID, model.ErrorKindNoActivePrompts, "没有启用的提示词")
		return model.JobStatusFailed
	}

	// 4. 按提示词扇出
	s.fanOut(job, ext.RawText, prompts)

	// 5. 汇总结果并收敛到终态
	return s.finalize(job, len(prompts))
}

// fanOut 对所有启用的提示词并发执行摘要，宽度受配置限制
// 单个提示词的失败只记录在它自己的结果里，不会中断或回滚其他提示词
func (s *PipelineService) fanOut(job *model.Job, content string, prompts []model.SystemPrompt) {
	sem := make(chan struct{}, s.cfg.Pipeline.FanoutWidth)
	var fanWg sync.WaitGroup
	var done int32
	total := len(prompts)

	for i := range prompts {
		prompt := prompts[i]

		sem <- struct{}{}

		// 拿到槽位后才做取消检查，等待槽位期间发生的取消也能生效
		if cancelled, err := s.state.IsCancelled(job.ID); err == nil && cancelled {
			<-sem
			s.log.Infof("任务已取消，停止扇出: JobID=%s", job.JobID)
			break
		}

		fanWg.Add(1)
		go func() {
			defer func() {
				<-sem
				fanWg.Done()
			}()

			result := s.engine.Summarize(s.ctx, job, content, &prompt)
			s.persistResult(job, &prompt, result)

			completed := atomic.AddInt32(&done, 1)
			progress := 20 + int(80*completed)/total
			stage := fmt.Sprintf("生成摘要 %d/%d", completed, total)
			if err := s.state.UpdateProgress(job.ID, progress, stage); err != nil {
				s.log.Errorf("更新进度失败: JobID=%s, %v", job.JobID, err)
			}
		}()
	}

	// 汇合点：所有扇出落定后才允许终态转换
	fanWg.Wait()
}

// persistResult 持久化单个提示词的结果
// 任务已取消时丢弃在途调用的结果；重复结果（幂等重放）直接跳过
func (s *PipelineService) persistResult(job *model.Job, prompt *model.SystemPrompt, result *model.SummaryResult) {
	if cancelled, err := s.state.IsCancelled(job.ID); err == nil && cancelled {
		s.log.Debugf("任务已取消，丢弃结果: JobID=%s, Prompt=%s", job.JobID, prompt.Name)
		return
	}

	// 被取消中断的调用不落盘：留下该记录会挡住重试时的重新执行
	if result.ErrorKind == string(provider.ErrCanceled) {
		s.log.Debugf("调用被取消，丢弃结果: JobID=%s, Prompt=%s", job.JobID, prompt.Name)
		return
	}

	var count int64
	s.db.Model(&model.SummaryResult{}).
		Where("job_id = ? AND system_prompt_id = ?", job.ID, prompt.ID).
		Count(&count)
	if count > 0 {
		return
	}

	if err := s.db.Create(result).Error; err != nil {
		s.log.Errorf("保存摘要结果失败: JobID=%s, Prompt=%s, %v", job.JobID, prompt.Name, err)
		return
	}

	if result.Status == model.ResultStatusSucceeded {
		s.log.Infof("✅ 摘要生成成功: JobID=%s, Prompt=%s, Tokens=%d, 耗时=%dms",
			job.JobID, prompt.Name, result.TokensUsed, result.ProcessingMs)
	} else {
		s.log.Warnf("❌ 摘要生成失败: JobID=%s, Prompt=%s, 错误类型=%s",
			job.JobID, prompt.Name, result.ErrorKind)
	}
}

// finalize 根据结果集收敛任务状态
// 至少一条成功即完成（部分成功也算完成，逐条状态在结果列表里可见）；
// 全部失败则任务失败
func (s *PipelineService) finalize(job *model.Job, total int) model.JobStatus {
	if cancelled, err := s.state.IsCancelled(job.ID); err == nil && cancelled {
		return model.JobStatusCancelled
	}

	// 服务停止打断了扇出：在途工作是可恢复的，放回队列而不是判死
	if s.ctx.Err() != nil {
		s.handleInternalError(job, "服务停止，处理中断")
		return model.JobStatusPending
	}

	var succeeded int64
	s.db.Model(&model.SummaryResult{}).
		Where("job_id = ? AND status = ?", job.ID, model.ResultStatusSucceeded).
		Count(&succeeded)

	if succeeded > 0 {
		if ok, err := s.state.Complete(job.ID); err != nil {
			s.log.Errorf("完成任务失败: JobID=%s, %v", job.JobID, err)
		} else if ok {
			s.log.Infof("✅ 任务完成: JobID=%s, 成功 %d/%d", job.JobID, succeeded, total)
		}
		return model.JobStatusCompleted
	}

	s.state.Fail(job.ID, model.ErrorKindProvider, "所有提示词的摘要均失败")
	s.log.Errorf("💀 任务失败: JobID=%s, %d个提示词全部失败", job.JobID, total)
	return model.JobStatusFailed
}

// handleInternalError 处理编排器内部错误
// 还有剩余尝试次数就放回队列重试，否则永久失败
func (s *PipelineService) handleInternalError(job *model.Job, message string) {
	if job.CanRetry() {
		if ok, err := s.state.Requeue(job.ID, message); err == nil && ok {
			s.log.Warnf("🔄 任务将重试: JobID=%s, 尝试次数 %d/%d, 原因: %s",
				job.JobID, job.AttemptCount, job.MaxAttempts, message)
			return
		}
	}
	s.state.Fail(job.ID, model.ErrorKindInternal, message)
	s.log.Errorf("💀 任务失败(尝试次数耗尽): JobID=%s, %s", job.JobID, message)
}

// recoverOrphans 启动时回收上次进程残留的处理中任务
// 有剩余尝试次数的放回队列，否则按内部错误归档
func (s *PipelineService) recoverOrphans() {
	var orphans []model.Job
	if err := s.db.Where("status = ?", model.JobStatusProcessing).Find(&orphans).Error; err != nil {
		s.log.Errorf("查询残留任务失败: %v", err)
		return
	}

	for i := range orphans {
		job := &orphans[i]
		s.log.Warnf("发现残留的处理中任务: JobID=%s", job.JobID)
		s.handleInternalError(job, "进程重启时任务仍在处理中")
	}

	if len(orphans) > 0 {
		s.log.Infof("回收了 %d 个残留任务", len(orphans))
	}
}
