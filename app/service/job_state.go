package service

import (
	"fmt"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"
	"time"

	"gorm.io/gorm"
)

// JobStateMachine 任务状态机
// 所有状态变更都走带条件的原子更新，靠 RowsAffected 判断竞争结果；
// 除了回收器的僵死任务归档，没有其他路径可以改任务状态
type JobStateMachine struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewJobStateMachine 创建任务状态机
func NewJobStateMachine(db *gorm.DB, log *logger.Logger) *JobStateMachine {
	return &JobStateMachine{db: db, log: log}
}

// Claim 认领任务：pending -> processing
// 返回 false 表示任务已被别的工作者认领或不在等待状态，不视为错误
func (m *JobStateMachine) Claim(job *model.Job) (bool, error) {
	now := time.Now()
	result := m.db.Model(&model.Job{}).
		Where("id = ? AND status = ?", job.ID, model.JobStatusPending).
		Updates(map[string]interface{}{
			"status":        model.JobStatusProcessing,
			"started_at":    now,
			"progress_at":   now,
			"stage":         "已认领",
			"attempt_count": gorm.Expr("attempt_count + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	// 重新加载以拿到最新的尝试次数
	if err := m.db.First(job, job.ID).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Complete 完成任务：processing -> completed
func (m *JobStateMachine) Complete(jobID uint) (bool, error) {
	now := time.Now()
	result := m.db.Model(&model.Job{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":       model.JobStatusCompleted,
			"progress":     100,
			"stage":        "完成",
			"completed_at": now,
			"progress_at":  now,
		})
	return result.RowsAffected > 0, result.Error
}

// Fail 标记任务失败：processing -> failed，记录错误类型和信息
func (m *JobStateMachine) Fail(jobID uint, kind, message string) (bool, error) {
	now := time.Now()
	result := m.db.Model(&model.Job{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"stage":         "失败",
			"error_kind":    kind,
			"error_message": message,
			"completed_at":  now,
			"progress_at":   now,
		})
	return result.RowsAffected > 0, result.Error
}

// Cancel 取消任务：pending/processing -> cancelled
// 终态任务不可取消，返回 false
func (m *JobStateMachine) Cancel(jobID uint) (bool, error) {
	now := time.Now()
	result := m.db.Model(&model.Job{}).
		Where("id = ? AND status IN (?)", jobID,
			[]model.JobStatus{model.JobStatusPending, model.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       model.JobStatusCancelled,
			"stage":        "已取消",
			"completed_at": now,
		})
	return result.RowsAffected > 0, result.Error
}

// Requeue 把处理中的任务放回队列等待重试：processing -> pending
// 认领时已经累加过尝试次数，这里只还原状态
func (m *JobStateMachine) Requeue(jobID uint, reason string) (bool, error) {
	result := m.db.Model(&model.Job{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":        model.JobStatusPending,
			"stage":         "等待重试",
			"error_message": reason,
		})
	return result.RowsAffected > 0, result.Error
}

// UpdateProgress 更新进度和阶段描述
// 只在处理中状态生效，且进度不允许回退
func (m *JobStateMachine) UpdateProgress(jobID uint, progress int, stage string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	result := m.db.Model(&model.Job{}).
		Where("id = ? AND status = ? AND progress <= ?", jobID, model.JobStatusProcessing, progress).
		Updates(map[string]interface{}{
			"progress":    progress,
			"stage":       stage,
			"progress_at": time.Now(),
		})
	return result.Error
}

// IsCancelled 检查任务是否已被取消（扇出边界的协作式取消检查点）
func (m *JobStateMachine) IsCancelled(jobID uint) (bool, error) {
	var status model.JobStatus
	err := m.db.Model(&model.Job{}).
		Where("id = ?", jobID).
		Pluck("status", &status).Error
	if err != nil {
		return false, err
	}
	return status == model.JobStatusCancelled, nil
}

// ReconcileStale 回收器专用：把僵死的处理中任务直接归档为终态
// 这是唯一允许绕过编排器改状态的路径，同样靠条件更新避免和活跃编排器竞争
func (m *JobStateMachine) ReconcileStale(jobID uint, succeededResults int64) (model.JobStatus, error) {
	if succeededResults > 0 {
		ok, err := m.Complete(jobID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("任务 %d 状态已变化，放弃归档", jobID)
		}
		return model.JobStatusCompleted, nil
	}

	ok, err := m.Fail(jobID, model.ErrorKindTimeout, "处理超时，已由回收器归档")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("任务 %d 状态已变化，放弃归档", jobID)
	}
	return model.JobStatusFailed, nil
}
