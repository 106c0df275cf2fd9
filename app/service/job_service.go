package service

import (
	"errors"
	"fmt"
	"summary-fusion/app/config"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrJobNotFound 任务不存在
var ErrJobNotFound = errors.New("任务不存在")

// ErrAlreadyTerminal 任务已处于终态，无法取消
var ErrAlreadyTerminal = errors.New("任务已处于终态")

// JobService 任务接入服务
// 对外暴露提交、查询、取消三个入口；实际处理由流水线异步完成
type JobService struct {
	db    *gorm.DB
	cfg   *config.Config
	log   *logger.Logger
	state *JobStateMachine
}

// NewJobService 创建任务服务
func NewJobService(db *gorm.DB, cfg *config.Config, log *logger.Logger, state *JobStateMachine) *JobService {
	return &JobService{
		db:    db,
		cfg:   cfg,
		log:   log,
		state: state,
	}
}

// Submit 提交新任务，返回创建的任务
// userID 为空表示匿名提交
func (s *JobService) Submit(sourceType, sourceRef, providerHint string, userID *uint) (*model.Job, error) {
	switch sourceType {
	case model.SourceTypeLink, model.SourceTypeFile, model.SourceTypeText:
	default:
		return nil, fmt.Errorf("不支持的来源类型: %s", sourceType)
	}

	if sourceRef == "" {
		return nil, fmt.Errorf("来源引用不能为空")
	}

	if providerHint != "" {
		switch providerHint {
		case model.ProviderGemini, model.ProviderOpenAI:
		default:
			return nil, fmt.Errorf("不支持的AI提供商: %s", providerHint)
		}
	}

	job := &model.Job{
		JobID:       uuid.NewString(),
		SourceType:  sourceType,
		SourceRef:   sourceRef,
		Status:      model.JobStatusPending,
		Provider:    providerHint,
		MaxAttempts: s.cfg.Pipeline.MaxAttempts,
		UserID:      userID,
		Stage:       "等待处理",
	}

	if err := s.db.Create(job).Error; err != nil {
		s.log.Errorf("创建任务失败: %v", err)
		return nil, err
	}

	s.log.Infof("任务已提交: JobID=%s, 来源=%s", job.JobID, sourceType)
	return job, nil
}

// Get 按对外任务ID查询任务及其结果
func (s *JobService) Get(jobID string) (*model.Job, error) {
	var job model.Job
	err := s.db.Preload("Results").Preload("Results.SystemPrompt").
		Where("job_id = ?", jobID).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Cancel 取消任务
// 只在扇出边界被检查的协作式取消：标记状态，不打断在途的AI调用
func (s *JobService) Cancel(jobID string) error {
	var job model.Job
	err := s.db.Where("job_id = ?", jobID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	ok, err := s.state.Cancel(job.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyTerminal
	}

	s.log.Infof("任务已取消: JobID=%s", jobID)
	return nil
}

// List 分页查询任务列表，可按状态和用户过滤
func (s *JobService) List(userID *uint, status string, page, pageSize int) ([]model.Job, int64, error) {
	query := s.db.Model(&model.Job{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []model.Job
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}
