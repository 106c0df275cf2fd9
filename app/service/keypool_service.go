package service

import (
	"errors"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"
	"sync"

	"gorm.io/gorm"
)

// ErrNoKeyAvailable 指定提供商没有可用的密钥
var ErrNoKeyAvailable = errors.New("没有可用的API密钥")

// KeyPoolService 密钥池管理器
// 负责选取密钥、记录用量和错误；计数器按密钥加锁串行更新，
// 避免多个任务并发扇出时丢失累加
type KeyPoolService struct {
	db        *gorm.DB
	log       *logger.Logger
	threshold int // 连续错误多少次后自动停用

	mu       sync.Mutex
	keyLocks map[uint]*sync.Mutex
}

// NewKeyPoolService 创建密钥池管理器
func NewKeyPoolService(db *gorm.DB, log *logger.Logger, errorThreshold int) *KeyPoolService {
	if errorThreshold <= 0 {
		errorThreshold = 5
	}
	return &KeyPoolService{
		db:        db,
		log:       log,
		threshold: errorThreshold,
		keyLocks:  make(map[uint]*sync.Mutex),
	}
}

// Acquire 为指定提供商选取一把密钥
// 策略：在启用的密钥里选最久未使用的（从未使用的排最前），分散负载；
// 选取过程中发现错误次数超阈值的密钥顺手停用
func (s *KeyPoolService) Acquire(provider string, excludeID uint) (*model.ApiKey, error) {
	var keys []model.ApiKey
	err := s.db.Where("provider = ? AND is_active = ?", provider, true).
		Order("last_used_at ASC NULLS FIRST").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}

	for i := range keys {
		key := &keys[i]
		if key.ErrorCount >= s.threshold {
			// 超阈值的密钥在选取时顺手停用，不需要单独的巡检
			s.deactivate(key.ID)
			continue
		}
		if key.ID == excludeID {
			continue
		}
		return key, nil
	}

	// 全部被排除时退而求其次，允许复用刚失败的密钥
	for i := range keys {
		key := &keys[i]
		if key.ErrorCount < s.threshold {
			return key, nil
		}
	}

	return nil, ErrNoKeyAvailable
}

// Release 归还密钥并记录调用结果
// success 累加使用次数并清零连续错误；失败累加错误计数，认证失败立即停用
func (s *KeyPoolService) Release(key *model.ApiKey, success bool, authFailure bool) error {
	lock := s.lockFor(key.ID)
	lock.Lock()
	defer lock.Unlock()

	// 在锁内重读，保证读-改-写不丢失别的调用的计数
	var current model.ApiKey
	if err := s.db.First(&current, key.ID).Error; err != nil {
		return err
	}

	switch {
	case success:
		current.MarkSuccess()
	case authFailure:
		current.MarkError(s.threshold)
		current.Deactivate()
		s.log.Warnf("密钥认证失败，已停用: KeyID=%d, Provider=%s", current.ID, current.Provider)
	default:
		current.MarkError(s.threshold)
		if !current.IsActive {
			s.log.Warnf("密钥连续错误 %d 次，已自动停用: KeyID=%d, Provider=%s",
				current.ErrorCount, current.ID, current.Provider)
		}
	}

	return s.db.Model(&model.ApiKey{}).
		Where("id = ?", current.ID).
		Updates(map[string]interface{}{
			"is_active":     current.IsActive,
			"usage_count":   current.UsageCount,
			"error_count":   current.ErrorCount,
			"last_used_at":  current.LastUsedAt,
			"last_error_at": current.LastErrorAt,
		}).Error
}

// RecordUsage 追加一条调用审计记录
func (s *KeyPoolService) RecordUsage(record *model.ApiUsageRecord) {
	if err := s.db.Create(record).Error; err != nil {
		s.log.Errorf("写入调用审计记录失败: %v", err)
	}
}

// deactivate 停用密钥
func (s *KeyPoolService) deactivate(keyID uint) {
	err := s.db.Model(&model.ApiKey{}).
		Where("id = ?", keyID).
		Update("is_active", false).Error
	if err != nil {
		s.log.Errorf("停用密钥失败: KeyID=%d, %v", keyID, err)
		return
	}
	s.log.Warnf("密钥错误次数超过阈值，已停用: KeyID=%d", keyID)
}

// lockFor 获取密钥专属的互斥锁
func (s *KeyPoolService) lockFor(keyID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.keyLocks[keyID]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[keyID] = lock
	}
	return lock
}
