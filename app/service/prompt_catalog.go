package service

import (
	"summary-fusion/app/model"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

const activePromptsCacheKey = "active_prompts"

// PromptCatalog 提示词目录
// 提供启用中的有序提示词集合，带短TTL缓存；提示词增删改后需要失效缓存
type PromptCatalog struct {
	db    *gorm.DB
	cache *gocache.Cache
}

// NewPromptCatalog 创建提示词目录
func NewPromptCatalog(db *gorm.DB) *PromptCatalog {
	return &PromptCatalog{
		db:    db,
		cache: gocache.New(30*time.Second, time.Minute),
	}
}

// ActivePrompts 返回所有启用的提示词，按排序字段升序
func (c *PromptCatalog) ActivePrompts() ([]model.SystemPrompt, error) {
	if cached, ok := c.cache.Get(activePromptsCacheKey); ok {
		return cached.([]model.SystemPrompt), nil
	}

	var prompts []model.SystemPrompt
	err := c.db.Where("is_active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&prompts).Error
	if err != nil {
		return nil, err
	}

	c.cache.Set(activePromptsCacheKey, prompts, gocache.DefaultExpiration)
	return prompts, nil
}

// Invalidate 失效缓存，提示词CRUD后调用
func (c *PromptCatalog) Invalidate() {
	c.cache.Delete(activePromptsCacheKey)
}
