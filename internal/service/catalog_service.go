package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/habityfy/internal/db"
	"gorm.io/gorm"
)

// ErrCatalogInvalidSlug 在 slug 不符合命名要求时返回
var ErrCatalogInvalidSlug = errors.New("invalid catalog slug")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// CatalogService 负责精选习惯目录的维护
// 面向用户只读（ListActive/GetBySlug），增删改仅供后台使用

type CatalogService struct {
	db *gorm.DB
}

// CatalogInput 定义创建/更新目录条目时可配置字段
type CatalogInput struct {
	Name           string
	Slug           string
	Description    string
	TypeTag        string
	DefaultCadence string
	Icon           string
	SortOrder      int
	Status         string
}

// CatalogFilter 描述后台列表过滤条件
type CatalogFilter struct {
	Status  string
	TypeTag string
}

// NewCatalogService 构造 CatalogService
func NewCatalogService(gdb *gorm.DB) *CatalogService {
	return &CatalogService{db: gdb}
}

// ListActive 返回对用户可见的目录条目
func (s *CatalogService) ListActive() ([]db.MasterHabit, error) {
	var entries []db.MasterHabit
	if err := s.db.Where("status = ?", "active").
		Order("sort_order ASC, name ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return entries, nil
}

// List 返回全部目录条目，供后台筛选
func (s *CatalogService) List(filter CatalogFilter) ([]db.MasterHabit, error) {
	query := s.db.Model(&db.MasterHabit{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TypeTag != "" {
		query = query.Where("type_tag = ?", filter.TypeTag)
	}

	var entries []db.MasterHabit
	if err := query.Order("sort_order ASC, name ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	return entries, nil
}

// GetBySlug 返回上架中的目录条目
func (s *CatalogService) GetBySlug(slug string) (*db.MasterHabit, error) {
	var entry db.MasterHabit
	if err := s.db.Where("slug = ? AND status = ?", strings.TrimSpace(slug), "active").
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCatalogEntryNotFound
		}
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return &entry, nil
}

// Get 根据 ID 获取目录条目，后台用，不区分上架状态
func (s *CatalogService) Get(id uint) (*db.MasterHabit, error) {
	var entry db.MasterHabit
	if err := s.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCatalogEntryNotFound
		}
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return &entry, nil
}

// Create 新建目录条目
func (s *CatalogService) Create(input CatalogInput) (*db.MasterHabit, error) {
	entry, err := catalogFromInput(input)
	if err != nil {
		return nil, err
	}

	if err := s.db.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create catalog entry: %w", err)
	}
	return entry, nil
}

// Update 更新目录条目
func (s *CatalogService) Update(id uint, input CatalogInput) (*db.MasterHabit, error) {
	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updated, err := catalogFromInput(input)
	if err != nil {
		return nil, err
	}

	existing.Name = updated.Name
	existing.Slug = updated.Slug
	existing.Description = updated.Description
	existing.TypeTag = updated.TypeTag
	existing.DefaultCadence = updated.DefaultCadence
	existing.Icon = updated.Icon
	existing.SortOrder = updated.SortOrder
	existing.Status = updated.Status

	if err := s.db.Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update catalog entry: %w", err)
	}
	return existing, nil
}

// Delete 删除目录条目，已领取的用户习惯不受影响
func (s *CatalogService) Delete(id uint) error {
	if err := s.db.Delete(&db.MasterHabit{}, id).Error; err != nil {
		return fmt.Errorf("delete catalog entry: %w", err)
	}
	return nil
}

func catalogFromInput(input CatalogInput) (*db.MasterHabit, error) {
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("%w: %s", ErrCatalogInvalidSlug, input.Slug)
	}

	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("catalog entry name is required")
	}

	cadence, err := normalizeCadence(input.DefaultCadence)
	if err != nil {
		return nil, err
	}

	return &db.MasterHabit{
		Name:           strings.TrimSpace(input.Name),
		Slug:           slug,
		Description:    strings.TrimSpace(input.Description),
		TypeTag:        strings.TrimSpace(input.TypeTag),
		DefaultCadence: cadence,
		Icon:           strings.TrimSpace(input.Icon),
		SortOrder:      input.SortOrder,
		Status:         normalizeStatus(input.Status),
	}, nil
}

func normalizeStatus(status string) string {
	status = strings.TrimSpace(strings.ToLower(status))
	if status != "inactive" {
		return "active"
	}
	return "inactive"
}
