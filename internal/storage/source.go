package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Source.Type 的两种取值：整页抓取的网站 / RSS:Atom 订阅源
const (
	SourceTypeWebsite = "website"
	SourceTypeFeed    = "feed"
)

// Source 一个内容源。URL 全局唯一；LastRunAt 记录最近一次采集尝试（成败都算）
type Source struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:100" json:"name"`
	URL       string     `gorm:"size:500;uniqueIndex" json:"url"`
	Type      string     `gorm:"size:20;index" json:"type"`
	Active    bool       `gorm:"default:true;index" json:"active"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ErrSourceExists URL 已存在，原有行保持不变
var ErrSourceExists = errors.New("source url already exists")

func ValidSourceType(t string) bool {
	return t == SourceTypeWebsite || t == SourceTypeFeed
}

// ListSources 返回全部源，按创建顺序
func (s *Store) ListSources() ([]Source, error) {
	var list []Source
	err := s.DB.Order("id ASC").Find(&list).Error
	return list, err
}

// ListActiveSources 返回启用中的源，采集按该顺序逐个处理
func (s *Store) ListActiveSources() ([]Source, error) {
	var list []Source
	err := s.DB.Where("active = ?", true).Order("id ASC").Find(&list).Error
	return list, err
}

// AddSource 新增内容源；URL 去掉首尾空白后作为唯一键，重复时返回已有行和 ErrSourceExists
func (s *Store) AddSource(name, url, typ string) (*Source, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return nil, errors.New("source name and url are required")
	}
	if !ValidSourceType(typ) {
		return nil, fmt.Errorf("invalid source type %q", typ)
	}

	var existing Source
	err := s.DB.Where("url = ?", url).First(&existing).Error
	if err == nil {
		return &existing, ErrSourceExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	src := &Source{Name: name, URL: url, Type: typ, Active: true}
	if err := s.DB.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// ToggleSource 翻转启用状态；停用的源保留历史文章，只是不再参与采集
func (s *Store) ToggleSource(id uint) (*Source, error) {
	var src Source
	if err := s.DB.First(&src, id).Error; err != nil {
		return nil, err
	}
	src.Active = !src.Active
	if err := s.DB.Model(&src).Update("active", src.Active).Error; err != nil {
		return nil, err
	}
	return &src, nil
}
