package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Keyword 用户关注的关键词。词条统一规范化成小写，作为唯一标识
type Keyword struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Term      string    `gorm:"size:100;uniqueIndex" json:"term"`
	Active    bool      `gorm:"default:true;index" json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrKeywordExists 规范化后的词条已存在，原有行保持不变
var ErrKeywordExists = errors.New("keyword already exists")

// ErrEmptyTerm 词条去掉空白后为空
var ErrEmptyTerm = errors.New("keyword term is empty")

// NormalizeTerm 规范化关键词：去首尾空白并整体小写。
// 匹配与唯一性判断都基于规范化后的词条
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// ListKeywords 返回全部关键词，按创建顺序
func (s *Store) ListKeywords() ([]Keyword, error) {
	var list []Keyword
	err := s.DB.Order("id ASC").Find(&list).Error
	return list, err
}

// ListActiveKeywords 返回启用中的关键词，采集打分只用这部分
func (s *Store) ListActiveKeywords() ([]Keyword, error) {
	var list []Keyword
	err := s.DB.Where("active = ?", true).Order("id ASC").Find(&list).Error
	return list, err
}

// AddKeyword 新增关键词；词条重复时返回已有行和 ErrKeywordExists
func (s *Store) AddKeyword(term string) (*Keyword, error) {
	term = NormalizeTerm(term)
	if term == "" {
		return nil, ErrEmptyTerm
	}

	var existing Keyword
	err := s.DB.Where("term = ?", term).First(&existing).Error
	if err == nil {
		return &existing, ErrKeywordExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	kw := &Keyword{Term: term, Active: true}
	if err := s.DB.Create(kw).Error; err != nil {
		return nil, err
	}
	return kw, nil
}

// ToggleKeyword 翻转启用状态，从下一轮采集开始生效
func (s *Store) ToggleKeyword(id uint) (*Keyword, error) {
	var kw Keyword
	if err := s.DB.First(&kw, id).Error; err != nil {
		return nil, err
	}
	kw.Active = !kw.Active
	if err := s.DB.Model(&kw).Update("active", kw.Active).Error; err != nil {
		return nil, err
	}
	return &kw, nil
}
