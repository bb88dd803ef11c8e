package models

import (
	"sort"
	"sync"
)

// LinkSet 并发安全的URL集合
// 职责: 保证一次运行中同一URL最多出现一次
type LinkSet struct {
	stage Stage
	mu    sync.RWMutex
	seen  map[string]struct{}
	order []string
}

// NewLinkSet 创建指定阶段的链接集合
func NewLinkSet(stage Stage) *LinkSet {
	return &LinkSet{
		stage: stage,
		seen:  make(map[string]struct{}),
	}
}

// Add 添加URL,返回是否为新URL
func (s *LinkSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	s.order = append(s.order, url)
	return true
}

// AddAll 批量添加,返回新增数量
func (s *LinkSet) AddAll(urls []string) int {
	added := 0
	for _, u := range urls {
		if s.Add(u) {
			added++
		}
	}
	return added
}

// Contains 检查URL是否在集合中
func (s *LinkSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[url]
	return ok
}

// Len 集合大小
func (s *LinkSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Members 返回排序后的成员副本
func (s *LinkSet) Members() []string {
	s.mu.RLock()
	members := make([]string, len(s.order))
	copy(members, s.order)
	s.mu.RUnlock()

	sort.Strings(members)
	return members
}

// Targets 将集合转换为爬取目标列表(按URL排序)
func (s *LinkSet) Targets() []CrawlTarget {
	members := s.Members()
	targets := make([]CrawlTarget, 0, len(members))
	for _, u := range members {
		targets = append(targets, NewCrawlTarget(u, s.stage, ""))
	}
	return targets
}
