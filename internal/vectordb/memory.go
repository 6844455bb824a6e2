package vectordb

import (
	"fmt"
	"sync"
)

func init() {
	RegisterIndex("memory", NewMemoryIndex)
}

// MemoryIndex 纯Go实现的扁平索引
// 逐一计算距离，结果与Faiss扁平索引一致
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	distType  DistanceType
	vectors   [][]float32
	closed    bool
}

// NewMemoryIndex 创建内存扁平索引
func NewMemoryIndex(config Config) (Index, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	distType := config.DistanceType
	if distType == "" {
		distType = Euclidean
	}
	if _, err := ComputeDistance(nil, nil, distType); err != nil {
		return nil, err
	}

	return &MemoryIndex{
		dimension: config.Dimension,
		distType:  distType,
	}, nil
}

// Add 追加向量
func (m *MemoryIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if err := ValidateVector(v, m.dimension); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrIndexClosed
	}
	for _, v := range vectors {
		stored := make([]float32, len(v))
		copy(stored, v)
		m.vectors = append(m.vectors, stored)
	}
	return nil
}

// Search 暴力搜索最近的k个向量
func (m *MemoryIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if err := ValidateVector(query, m.dimension); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrIndexClosed
	}

	neighbors := make([]Neighbor, len(m.vectors))
	for i, v := range m.vectors {
		dist, err := ComputeDistance(query, v, m.distType)
		if err != nil {
			return nil, err
		}
		neighbors[i] = Neighbor{Position: i, Distance: dist}
	}

	sortNeighbors(neighbors)
	return neighbors[:clampK(k, len(neighbors))], nil
}

// Len 返回向量数量
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Dimension 返回向量维度
func (m *MemoryIndex) Dimension() int {
	return m.dimension
}

// Close 释放向量
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.vectors = nil
	return nil
}
