//go:build faiss

package vectordb

import (
	"fmt"
	"sync"

	"github.com/DataIntelligenceCrew/go-faiss"
)

func init() {
	RegisterIndex("faiss", NewFaissIndex)
}

// FaissIndex 基于Faiss扁平索引的实现
// L2使用IndexFlatL2，余弦与点积使用内积索引后换算为距离
type FaissIndex struct {
	mu        sync.RWMutex
	index     faiss.Index
	dimension int
	distType  DistanceType
}

// NewFaissIndex 创建Faiss扁平索引
func NewFaissIndex(config Config) (Index, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	distType := config.DistanceType
	if distType == "" {
		distType = Euclidean
	}

	var (
		index faiss.Index
		err   error
	)
	switch distType {
	case Euclidean:
		index, err = faiss.NewIndexFlatL2(config.Dimension)
	case Cosine, DotProduct:
		index, err = faiss.NewIndexFlat(config.Dimension, faiss.MetricInnerProduct)
	default:
		return nil, fmt.Errorf("unsupported distance type: %s", distType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Faiss index: %w", err)
	}

	return &FaissIndex{
		index:     index,
		dimension: config.Dimension,
		distType:  distType,
	}, nil
}

// Add 追加向量，按行展开后一次写入
func (f *FaissIndex) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	flat := make([]float32, 0, len(vectors)*f.dimension)
	for _, v := range vectors {
		if err := ValidateVector(v, f.dimension); err != nil {
			return err
		}
		flat = append(flat, f.prepare(v)...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index == nil {
		return ErrIndexClosed
	}
	if err := f.index.Add(flat); err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}
	return nil
}

// Search 搜索最近的k个向量
func (f *FaissIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if err := ValidateVector(query, f.dimension); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.index == nil {
		return nil, ErrIndexClosed
	}

	k = clampK(k, int(f.index.Ntotal()))
	if k == 0 {
		return []Neighbor{}, nil
	}

	distances, labels, err := f.index.Search(f.prepare(query), int64(k))
	if err != nil {
		return nil, fmt.Errorf("faiss search failed: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(labels))
	for i, label := range labels {
		// 结果不足k个时Faiss以-1补位
		if label < 0 {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Position: int(label),
			Distance: f.toDistance(distances[i]),
		})
	}

	sortNeighbors(neighbors)
	return neighbors, nil
}

// prepare 余弦度量下先归一化
func (f *FaissIndex) prepare(v []float32) []float32 {
	if f.distType == Cosine {
		return normalizeVector(v)
	}
	return v
}

// toDistance 将Faiss返回值换算为越小越近的距离
func (f *FaissIndex) toDistance(raw float32) float32 {
	switch f.distType {
	case Cosine:
		return 1 - raw
	case DotProduct:
		return -raw
	default:
		return raw
	}
}

// Len 返回向量数量
func (f *FaissIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(f.index.Ntotal())
}

// Dimension 返回向量维度
func (f *FaissIndex) Dimension() int {
	return f.dimension
}

// Close 释放Faiss索引
func (f *FaissIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		f.index.Delete()
		f.index = nil
	}
	return nil
}
