//go:build faiss

package vectordb

import (
	"testing"
)

func TestFaissIndex(t *testing.T) {
	index, err := NewIndex(Config{Type: "faiss", Dimension: 4, DistanceType: Euclidean})
	if err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	testIndex(t, index)
}
