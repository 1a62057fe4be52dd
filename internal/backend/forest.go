package backend

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"placement-predictor/pkg/registry"
)

// Node is one entry of a flattened decision tree. Internal nodes route
// x[Feature] <= Threshold to Left, otherwise Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Label     int     `json:"label"`
}

// Tree is a decision tree stored as a node array rooted at index 0.
type Tree []Node

// Forest is a majority-vote ensemble of trees. Ties go to label 1.
type Forest struct {
	Trees     []Tree
	nFeatures int
	workers   int
}

func loadForest(raw []byte) (registry.Backend, registry.Kind, int, error) {
	var a struct {
		header
		Trees []Tree `json:"trees"`
	}
	if err := decode(raw, &a); err != nil {
		return nil, "", 0, err
	}
	f, err := NewForest(a.Trees, a.NFeatures)
	if err != nil {
		return nil, "", 0, err
	}
	return f, registry.Discrete, a.NFeatures, nil
}

// NewForest validates every tree so Predict cannot loop or index out of range.
func NewForest(trees []Tree, nFeatures int) (*Forest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest artifact has no trees")
	}
	for ti, t := range trees {
		if err := t.validate(nFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > len(trees) {
		workers = len(trees)
	}
	return &Forest{Trees: trees, nFeatures: nFeatures, workers: workers}, nil
}

// validate requires children to sit after their parent, which rules out cycles.
func (t Tree) validate(nFeatures int) error {
	if len(t) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t {
		if n.Leaf {
			if n.Label != 0 && n.Label != 1 {
				return fmt.Errorf("node %d: leaf label %d is not 0 or 1", i, n.Label)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t) || n.Right <= i || n.Right >= len(t) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

func (t Tree) classify(x []float64) int {
	idx := 0
	for {
		n := t[idx]
		if n.Leaf {
			return n.Label
		}
		if x[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Predict evaluates trees on a bounded pool of goroutines and takes the
// majority vote per row.
func (f *Forest) Predict(ctx context.Context, batch [][]float64) ([]float64, error) {
	if err := checkBatch(ctx, batch, f.nFeatures); err != nil {
		return nil, err
	}

	votes := make([]int, len(batch))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, tree := range f.Trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local := make([]int, len(batch))
			for i, x := range batch {
				local[i] = tree.classify(x)
			}
			mu.Lock()
			for i, v := range local {
				votes[i] += v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, len(batch))
	total := len(f.Trees)
	for i, placed := range votes {
		if 2*placed >= total {
			out[i] = 1
		}
	}
	return out, nil
}
