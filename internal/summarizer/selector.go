package summarizer

import (
	"context"
	"math/rand"
	"sync"
)

// Weighted 带权重的 provider
type Weighted struct {
	Provider Provider
	Weight   float64
}

// Selector 按权重随机选择一个 provider；随机源由调用方注入，测试时可复现
type Selector struct {
	mu        sync.Mutex
	rng       *rand.Rand
	providers []Weighted
	total     float64
}

// NewSelector 权重 <= 0 或 provider 为 nil 的条目被忽略
func NewSelector(seed int64, providers ...Weighted) *Selector {
	s := &Selector{rng: rand.New(rand.NewSource(seed))}
	for _, p := range providers {
		if p.Provider == nil || p.Weight <= 0 {
			continue
		}
		s.providers = append(s.providers, p)
		s.total += p.Weight
	}
	return s
}

func (s *Selector) Name() string { return "selector" }

// Available 是否至少有一个可用的 provider
func (s *Selector) Available() bool { return len(s.providers) > 0 }

// Pick 按权重选择
func (s *Selector) Pick() (Provider, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProvider
	}
	s.mu.Lock()
	x := s.rng.Float64() * s.total
	s.mu.Unlock()

	for _, p := range s.providers {
		if x < p.Weight {
			return p.Provider, nil
		}
		x -= p.Weight
	}
	return s.providers[len(s.providers)-1].Provider, nil
}

func (s *Selector) Summarize(ctx context.Context, req Request) (Summary, error) {
	p, err := s.Pick()
	if err != nil {
		return Summary{}, err
	}
	return p.Summarize(ctx, req)
}
