package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNoProvider = errors.New("no summarization provider configured")

// Request 待摘要的论文/链接
type Request struct {
	Title    string
	Abstract string
	URL      string
}

// Summary 外部模型返回的摘要与范式评分
type Summary struct {
	Tldr       string             `json:"tldr"`
	Paradigms  map[string]float64 `json:"paradigms"`
	MeritScore float64            `json:"merit"`
	Provider   string             `json:"provider"`
}

// TopParadigm 得分最高的范式，同分取字典序靠前者
func (s Summary) TopParadigm() string {
	keys := make([]string, 0, len(s.Paradigms))
	for k := range s.Paradigms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestScore := "", -1.0
	for _, k := range keys {
		if s.Paradigms[k] > bestScore {
			best, bestScore = k, s.Paradigms[k]
		}
	}
	return best
}

// Provider 摘要服务
type Provider interface {
	Name() string
	Summarize(ctx context.Context, req Request) (Summary, error)
}

const summaryPrompt = `You are a research digest editor. Summarize the following item for a curious, non-specialist reader.

Title: %s
Abstract: %s
URL: %s

Rate how strongly the work belongs to each paradigm (0-1): empirical, theoretical, computational, review, applied.
Rate its overall merit for a general audience (0-10).

Respond with JSON only, no other text:
{"tldr": "<at most two sentences>", "paradigms": {"empirical": <0-1>, "theoretical": <0-1>, "computational": <0-1>, "review": <0-1>, "applied": <0-1>}, "merit": <0-10>}`

func buildPrompt(req Request) string {
	abstract := req.Abstract
	if strings.TrimSpace(abstract) == "" {
		abstract = "(none)"
	}
	return fmt.Sprintf(summaryPrompt, req.Title, abstract, req.URL)
}

// parseSummary 从模型输出中提取 JSON 并校验
func parseSummary(provider, content string) (Summary, error) {
	content = extractJSON(content)

	var s Summary
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return Summary{}, fmt.Errorf("failed to parse summary JSON: %w, content: %s", err, content)
	}
	s.Tldr = strings.TrimSpace(s.Tldr)
	if s.Tldr == "" {
		return Summary{}, fmt.Errorf("empty tldr from %s", provider)
	}
	if s.MeritScore < 0 {
		s.MeritScore = 0
	}
	if s.MeritScore > 10 {
		s.MeritScore = 10
	}
	s.Provider = provider
	return s, nil
}

// 从可能包含 markdown 代码块的文本中提取 JSON
func extractJSON(text string) string {
	start := 0
	if idx := strings.Index(text, "```json"); idx != -1 {
		start = idx + len("```json")
	} else if idx := strings.Index(text, "```"); idx != -1 {
		start = idx + len("```")
	}

	end := len(text)
	if idx := strings.LastIndex(text, "```"); idx > start {
		end = idx
	}

	result := strings.TrimSpace(text[start:end])
	// 模型偶尔会在 JSON 前后加说明文字
	if i, j := strings.Index(result, "{"), strings.LastIndex(result, "}"); i >= 0 && j > i {
		result = result[i : j+1]
	}
	return result
}
