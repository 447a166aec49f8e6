package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Rules 启发式分类使用的全部规则表
type Rules struct {
	LinkTags        LinkTagRules      `yaml:"link_tags"`
	PaperCategories PaperRules        `yaml:"paper_categories"`
	Topics          []TopicRule       `yaml:"topics"`
	Achievements    []AchievementRule `yaml:"achievements"`
}

type LinkTagRules struct {
	PopularScore       int           `yaml:"popular_score"`
	DiscussionComments int           `yaml:"discussion_comments"`
	Prefixes           []PrefixRule  `yaml:"prefixes"`
	Keywords           []KeywordRule `yaml:"keywords"`
	FallbackCategory   string        `yaml:"fallback_category"`
}

type PrefixRule struct {
	Prefix string `yaml:"prefix"`
	Tag    string `yaml:"tag"`
}

type KeywordRule struct {
	Tag      string   `yaml:"tag"`
	Category string   `yaml:"category"`
	Words    []string `yaml:"words"`
}

// PaperRules 论文分类：按顺序匹配，第一个命中的标志决定分类
type PaperRules struct {
	Rules    []PaperRule
	Fallback string
}

type PaperRule struct {
	Flag     string   `yaml:"flag"`
	Category string   `yaml:"category"`
	Words    []string `yaml:"words"`
}

// YAML 里 paper_categories 是列表加一个 fallback 项，这里做兼容解析
func (p *PaperRules) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("paper_categories: expected sequence")
	}
	for _, item := range node.Content {
		var probe struct {
			Fallback string `yaml:"fallback"`
		}
		if err := item.Decode(&probe); err != nil {
			return err
		}
		if probe.Fallback != "" {
			p.Fallback = probe.Fallback
			continue
		}
		var r PaperRule
		if err := item.Decode(&r); err != nil {
			return err
		}
		p.Rules = append(p.Rules, r)
	}
	return nil
}

type TopicRule struct {
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	Keywords []string `yaml:"keywords"`
}

type AchievementRule struct {
	ID           string `yaml:"id"`
	Category     string `yaml:"category"`
	Tier         string `yaml:"tier"`
	StatusPoints int    `yaml:"status_points"`
	Criteria     struct {
		Type      string `yaml:"type"`
		Threshold int    `yaml:"threshold"`
		SkillArea string `yaml:"skill_area"`
		Timeframe string `yaml:"timeframe"`
	} `yaml:"criteria"`
}

// Default 返回内置规则表
func Default() *Rules {
	r, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return r
}

// Load path 为空时使用内置规则
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if r.PaperCategories.Fallback == "" {
		r.PaperCategories.Fallback = "research"
	}
	if r.LinkTags.FallbackCategory == "" {
		r.LinkTags.FallbackCategory = "tech"
	}
	for _, a := range r.Achievements {
		if a.ID == "" || a.Criteria.Type == "" {
			return nil, fmt.Errorf("achievement rule missing id or criteria type")
		}
	}
	return &r, nil
}

// Text 预处理后的文本，用于按词匹配
type Text struct {
	padded string
}

// NewText 小写化，非字母数字字符替换为空格
func NewText(parts ...string) Text {
	var b strings.Builder
	b.WriteByte(' ')
	for _, p := range parts {
		for _, r := range strings.ToLower(p) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte(' ')
	}
	return Text{padded: strings.Join(strings.Fields(b.String()), " ")}
}

// Has 按整词匹配；以 * 结尾的词按前缀匹配
func (t Text) Has(word string) bool {
	s := " " + t.padded + " "
	w := strings.Join(strings.Fields(strings.ToLower(word)), " ")
	if w == "" {
		return false
	}
	if strings.HasSuffix(w, "*") {
		return strings.Contains(s, " "+strings.TrimSuffix(w, "*"))
	}
	return strings.Contains(s, " "+w+" ")
}

// HasAny 任一词命中即为 true
func (t Text) HasAny(words []string) bool {
	for _, w := range words {
		if t.Has(w) {
			return true
		}
	}
	return false
}

// HasPrefix 文本是否以给定短语开头
func (t Text) HasPrefix(phrase string) bool {
	p := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	return p != "" && strings.HasPrefix(t.padded+" ", p+" ")
}

func (t Text) Empty() bool { return t.padded == "" }

// Flags 对论文文本逐条计算分类标志
func (p PaperRules) Flags(text Text) map[string]bool {
	flags := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		flags[r.Flag] = text.HasAny(r.Words)
	}
	return flags
}

// Category 按优先级返回第一个为 true 的标志对应的分类
func (p PaperRules) Category(flags map[string]bool) string {
	for _, r := range p.Rules {
		if flags[r.Flag] {
			return r.Category
		}
	}
	return p.Fallback
}
