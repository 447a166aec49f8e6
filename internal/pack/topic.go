package pack

import (
	"strings"

	"github.com/smerrill2/social-learning-app-sub001/internal/rules"
)

// GeneralTopic 未指定主题时使用，不做关键词过滤
const GeneralTopic = "general"

// Topic 解析后的主题
type Topic struct {
	Name     string
	Keywords []string
}

// Filtered 是否需要按关键词过滤
func (t Topic) Filtered() bool { return len(t.Keywords) > 0 }

// Classifier 主题 → 关键词组，按规则表顺序匹配别名
type Classifier struct {
	topics []rules.TopicRule
}

func NewClassifier(r *rules.Rules) *Classifier {
	return &Classifier{topics: r.Topics}
}

// Resolve 未知主题保留原名，关键词为空
func (c *Classifier) Resolve(topic string) Topic {
	name := strings.ToLower(strings.Join(strings.Fields(topic), " "))
	if name == "" || name == GeneralTopic {
		return Topic{Name: GeneralTopic}
	}
	text := rules.NewText(name)
	for _, t := range c.topics {
		if name == t.Name || text.HasAny(t.Aliases) {
			return Topic{Name: t.Name, Keywords: t.Keywords}
		}
	}
	return Topic{Name: name}
}

// Matches 文本是否命中主题关键词；无关键词时总是命中
func (t Topic) Matches(parts ...string) bool {
	if !t.Filtered() {
		return true
	}
	return rules.NewText(parts...).HasAny(t.Keywords)
}

// display 用于模板文案
func (t Topic) display() string {
	if t.Name == GeneralTopic {
		return "your interests"
	}
	return t.Name
}
