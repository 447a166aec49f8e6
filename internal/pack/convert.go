package pack

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/normalizer"
)

const (
	MaxSummaryChars   = 280
	MaxSummarySents   = 3
	WordsPerMinute    = 200
	noteTitleLimit    = 80
	promptReadMinutes = 2
)

// 每种来源的阅读时长范围（分钟）
var readingRange = map[models.PackSource][2]int{
	models.PackSourceResearch: {4, 20},
	models.PackSourceLink:     {2, 12},
	models.PackSourceNote:     {1, 5},
	models.PackSourcePrompt:   {promptReadMinutes, promptReadMinutes},
}

var whyTemplates = map[models.PackSource]string{
	models.PackSourceResearch: "New research on %s, so your understanding rests on evidence.",
	models.PackSourceLink:     "What practitioners are discussing about %s right now.",
	models.PackSourceNote:     "Your own thinking on %s, resurfaced for review.",
	models.PackSourcePrompt:   "Turns today's reading on %s into practice.",
}

var promptTemplates = []string{
	"Pick one idea about %s from today's pack and try it within the next 24 hours.",
	"Write three sentences on where %s shows up in your own work.",
	"Explain one %s concept from today's pack to a friend in plain words.",
	"List one assumption you hold about %s and look for a counterexample.",
}

func FromPaper(p models.Paper, topic Topic) models.PackItem {
	return models.PackItem{
		ID:             normalizer.PaperID(p),
		Source:         models.PackSourceResearch,
		Title:          p.Title,
		Summary:        Summarize(p.Abstract, p.Title),
		URL:            p.URL,
		ReadingMinutes: ReadingMinutes(p.Abstract, models.PackSourceResearch),
		WhyItMatters:   whyItMatters(models.PackSourceResearch, topic),
	}
}

func FromStory(s models.Story, topic Topic) models.PackItem {
	link := s.URL
	if link == "" {
		link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", s.HNID)
	}
	fallback := fmt.Sprintf("Discussed on Hacker News with %d points and %d comments.", s.Score, s.CommentCount)
	return models.PackItem{
		ID:             normalizer.StoryID(s),
		Source:         models.PackSourceLink,
		Title:          s.Title,
		Summary:        Summarize(s.Text, fallback),
		URL:            link,
		Domain:         Domain(link),
		ReadingMinutes: ReadingMinutes(s.Text, models.PackSourceLink),
		WhyItMatters:   whyItMatters(models.PackSourceLink, topic),
	}
}

func FromNote(n models.Note, topic Topic) models.PackItem {
	return models.PackItem{
		ID:             normalizer.NoteID(n),
		Source:         models.PackSourceNote,
		Title:          normalizer.Truncate(strings.TrimSpace(n.Content), noteTitleLimit),
		Summary:        Summarize(n.Content, ""),
		ReadingMinutes: ReadingMinutes(n.Content, models.PackSourceNote),
		WhyItMatters:   whyItMatters(models.PackSourceNote, topic),
	}
}

// Prompt 合成的"动手"提示，不持久化
func Prompt(topic Topic, date string, seq int) models.PackItem {
	text := fmt.Sprintf(promptTemplates[seq%len(promptTemplates)], topic.display())
	return models.PackItem{
		ID:             fmt.Sprintf("prompt:%s:%d", date, seq),
		Source:         models.PackSourcePrompt,
		Title:          "Apply: " + topic.display(),
		Summary:        text,
		ReadingMinutes: promptReadMinutes,
		WhyItMatters:   whyItMatters(models.PackSourcePrompt, topic),
		Synthetic:      true,
	}
}

func whyItMatters(src models.PackSource, topic Topic) string {
	return fmt.Sprintf(whyTemplates[src], topic.display())
}

// Summarize 取前 1–3 句，超过 280 字符截断；正文为空时用 fallback
func Summarize(text, fallback string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		text = strings.Join(strings.Fields(fallback), " ")
	}
	sents := sentences(text, MaxSummarySents)
	return clip(strings.Join(sents, " "), MaxSummaryChars)
}

// sentences 以 . ! ? 加空格作为句子边界
func sentences(text string, limit int) []string {
	var out []string
	start := 0
	for i := 0; i < len(text) && len(out) < limit; i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' {
				out = append(out, strings.TrimSpace(text[start:i+1]))
				start = i + 1
			}
		}
	}
	if len(out) < limit && start < len(text) {
		if rest := strings.TrimSpace(text[start:]); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit-3])) + "..."
}

// ReadingMinutes 按 200 词/分钟向上取整，再限制在来源对应的范围内
func ReadingMinutes(text string, src models.PackSource) int {
	words := len(strings.Fields(text))
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	r, ok := readingRange[src]
	if !ok {
		return max(1, minutes)
	}
	return min(max(minutes, r[0]), r[1])
}

// Domain 小写主机名，去掉 www. 前缀；解析失败返回空
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
