package normalizer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/rules"
)

const (
	noteTitleLimit      = 100
	defaultNoteCategory = "personal"
)

// Normalizer 把笔记、HN 条目、论文映射成 UnifiedItem，纯函数无副作用
type Normalizer struct {
	rules *rules.Rules
}

func New(r *rules.Rules) *Normalizer {
	if r == nil {
		r = rules.Default()
	}
	return &Normalizer{rules: r}
}

// Normalize 依次处理三类来源，输出顺序为 notes, stories, papers
func (n *Normalizer) Normalize(notes []models.Note, stories []models.Story, papers []models.Paper) []models.UnifiedItem {
	items := make([]models.UnifiedItem, 0, len(notes)+len(stories)+len(papers))
	for _, note := range notes {
		items = append(items, n.FromNote(note))
	}
	for _, s := range stories {
		items = append(items, n.FromStory(s))
	}
	for _, p := range papers {
		items = append(items, n.FromPaper(p))
	}
	return items
}

func (n *Normalizer) FromNote(note models.Note) models.UnifiedItem {
	category := strings.TrimSpace(note.Category)
	if category == "" {
		category = defaultNoteCategory
	}
	return models.UnifiedItem{
		ID:          NoteID(note),
		Type:        models.ItemTypeNote,
		Title:       Truncate(strings.TrimSpace(note.Content), noteTitleLimit),
		Body:        note.Content,
		PublishedAt: note.CreatedAt,
		Category:    category,
		Tags:        dedupe(note.Tags),
		SourceLabel: models.SourceNotes,
	}
}

func (n *Normalizer) FromStory(s models.Story) models.UnifiedItem {
	url := s.URL
	if url == "" {
		url = "https://news.ycombinator.com/item?id=" + strconv.Itoa(s.HNID)
	}
	tags, category := n.LinkTags(s.Title, s.Text, s.Score, s.CommentCount)
	return models.UnifiedItem{
		ID:          StoryID(s),
		Type:        models.ItemTypeLink,
		Title:       s.Title,
		Body:        s.Text,
		URL:         url,
		Popularity:  float64(s.Score),
		PublishedAt: s.PublishedAt,
		Category:    category,
		Tags:        tags,
		SourceLabel: models.SourceHackerNews,
	}
}

func (n *Normalizer) FromPaper(p models.Paper) models.UnifiedItem {
	flags := p.Flags()
	tags := make([]string, 0, len(n.rules.PaperCategories.Rules))
	for _, r := range n.rules.PaperCategories.Rules {
		if flags[r.Flag] {
			tags = append(tags, r.Category)
		}
	}
	return models.UnifiedItem{
		ID:          PaperID(p),
		Type:        models.ItemTypePaper,
		Title:       p.Title,
		Body:        p.Abstract,
		URL:         p.URL,
		PublishedAt: p.PublishedAt,
		Category:    n.rules.PaperCategories.Category(flags),
		Tags:        tags,
		SourceLabel: models.SourceArxiv,
	}
}

// LinkTags 对标题+正文做关键词扫描；分类取第一条命中的关键词规则
func (n *Normalizer) LinkTags(title, body string, score, comments int) ([]string, string) {
	lr := n.rules.LinkTags
	titleText := rules.NewText(title)
	text := rules.NewText(title, body)

	var tags []string
	for _, p := range lr.Prefixes {
		if titleText.HasPrefix(p.Prefix) {
			tags = append(tags, p.Tag)
		}
	}
	category := ""
	for _, k := range lr.Keywords {
		if text.HasAny(k.Words) {
			tags = append(tags, k.Tag)
			if category == "" {
				category = k.Category
			}
		}
	}
	if lr.PopularScore > 0 && score >= lr.PopularScore {
		tags = append(tags, "popular")
	}
	if lr.DiscussionComments > 0 && comments >= lr.DiscussionComments {
		tags = append(tags, "discussion")
	}
	if category == "" {
		category = lr.FallbackCategory
	}
	return dedupe(tags), category
}

func NoteID(n models.Note) string   { return string(models.ItemTypeNote) + ":" + n.ID.String() }
func StoryID(s models.Story) string { return string(models.ItemTypeLink) + ":" + strconv.Itoa(s.HNID) }
func PaperID(p models.Paper) string {
	return string(models.ItemTypePaper) + ":" + strconv.FormatUint(uint64(p.ID), 10)
}

// Truncate 按字符截断，超长时追加省略号
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
