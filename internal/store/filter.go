package store

import (
	"strings"
	"unicode"

	"gorm.io/gorm"
)

// keywordFilter 任一关键词以整词形式出现在任一列中即命中（PostgreSQL ~*）。
// 与 rules.Text 一致：非字母数字视为分隔符，以 * 结尾的词按前缀匹配。
func keywordFilter(q *gorm.DB, keywords []string, columns ...string) *gorm.DB {
	if len(keywords) == 0 || len(columns) == 0 {
		return q
	}
	var conds []string
	var args []any
	for _, kw := range keywords {
		pattern := wordPattern(kw)
		if pattern == "" {
			continue
		}
		for _, col := range columns {
			conds = append(conds, col+" ~* ?")
			args = append(args, pattern)
		}
	}
	if len(conds) == 0 {
		return q
	}
	return q.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// wordPattern "deep work" → \mdeep[^[:alnum:]]+work\M
func wordPattern(kw string) string {
	kw = strings.ToLower(strings.TrimSpace(kw))
	prefix := strings.HasSuffix(kw, "*")
	tokens := strings.FieldsFunc(kw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return ""
	}
	p := `\m` + strings.Join(tokens, `[^[:alnum:]]+`)
	if !prefix {
		p += `\M`
	}
	return p
}
