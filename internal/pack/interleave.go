package pack

import "github.com/smerrill2/social-learning-app-sub001/internal/models"

// PackSize 每日内容包条数
const PackSize = 12

// slotPattern 偏重研究内容的 12 槽顺序
var slotPattern = [PackSize]models.PackSource{
	models.PackSourceResearch, models.PackSourceResearch, models.PackSourceLink,
	models.PackSourceResearch, models.PackSourceNote, models.PackSourceResearch,
	models.PackSourceLink, models.PackSourceResearch, models.PackSourceNote,
	models.PackSourceLink, models.PackSourceResearch, models.PackSourceNote,
}

// backfillOrder 首选来源耗尽时依次尝试
var backfillOrder = []models.PackSource{models.PackSourceResearch, models.PackSourceLink, models.PackSourceNote}

// Interleave 按槽位顺序取各队列；首选来源为空时从其他非空队列补位，全部耗尽后用 pad 生成填充项
func Interleave(queues map[models.PackSource][]models.PackItem, pad func(seq int) models.PackItem) []models.PackItem {
	q := make(map[models.PackSource][]models.PackItem, len(queues))
	for k, v := range queues {
		q[k] = v
	}
	pop := func(src models.PackSource) (models.PackItem, bool) {
		if len(q[src]) == 0 {
			return models.PackItem{}, false
		}
		it := q[src][0]
		q[src] = q[src][1:]
		return it, true
	}

	out := make([]models.PackItem, 0, PackSize)
	padded := 0
	for _, want := range slotPattern {
		if it, ok := pop(want); ok {
			out = append(out, it)
			continue
		}
		filled := false
		for _, src := range backfillOrder {
			if it, ok := pop(src); ok {
				out = append(out, it)
				filled = true
				break
			}
		}
		if !filled {
			out = append(out, pad(padded))
			padded++
		}
	}
	return out
}
