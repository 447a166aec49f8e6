package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// FeedKey generation 变化后旧键不再被读取
func FeedKey(userID uuid.UUID, generation, date string, limit, offset int) string {
	return fmt.Sprintf("feed:%s:%s:%s:%d:%d", userID, generation, date, limit, offset)
}

// FeedGenerationKey 用户 feed 的当前代数，每次失效时更换
func FeedGenerationKey(userID uuid.UUID) string {
	return "feed-gen:" + userID.String()
}

// FeedIndexKey 记录某用户已写入的 feed 键，失效时逐个删除
func FeedIndexKey(userID uuid.UUID) string {
	return "feed-index:" + userID.String()
}

func PackKey(userID uuid.UUID, date string) string {
	return fmt.Sprintf("pack:%s:%s", userID, date)
}

func PaperSummaryKey(paperID string) string {
	return "paper-summary:" + paperID
}
