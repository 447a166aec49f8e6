package store

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

// Store 基于 gorm 的持久化层，实现各服务需要的仓储接口
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open 连接 PostgreSQL
func Open(dsn string) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func New(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.With("service", "Store")}
}

// interactionOnceIndex 除 view 外，同一用户对同一条目的同类互动只允许一条
const interactionOnceIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_interaction_once
	ON interactions (user_id, item_type, item_id, kind) WHERE kind <> 'view'`

// Migrate 建表
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&models.User{},
		&models.Note{},
		&models.Story{},
		&models.Paper{},
		&models.Interaction{},
		&learningProfileRecord{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ContentAssessment{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := s.db.Exec(interactionOnceIndex).Error; err != nil {
		return fmt.Errorf("create interaction index: %w", err)
	}
	s.log.Info("database migrated")
	return nil
}
