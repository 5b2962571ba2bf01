package main

import (
	"fmt"
	"log"
	"os"

	"obraflow/internal/config"
	"obraflow/internal/models"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Starting database migration...")

	err = db.AutoMigrate(
		&models.User{},
		&models.Lead{},
		&models.Obra{},
		&models.Approval{},
		&models.RoadmapAction{},
		&models.ObraChecklist{},
		&models.ChecklistItem{},
		&models.AutomationRule{},
		&models.AutomationRun{},
		&models.AutomationOutboxEntry{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migration completed successfully!")

	log.Println("Creating additional indexes...")

	// 幂等账本的唯一约束是引擎 at-most-once 语义的根基
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_automation_outbox_org_key ON automation_outbox_entries(org_id, action_key)")

	// 常用查询的复合索引
	db.Exec("CREATE INDEX IF NOT EXISTS idx_automation_runs_org_created ON automation_runs(org_id, created_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_roadmap_actions_owner_status ON roadmap_actions(org_id, user_id, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_leads_org_stage ON leads(org_id, stage)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_obras_org_status ON obras(org_id, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_checklists_org_obra ON obra_checklists(org_id, obra_id)")

	log.Println("Indexes created successfully!")
}
