// 手动触发失败资料的重新摄入脚本
//
// 摄入在上传请求内同步完成；主题检测偶发失败（供应商限流、网络抖动）
// 会把文档停在 failed / no_topics 状态。此脚本批量重跑这些文档的
// 提取与检测，例如更换 AI 供应商或修复配额后执行一次。
//
// 用法: go run scripts/reingest_documents.go
package main

import (
	"context"
	"log"

	"quiz_mentor_backend/internal/config"
	"quiz_mentor_backend/internal/llm"
	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/repository"
	"quiz_mentor_backend/internal/service"
	"quiz_mentor_backend/pkg/database"
	"quiz_mentor_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ctx := context.Background()
	provider, err := llm.NewProvider(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("AI供应商初始化失败: %v", err)
	}

	docRepo := repository.NewDocumentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	targetRepo := repository.NewLearningTargetRepository(db)

	storage := service.NewStorageService(cfg)
	detector := service.NewTopicDetectorService(provider, logger.Log)
	targets := service.NewLearningTargetService(targetRepo, cfg, logger.Log)
	documents := service.NewDocumentService(docRepo, courseRepo, storage, detector, targets, logger.Log)

	var stuck []model.Document
	if err := db.Where("status IN ?", []string{model.DocumentStatusFailed, model.DocumentStatusNoTopics}).Find(&stuck).Error; err != nil {
		log.Fatalf("查询待重跑文档失败: %v", err)
	}
	log.Printf("共 %d 个文档待重新摄入", len(stuck))

	var ok, failed int
	for _, doc := range stuck {
		// Reingest 做了属主校验；脚本直接以上传者身份重跑
		reingested, err := documents.Reingest(ctx, doc.UploaderID, doc.ID)
		if err != nil {
			log.Printf("文档 %s (%s) 重跑失败: %v", doc.ID, doc.Name, err)
			failed++
			continue
		}
		log.Printf("文档 %s (%s) -> %s", doc.ID, doc.Name, reingested.Status)
		ok++
	}
	log.Printf("完成：成功 %d，失败 %d", ok, failed)
}
