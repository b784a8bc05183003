package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/repository"
	"quiz_mentor_backend/internal/util"

	"go.uber.org/zap"
)

// 单个资料文件的大小上限
const maxDocumentSize = 20 << 20 // 20MB

type DocumentService struct {
	DocRepo    *repository.DocumentRepository
	CourseRepo *repository.CourseRepository
	Storage    *StorageService
	Detector   *TopicDetectorService
	Targets    *LearningTargetService
	Log        *zap.Logger
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	courseRepo *repository.CourseRepository,
	storage *StorageService,
	detector *TopicDetectorService,
	targets *LearningTargetService,
	log *zap.Logger,
) *DocumentService {
	return &DocumentService{
		DocRepo:    docRepo,
		CourseRepo: courseRepo,
		Storage:    storage,
		Detector:   detector,
		Targets:    targets,
		Log:        log,
	}
}

// Upload 上传课程资料并走完整条摄入流水线：
// 对象存储 → 文本提取 → 主题检测 → 学习目标懒建。
// 提取或检测失败不会丢文件，文档标记 failed 供人工排查
func (s *DocumentService) Upload(ctx context.Context, userID, courseID uint, fileHeader *multipart.FileHeader) (*model.Document, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.OwnerID != userID {
		return nil, util.ErrPermissionDenied
	}
	if fileHeader.Size > maxDocumentSize {
		return nil, fmt.Errorf("文件超过大小上限 %dMB", maxDocumentSize>>20)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !extensionAllowed(ext) {
		return nil, util.ErrUnsupportedContent
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	mimeType := mimeForExtension(ext)
	objectKey := fmt.Sprintf("courses/%d/%s%s", courseID, model.GenerateUUID(), ext)
	if _, err := s.Storage.Upload(ctx, objectKey, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return nil, fmt.Errorf("上传到存储后端: %w", err)
	}

	doc := &model.Document{
		CourseID:   courseID,
		UploaderID: userID,
		Name:       fileHeader.Filename,
		ObjectKey:  objectKey,
		MimeType:   mimeType,
		Size:       fileHeader.Size,
		Status:     model.DocumentStatusUploaded,
	}
	if err := s.DocRepo.Create(doc); err != nil {
		return nil, err
	}

	s.ingest(ctx, doc, data)
	return doc, nil
}

// ingest 提取文本并检测主题；各阶段的失败都落到文档状态上
func (s *DocumentService) ingest(ctx context.Context, doc *model.Document, data []byte) {
	text, err := ExtractText(data, doc.MimeType)
	if err != nil {
		s.Log.Warn("文本提取失败", zap.String("documentId", doc.ID), zap.Error(err))
		s.markFailed(doc, err)
		return
	}
	doc.CharCount = len([]rune(text))
	doc.Status = model.DocumentStatusExtracted
	if err := s.DocRepo.Update(doc); err != nil {
		s.Log.Error("更新文档状态失败", zap.String("documentId", doc.ID), zap.Error(err))
	}

	topics, err := s.Detector.Detect(ctx, text)
	if err != nil {
		s.Log.Warn("主题检测失败", zap.String("documentId", doc.ID), zap.Error(err))
		s.markFailed(doc, err)
		return
	}
	if len(topics) == 0 {
		// 合法终态：引导用户手动选题
		doc.Status = model.DocumentStatusNoTopics
		if err := s.DocRepo.Update(doc); err != nil {
			s.Log.Error("更新文档状态失败", zap.String("documentId", doc.ID), zap.Error(err))
		}
		return
	}

	if _, err := s.Targets.EnsureTargets(doc.CourseID, doc.UploaderID, topics); err != nil {
		s.Log.Warn("学习目标建档失败", zap.String("documentId", doc.ID), zap.Error(err))
		s.markFailed(doc, err)
		return
	}

	doc.TopicCount = len(topics)
	doc.Status = model.DocumentStatusIngested
	if err := s.DocRepo.Update(doc); err != nil {
		s.Log.Error("更新文档状态失败", zap.String("documentId", doc.ID), zap.Error(err))
	}
}

func (s *DocumentService) markFailed(doc *model.Document, cause error) {
	if err := s.DocRepo.UpdateStatus(doc.ID, model.DocumentStatusFailed, cause.Error()); err != nil {
		s.Log.Error("更新文档状态失败", zap.String("documentId", doc.ID), zap.Error(err))
	}
	doc.Status = model.DocumentStatusFailed
	doc.Error = cause.Error()
}

// Reingest 对失败或无主题的文档重跑摄入流水线
func (s *DocumentService) Reingest(ctx context.Context, userID uint, documentID string) (*model.Document, error) {
	doc, err := s.getOwned(userID, documentID)
	if err != nil {
		return nil, err
	}

	reader, err := s.Storage.Download(ctx, doc.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("从存储后端读取: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	s.ingest(ctx, doc, data)
	return doc, nil
}

func (s *DocumentService) List(userID, courseID uint, page, limit int) ([]model.Document, int64, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, 0, util.ErrCourseNotFound
	}
	if course.OwnerID != userID {
		return nil, 0, util.ErrPermissionDenied
	}
	return s.DocRepo.ListByCourse(courseID, page, limit)
}

func (s *DocumentService) Get(userID uint, documentID string) (*model.Document, error) {
	return s.getOwned(userID, documentID)
}

func (s *DocumentService) Delete(ctx context.Context, userID uint, documentID string) error {
	doc, err := s.getOwned(userID, documentID)
	if err != nil {
		return err
	}
	if err := s.Storage.Delete(ctx, doc.ObjectKey); err != nil {
		// 存储侧删除失败不阻塞库内删除，留日志排查孤儿对象
		s.Log.Warn("删除存储对象失败", zap.String("objectKey", doc.ObjectKey), zap.Error(err))
	}
	return s.DocRepo.Delete(doc.ID)
}

func (s *DocumentService) getOwned(userID uint, documentID string) (*model.Document, error) {
	doc, err := s.DocRepo.FindByID(documentID)
	if err != nil {
		return nil, util.ErrDocumentNotFound
	}
	course, err := s.CourseRepo.FindByID(doc.CourseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.OwnerID != userID {
		return nil, util.ErrPermissionDenied
	}
	return doc, nil
}

func extensionAllowed(ext string) bool {
	for _, allowed := range util.AllowedDocumentExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func mimeForExtension(ext string) string {
	switch ext {
	case ".md", ".markdown":
		return util.MimeTextMarkdown
	case ".csv":
		return util.MimeTextCSV
	case ".html", ".htm":
		return util.MimeTextHTML
	case ".txt":
		return util.MimeTextPlain
	default:
		return util.MimeOctetStream
	}
}

var (
	htmlTagPattern    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[ \t]+`)
)

// ExtractText 从字节流提取纯文本。只支持文本类格式，其余返回
// 内容类型错误；HTML 会剥离标签与脚本
func ExtractText(data []byte, mimeType string) (string, error) {
	switch mimeType {
	case util.MimeTextPlain, util.MimeTextMarkdown, util.MimeTextCSV:
		if !utf8.Valid(data) {
			return "", util.ErrUnsupportedContent
		}
		return string(data), nil
	case util.MimeTextHTML:
		if !utf8.Valid(data) {
			return "", util.ErrUnsupportedContent
		}
		text := htmlTagPattern.ReplaceAllString(string(data), " ")
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " ")), nil
	default:
		return "", util.ErrUnsupportedContent
	}
}
