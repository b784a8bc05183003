package service

import (
	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/repository"
	"quiz_mentor_backend/internal/util"

	"go.uber.org/zap"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
	Log        *zap.Logger
}

func NewCourseService(courseRepo *repository.CourseRepository, log *zap.Logger) *CourseService {
	return &CourseService{CourseRepo: courseRepo, Log: log}
}

type CourseInput struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

func (s *CourseService) Create(ownerID uint, input CourseInput) (*model.Course, error) {
	course := &model.Course{
		Title:       input.Title,
		Description: input.Description,
		Subject:     input.Subject,
		OwnerID:     ownerID,
	}
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Get(userID, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.OwnerID != userID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CourseService) List(ownerID uint, page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.ListByOwner(ownerID, page, limit)
}

func (s *CourseService) Update(userID, courseID uint, input CourseInput) (*model.Course, error) {
	course, err := s.Get(userID, courseID)
	if err != nil {
		return nil, err
	}
	course.Title = input.Title
	course.Description = input.Description
	course.Subject = input.Subject
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Archive(userID, courseID uint, archived bool) (*model.Course, error) {
	course, err := s.Get(userID, courseID)
	if err != nil {
		return nil, err
	}
	course.Archived = archived
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

// Delete 连同课程下的文档、测验与学习目标一并级联删除
func (s *CourseService) Delete(userID, courseID uint) error {
	if _, err := s.Get(userID, courseID); err != nil {
		return err
	}
	s.Log.Info("删除课程及其关联数据", zap.Uint("courseId", courseID))
	return s.CourseRepo.Delete(courseID)
}
