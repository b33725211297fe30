package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/services/storage"
)

var (
	// ErrQuotaExceeded means the coach's storage (or analysis) quota
	// cannot absorb the requested size.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrAnalysisQuotaExceeded means the coach has used all analysis credits
	ErrAnalysisQuotaExceeded = errors.New("analysis quota exceeded")
	// ErrKeyNotOwned means the storage key was not issued to this coach
	ErrKeyNotOwned = errors.New("storage key was not issued to this coach")
	// ErrStudentNotOwned means the target student belongs to another coach
	ErrStudentNotOwned = errors.New("student does not belong to this coach")
	// ErrAlreadyCompleted means a video row already exists for the key
	ErrAlreadyCompleted = errors.New("upload already completed for this key")
	// ErrAnalysisExists means the video already has an analysis
	ErrAnalysisExists = errors.New("video already has an analysis")
	// ErrFileTooLarge means the declared size exceeds the largest plan's storage limit
	ErrFileTooLarge = errors.New("declared file size exceeds the maximum upload size")
	// ErrObjectMissing means completion was requested for a key with no stored object
	ErrObjectMissing = errors.New("no uploaded object found for this storage key")
)

const (
	presignExpiry = 15 * time.Minute

	// No plan's storage limit exceeds this, so a larger declared size
	// can never fit. Rejecting it up front also keeps the quota
	// arithmetic inside int64.
	maxUploadBytes = 100 * 1024 * 1024 * 1024
)

// ObjectStore is the slice of the storage client the upload protocol
// uses. nil means object storage is not configured.
type ObjectStore interface {
	Bucket() string
	PresignUpload(key, contentType string, expiration time.Duration) (string, error)
	PresignDownload(key string, expiration time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// VideoService owns the two-phase upload protocol and the storage-quota
// bookkeeping around video rows.
type VideoService struct {
	db    *gorm.DB
	store ObjectStore
}

// NewVideoService creates a new video service
func NewVideoService(db *gorm.DB, store ObjectStore) *VideoService {
	return &VideoService{
		db:    db,
		store: store,
	}
}

// PresignResult is returned from the presign phase
type PresignResult struct {
	UploadURL  string    `json:"upload_url"`
	StorageKey string    `json:"storage_key"`
	Bucket     string    `json:"bucket"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Presign runs phase one of the upload protocol: verify the target
// student, re-read the coach's usage and advisory-check the quota, then
// issue a presigned PUT URL for a key scoped to this coach. The check
// reserves nothing; Complete re-verifies against current usage.
func (s *VideoService) Presign(ctx context.Context, coachID, studentID uint, filename string, fileSize int64) (*PresignResult, error) {
	if fileSize > maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	if err := s.verifyStudent(coachID, studentID); err != nil {
		return nil, err
	}

	// Re-read usage rather than trusting the session snapshot
	var coach model.Coach
	if err := s.db.First(&coach, coachID).Error; err != nil {
		return nil, err
	}
	if coach.StorageUsed+fileSize > coach.StorageLimit {
		return nil, ErrQuotaExceeded
	}

	key := storage.VideoKey(coachID, studentID, filename)

	if s.store == nil {
		return nil, errors.New("object storage is not configured")
	}
	url, err := s.store.PresignUpload(key, storage.VideoContentType(filename), presignExpiry)
	if err != nil {
		return nil, err
	}

	return &PresignResult{
		UploadURL:  url,
		StorageKey: key,
		Bucket:     s.store.Bucket(),
		ExpiresAt:  time.Now().Add(presignExpiry),
	}, nil
}

// CompleteRequest carries the metadata confirmed in phase three
type CompleteRequest struct {
	StorageKey string
	StudentID  uint
	FileSize   int64
	Title      string
	StrokeType *model.StrokeType
	Notes      string
}

// Complete runs phase three of the upload protocol. It verifies the
// storage key was issued to the calling coach, verifies the student,
// then creates the video row and debits the quota in one transaction.
// The debit is a guarded single-statement update, so two racing
// completions cannot push usage past the limit.
func (s *VideoService) Complete(ctx context.Context, coachID uint, req CompleteRequest) (*model.Video, error) {
	if req.FileSize > maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	keyCoachID, err := storage.CoachIDFromKey(req.StorageKey)
	if err != nil {
		return nil, err
	}
	if keyCoachID != coachID {
		return nil, ErrKeyNotOwned
	}

	if err := s.verifyStudent(coachID, req.StudentID); err != nil {
		return nil, err
	}

	var existing model.Video
	if err := s.db.Where("storage_key = ?", req.StorageKey).First(&existing).Error; err == nil {
		return nil, ErrAlreadyCompleted
	}

	// Confirm the browser actually put the object before recording it
	if s.store != nil {
		exists, err := s.store.ObjectExists(ctx, req.StorageKey)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrObjectMissing
		}
	}

	bucket := ""
	if s.store != nil {
		bucket = s.store.Bucket()
	}

	video := model.Video{
		CoachID:       coachID,
		StudentID:     req.StudentID,
		Title:         req.Title,
		StorageKey:    req.StorageKey,
		StorageBucket: bucket,
		FileSize:      req.FileSize,
		ContentType:   storage.VideoContentType(req.StorageKey),
		Status:        model.VideoStatusUploaded,
		StrokeType:    req.StrokeType,
		Notes:         req.Notes,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Coach{}).
			Where("id = ? AND storage_used + ? <= storage_limit", coachID, req.FileSize).
			Update("storage_used", gorm.Expr("storage_used + ?", req.FileSize))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrQuotaExceeded
		}

		return tx.Create(&video).Error
	})
	if err != nil {
		return nil, err
	}

	return &video, nil
}

// DeleteVideo removes a video row and refunds its declared size inside
// one transaction, then removes the object from storage best-effort.
func (s *VideoService) DeleteVideo(ctx context.Context, coachID, videoID uint) error {
	var video model.Video
	if err := s.db.Where("id = ? AND coach_id = ?", videoID, coachID).First(&video).Error; err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&video).Error; err != nil {
			return err
		}

		return tx.Model(&model.Coach{}).
			Where("id = ?", coachID).
			Update("storage_used", gorm.Expr(
				"CASE WHEN storage_used >= ? THEN storage_used - ? ELSE 0 END",
				video.FileSize, video.FileSize,
			)).Error
	})
	if err != nil {
		return err
	}

	if s.store != nil {
		if err := s.store.DeleteObject(ctx, video.StorageKey); err != nil {
			// Orphaned objects are reclaimed by the reconciliation job
			log.Printf("Failed to delete storage object %s: %v", video.StorageKey, err)
		}
	}

	return nil
}

// PlaybackURL issues a short-lived presigned GET URL for a video the
// coach owns.
func (s *VideoService) PlaybackURL(coachID, videoID uint) (string, error) {
	var video model.Video
	if err := s.db.Where("id = ? AND coach_id = ?", videoID, coachID).First(&video).Error; err != nil {
		return "", err
	}

	if s.store == nil {
		return "", errors.New("object storage is not configured")
	}
	return s.store.PresignDownload(video.StorageKey, time.Hour)
}

// CreateAnalysis records an analysis for a video and debits one
// analysis credit, guarded the same way as the storage quota.
func (s *VideoService) CreateAnalysis(ctx context.Context, coachID, videoID uint, metrics, insights []byte) (*model.VideoAnalysis, error) {
	var video model.Video
	if err := s.db.Where("id = ? AND coach_id = ?", videoID, coachID).First(&video).Error; err != nil {
		return nil, err
	}

	var existing model.VideoAnalysis
	if err := s.db.Where("video_id = ?", videoID).First(&existing).Error; err == nil {
		return nil, ErrAnalysisExists
	}

	analysis := model.VideoAnalysis{
		VideoID:  videoID,
		Status:   model.AnalysisStatusCompleted,
		Metrics:  metrics,
		Insights: insights,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Coach{}).
			Where("id = ? AND analysis_count < analysis_limit", coachID).
			Update("analysis_count", gorm.Expr("analysis_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAnalysisQuotaExceeded
		}

		if err := tx.Create(&analysis).Error; err != nil {
			return err
		}

		return tx.Model(&model.Video{}).
			Where("id = ?", videoID).
			Update("status", model.VideoStatusAnalyzed).Error
	})
	if err != nil {
		return nil, err
	}

	return &analysis, nil
}

func (s *VideoService) verifyStudent(coachID, studentID uint) error {
	var student model.Student
	if err := s.db.First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotOwned
		}
		return fmt.Errorf("failed to load student: %w", err)
	}
	if student.CoachID != coachID {
		return ErrStudentNotOwned
	}
	return nil
}
