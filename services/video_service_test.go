package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/services/storage"
)

// fakeStore is an in-memory ObjectStore for exercising the upload
// protocol without an S3 endpoint.
type fakeStore struct {
	objects map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]bool)}
}

func (f *fakeStore) Bucket() string { return "test-bucket" }

func (f *fakeStore) PresignUpload(key, contentType string, expiration time.Duration) (string, error) {
	return "https://storage.test/upload/" + key, nil
}

func (f *fakeStore) PresignDownload(key string, expiration time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

func (f *fakeStore) DeleteObject(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	return f.objects[key], nil
}

func TestCompleteDebitsQuota(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	video, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   500 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if video.Status != model.VideoStatusUploaded {
		t.Errorf("Expected status uploaded, got %s", video.Status)
	}

	var fresh model.Coach
	if err := db.First(&fresh, coach.ID).Error; err != nil {
		t.Fatalf("Failed to reload coach: %v", err)
	}
	if fresh.StorageUsed != 500*1024*1024 {
		t.Errorf("Expected storage_used %d, got %d", 500*1024*1024, fresh.StorageUsed)
	}
}

func TestPresignAdvisoryQuotaCheck(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	// A declared size past the limit is rejected before any URL is issued
	_, err := svc.Presign(context.Background(), coach.ID, student.ID, "serve.mp4", coach.StorageLimit+1)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
}

func TestPresignRejectsOversizeDeclaration(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	// A declared size past any plan's limit is refused before the
	// quota arithmetic runs
	_, err := svc.Presign(context.Background(), coach.ID, student.ID, "serve.mp4", math.MaxInt64)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Expected ErrFileTooLarge, got %v", err)
	}

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	_, err = svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   math.MaxInt64,
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Expected ErrFileTooLarge on complete, got %v", err)
	}
}

func TestCompleteRequiresStoredObject(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	store := newFakeStore()
	svc := NewVideoService(db, store)

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	req := CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   1024,
	}

	// Nothing was uploaded for the key yet
	_, err := svc.Complete(context.Background(), coach.ID, req)
	if !errors.Is(err, ErrObjectMissing) {
		t.Fatalf("Expected ErrObjectMissing, got %v", err)
	}

	var count int64
	db.Model(&model.Video{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no video row, found %d", count)
	}

	store.objects[key] = true
	video, err := svc.Complete(context.Background(), coach.ID, req)
	if err != nil {
		t.Fatalf("Complete failed with stored object: %v", err)
	}
	if video.StorageBucket != "test-bucket" {
		t.Errorf("Expected bucket recorded, got %q", video.StorageBucket)
	}
}

func TestCompleteRejectsOverQuota(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	// Free tier: 1 GiB. Fill most of it, then push past the limit.
	key1 := storage.VideoKey(coach.ID, student.ID, "first.mp4")
	if _, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key1,
		StudentID:  student.ID,
		FileSize:   900 * 1024 * 1024,
	}); err != nil {
		t.Fatalf("First complete failed: %v", err)
	}

	key2 := storage.VideoKey(coach.ID, student.ID, "second.mp4")
	_, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key2,
		StudentID:  student.ID,
		FileSize:   200 * 1024 * 1024,
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	// The failed completion must not leave a video row or a partial debit
	var count int64
	db.Model(&model.Video{}).Where("storage_key = ?", key2).Count(&count)
	if count != 0 {
		t.Errorf("Expected no video row for rejected completion, found %d", count)
	}

	var fresh model.Coach
	db.First(&fresh, coach.ID)
	if fresh.StorageUsed != 900*1024*1024 {
		t.Errorf("Expected storage_used unchanged at %d, got %d", 900*1024*1024, fresh.StorageUsed)
	}
}

func TestCompleteRejectsForeignKey(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	other := createTestCoach(t, db, "other@example.com", "other")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	// A key presigned for the other coach must be refused
	key := storage.VideoKey(other.ID, student.ID, "serve.mp4")
	_, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   1024,
	})
	if !errors.Is(err, ErrKeyNotOwned) {
		t.Fatalf("Expected ErrKeyNotOwned, got %v", err)
	}
}

func TestCompleteRejectsForeignStudent(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	other := createTestCoach(t, db, "other@example.com", "other")
	foreignStudent := createTestStudent(t, db, other.ID, "foreign@example.com")
	svc := NewVideoService(db, nil)

	key := storage.VideoKey(coach.ID, foreignStudent.ID, "serve.mp4")
	_, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  foreignStudent.ID,
		FileSize:   1024,
	})
	if !errors.Is(err, ErrStudentNotOwned) {
		t.Fatalf("Expected ErrStudentNotOwned, got %v", err)
	}
}

func TestCompleteIsIdempotentPerKey(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	req := CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   1024,
	}

	if _, err := svc.Complete(context.Background(), coach.ID, req); err != nil {
		t.Fatalf("First complete failed: %v", err)
	}

	_, err := svc.Complete(context.Background(), coach.ID, req)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("Expected ErrAlreadyCompleted, got %v", err)
	}

	// No double debit
	var fresh model.Coach
	db.First(&fresh, coach.ID)
	if fresh.StorageUsed != 1024 {
		t.Errorf("Expected storage_used 1024, got %d", fresh.StorageUsed)
	}
}

func TestDeleteVideoRefundsQuota(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	video, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   4096,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if err := svc.DeleteVideo(context.Background(), coach.ID, video.ID); err != nil {
		t.Fatalf("DeleteVideo failed: %v", err)
	}

	var fresh model.Coach
	db.First(&fresh, coach.ID)
	if fresh.StorageUsed != 0 {
		t.Errorf("Expected storage_used 0 after delete, got %d", fresh.StorageUsed)
	}
}

func TestDeleteVideoRefundClampsAtZero(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	video, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   4096,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// Simulate counter drift below the video's size
	db.Model(&model.Coach{}).Where("id = ?", coach.ID).Update("storage_used", 100)

	if err := svc.DeleteVideo(context.Background(), coach.ID, video.ID); err != nil {
		t.Fatalf("DeleteVideo failed: %v", err)
	}

	var fresh model.Coach
	db.First(&fresh, coach.ID)
	if fresh.StorageUsed != 0 {
		t.Errorf("Expected storage_used clamped to 0, got %d", fresh.StorageUsed)
	}
}

func TestCreateAnalysisDebitsCredit(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	video, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   1024,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	analysis, err := svc.CreateAnalysis(context.Background(), coach.ID, video.ID,
		[]byte(`{"first_serve_pct": 58}`), []byte(`{"summary": "solid toss"}`))
	if err != nil {
		t.Fatalf("CreateAnalysis failed: %v", err)
	}
	if analysis.Status != model.AnalysisStatusCompleted {
		t.Errorf("Expected analysis status completed, got %s", analysis.Status)
	}

	var fresh model.Coach
	db.First(&fresh, coach.ID)
	if fresh.AnalysisCount != 1 {
		t.Errorf("Expected analysis_count 1, got %d", fresh.AnalysisCount)
	}

	var freshVideo model.Video
	db.First(&freshVideo, video.ID)
	if freshVideo.Status != model.VideoStatusAnalyzed {
		t.Errorf("Expected video status analyzed, got %s", freshVideo.Status)
	}

	// Second analysis for the same video is refused
	if _, err := svc.CreateAnalysis(context.Background(), coach.ID, video.ID, nil, nil); !errors.Is(err, ErrAnalysisExists) {
		t.Fatalf("Expected ErrAnalysisExists, got %v", err)
	}
}

func TestCreateAnalysisRejectsOverQuota(t *testing.T) {
	db := openTestDB(t)
	coach := createTestCoach(t, db, "coach@example.com", "coach")
	student := createTestStudent(t, db, coach.ID, "student@example.com")
	svc := NewVideoService(db, nil)

	key := storage.VideoKey(coach.ID, student.ID, "serve.mp4")
	video, err := svc.Complete(context.Background(), coach.ID, CompleteRequest{
		StorageKey: key,
		StudentID:  student.ID,
		FileSize:   1024,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	db.Model(&model.Coach{}).Where("id = ?", coach.ID).
		Update("analysis_count", coach.AnalysisLimit)

	_, err = svc.CreateAnalysis(context.Background(), coach.ID, video.ID, nil, nil)
	if !errors.Is(err, ErrAnalysisQuotaExceeded) {
		t.Fatalf("Expected ErrAnalysisQuotaExceeded, got %v", err)
	}
}
