package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/utils/cache"
)

var (
	// ErrSystemPathImmutable means a coach tried to mutate a seeded system path
	ErrSystemPathImmutable = errors.New("system paths cannot be modified")
	// ErrPathHasStudents means a path with assigned students cannot be deleted
	ErrPathHasStudents = errors.New("path has assigned students")
	// ErrPathNotVisible means the path is neither system nor owned by the coach
	ErrPathNotVisible = gorm.ErrRecordNotFound
)

const treeCacheTTL = 10 * time.Minute

// ProgressionService handles the path -> level -> skill -> milestone
// hierarchy. Full-tree reads are cached in Redis and invalidated on any
// write under the path.
type ProgressionService struct {
	db    *gorm.DB
	cache *cache.RedisCache // nil disables caching
}

// NewProgressionService creates a new progression service
func NewProgressionService(db *gorm.DB, redisCache *cache.RedisCache) *ProgressionService {
	return &ProgressionService{
		db:    db,
		cache: redisCache,
	}
}

func treeCacheKey(pathID uint) string {
	return fmt.Sprintf("progression:tree:%d", pathID)
}

// VisiblePath loads a path if it is a system path or owned by the
// coach. Foreign paths surface as not found to avoid existence leakage.
func (s *ProgressionService) VisiblePath(coachID, pathID uint) (*model.ProgressionPath, error) {
	var path model.ProgressionPath
	if err := s.db.First(&path, pathID).Error; err != nil {
		return nil, err
	}

	if !path.IsSystem && (path.CoachID == nil || *path.CoachID != coachID) {
		return nil, ErrPathNotVisible
	}
	return &path, nil
}

// ListPaths returns all paths visible to a coach: system paths plus the
// coach's own, with student assignment counts.
func (s *ProgressionService) ListPaths(coachID uint) ([]model.ProgressionPath, map[uint]int64, error) {
	var paths []model.ProgressionPath
	if err := s.db.
		Where("is_system = ? OR coach_id = ?", true, coachID).
		Order("is_system DESC, name ASC").
		Find(&paths).Error; err != nil {
		return nil, nil, err
	}

	counts := make(map[uint]int64, len(paths))
	for i := range paths {
		var n int64
		if err := s.db.Model(&model.Student{}).
			Where("current_path_id = ?", paths[i].ID).
			Count(&n).Error; err != nil {
			return nil, nil, err
		}
		counts[paths[i].ID] = n
	}

	return paths, counts, nil
}

// GetTree returns the full nested hierarchy for a path, every level
// ordered ascending by its sort key.
func (s *ProgressionService) GetTree(ctx context.Context, coachID, pathID uint) (*model.ProgressionPath, error) {
	if _, err := s.VisiblePath(coachID, pathID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached model.ProgressionPath
		if err := s.cache.GetJSON(ctx, treeCacheKey(pathID), &cached); err == nil {
			return &cached, nil
		}
	}

	var path model.ProgressionPath
	err := s.db.
		Preload("Levels", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Levels.Skills", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Levels.Skills.Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		First(&path, pathID).Error
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetJSON(ctx, treeCacheKey(pathID), path, treeCacheTTL)
	}

	return &path, nil
}

// CreatePath creates a coach-owned path. The owner is always the
// session coach, never client input.
func (s *ProgressionService) CreatePath(ctx context.Context, coachID uint, name, description string, category model.PlayerCategory) (*model.ProgressionPath, error) {
	path := model.ProgressionPath{
		CoachID:        &coachID,
		Name:           name,
		Description:    description,
		PlayerCategory: category,
		IsSystem:       false,
	}

	if err := s.db.Create(&path).Error; err != nil {
		return nil, err
	}
	return &path, nil
}

// PathUpdate carries the partial patch for a path
type PathUpdate struct {
	Name           *string
	Description    *string
	PlayerCategory *model.PlayerCategory
}

// UpdatePath partially updates a non-system path owned by the coach
func (s *ProgressionService) UpdatePath(ctx context.Context, coachID, pathID uint, upd PathUpdate) (*model.ProgressionPath, error) {
	path, err := s.VisiblePath(coachID, pathID)
	if err != nil {
		return nil, err
	}
	if path.IsSystem {
		return nil, ErrSystemPathImmutable
	}

	if upd.Name != nil {
		path.Name = *upd.Name
	}
	if upd.Description != nil {
		path.Description = *upd.Description
	}
	if upd.PlayerCategory != nil {
		path.PlayerCategory = *upd.PlayerCategory
	}

	if err := s.db.Save(path).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, pathID)
	return path, nil
}

// DeletePath deletes a non-system path with no assigned students
func (s *ProgressionService) DeletePath(ctx context.Context, coachID, pathID uint) error {
	path, err := s.VisiblePath(coachID, pathID)
	if err != nil {
		return err
	}
	if path.IsSystem {
		return ErrSystemPathImmutable
	}

	var students int64
	if err := s.db.Model(&model.Student{}).
		Where("current_path_id = ?", pathID).
		Count(&students).Error; err != nil {
		return err
	}
	if students > 0 {
		return ErrPathHasStudents
	}

	if err := s.db.Delete(path).Error; err != nil {
		return err
	}

	s.invalidate(ctx, pathID)
	return nil
}

// editablePath loads a path the coach may add children to
func (s *ProgressionService) editablePath(coachID, pathID uint) (*model.ProgressionPath, error) {
	path, err := s.VisiblePath(coachID, pathID)
	if err != nil {
		return nil, err
	}
	if path.IsSystem {
		return nil, ErrSystemPathImmutable
	}
	return path, nil
}

// CreateLevel appends a level to a coach-owned path
func (s *ProgressionService) CreateLevel(ctx context.Context, coachID, pathID uint, name, description string, order int) (*model.Level, error) {
	if _, err := s.editablePath(coachID, pathID); err != nil {
		return nil, err
	}

	level := model.Level{
		PathID:      pathID,
		Name:        name,
		Description: description,
		SortOrder:   order,
	}
	if err := s.db.Create(&level).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, pathID)
	return &level, nil
}

// LevelForCoach resolves a level and authorizes the coach against its path
func (s *ProgressionService) LevelForCoach(coachID, levelID uint) (*model.Level, *model.ProgressionPath, error) {
	var level model.Level
	if err := s.db.First(&level, levelID).Error; err != nil {
		return nil, nil, err
	}
	path, err := s.VisiblePath(coachID, level.PathID)
	if err != nil {
		return nil, nil, err
	}
	return &level, path, nil
}

// CreateSkill appends a skill to a level in a coach-owned path
func (s *ProgressionService) CreateSkill(ctx context.Context, coachID, levelID uint, name, description string, category model.SkillCategory, order int) (*model.Skill, error) {
	level, path, err := s.LevelForCoach(coachID, levelID)
	if err != nil {
		return nil, err
	}
	if path.IsSystem {
		return nil, ErrSystemPathImmutable
	}

	skill := model.Skill{
		LevelID:     level.ID,
		Name:        name,
		Description: description,
		Category:    category,
		SortOrder:   order,
	}
	if err := s.db.Create(&skill).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, path.ID)
	return &skill, nil
}

// SkillForCoach resolves a skill and authorizes the coach against its path
func (s *ProgressionService) SkillForCoach(coachID, skillID uint) (*model.Skill, *model.ProgressionPath, error) {
	var skill model.Skill
	if err := s.db.First(&skill, skillID).Error; err != nil {
		return nil, nil, err
	}
	_, path, err := s.LevelForCoach(coachID, skill.LevelID)
	if err != nil {
		return nil, nil, err
	}
	return &skill, path, nil
}

// CreateMilestone appends a milestone to a skill in a coach-owned path
func (s *ProgressionService) CreateMilestone(ctx context.Context, coachID, skillID uint, title, description string, order int, targetMetrics []byte) (*model.Milestone, error) {
	skill, path, err := s.SkillForCoach(coachID, skillID)
	if err != nil {
		return nil, err
	}
	if path.IsSystem {
		return nil, ErrSystemPathImmutable
	}

	milestone := model.Milestone{
		SkillID:       skill.ID,
		Title:         title,
		Description:   description,
		SortOrder:     order,
		TargetMetrics: targetMetrics,
	}
	if err := s.db.Create(&milestone).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, path.ID)
	return &milestone, nil
}

// NodeUpdate carries the shared partial patch for levels, skills and milestones
type NodeUpdate struct {
	Name          *string
	Description   *string
	Order         *int
	Category      *model.SkillCategory // skills only
	TargetMetrics []byte               // milestones only
}

// UpdateLevel partially updates a level in a coach-owned path
func (s *ProgressionService) UpdateLevel(ctx context.Context, coachID, levelID uint, upd NodeUpdate) (*model.Level, error) {
	level, path, err := s.LevelForCoach(coachID, levelID)
	if err != nil {
		return nil, err
	}
	if path.IsSystem {
		return nil, ErrSystemPathImmutable
	}

	if upd.Name != nil {
		level.Name = *upd.Name
	}
	if upd.Description != nil {
		level.Description = *upd.Description
	}
	if upd.Order != nil {
		level.SortOrder = *upd.Order
	}

	if err := s.db.Save(level).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, path.ID)
	return level, nil
}

// DeleteLevel removes a level (and its subtree) from a coach-owned path
func (s *ProgressionService) DeleteLevel(ctx context.Context, coachID, levelID uint) error {
	level, path, err := s.LevelForCoach(coachID, levelID)
	if err != nil {
		return err
	}
	if path.IsSystem {
		return ErrSystemPathImmutable
	}

	if err := s.db.Delete(level).Error; err != nil {
		return err
	}

	s.invalidate(ctx, path.ID)
	return nil
}

// UpdateSkill partially updates a skill in a coach-owned path
func (s *ProgressionService) UpdateSkill(ctx context.Context, coachID, skillID uint, upd NodeUpdate) (*model.Skill, error) {
	skill, path, err := s.SkillForCoach(coachID, skillID)
	if err != nil {
		return nil, err
	}
	if path.IsSystem {
		return nil, ErrSystemPathImmutable
	}

	if upd.Name != nil {
		skill.Name = *upd.Name
	}
	if upd.Description != nil {
		skill.Description = *upd.Description
	}
	if upd.Order != nil {
		skill.SortOrder = *upd.Order
	}
	if upd.Category != nil {
		skill.Category = *upd.Category
	}

	if err := s.db.Save(skill).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, path.ID)
	return skill, nil
}

// DeleteSkill removes a skill (and its milestones) from a coach-owned path
func (s *ProgressionService) DeleteSkill(ctx context.Context, coachID, skillID uint) error {
	skill, path, err := s.SkillForCoach(coachID, skillID)
	if err != nil {
		return err
	}
	if path.IsSystem {
		return ErrSystemPathImmutable
	}

	if err := s.db.Delete(skill).Error; err != nil {
		return err
	}

	s.invalidate(ctx, path.ID)
	return nil
}

// MilestoneForCoach resolves a milestone and authorizes the coach against its path
func (s *ProgressionService) MilestoneForCoach(coachID, milestoneID uint) (*model.Milestone, *model.ProgressionPath, error) {
	var milestone model.Milestone
	if err := s.db.First(&milestone, milestoneID).Error; err != nil {
		return nil, nil, err
	}
	_, path, err := s.SkillForCoach(coachID, milestone.SkillID)
	if err != nil {
		return nil, nil, err
	}
	return &milestone, path, nil
}

// UpdateMilestone partially updates a milestone in a coach-owned path
func (s *ProgressionService) UpdateMilestone(ctx context.Context, coachID, milestoneID uint, upd NodeUpdate) (*model.Milestone, error) {
	milestone, path, err := s.MilestoneForCoach(coachID, milestoneID)
	if err != nil {
		return nil, err
	}
	if path.IsSystem {
		return nil, ErrSystemPathImmutable
	}

	if upd.Name != nil {
		milestone.Title = *upd.Name
	}
	if upd.Description != nil {
		milestone.Description = *upd.Description
	}
	if upd.Order != nil {
		milestone.SortOrder = *upd.Order
	}
	if upd.TargetMetrics != nil {
		milestone.TargetMetrics = upd.TargetMetrics
	}

	if err := s.db.Save(milestone).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, path.ID)
	return milestone, nil
}

// DeleteMilestone removes a milestone from a coach-owned path
func (s *ProgressionService) DeleteMilestone(ctx context.Context, coachID, milestoneID uint) error {
	milestone, path, err := s.MilestoneForCoach(coachID, milestoneID)
	if err != nil {
		return err
	}
	if path.IsSystem {
		return ErrSystemPathImmutable
	}

	if err := s.db.Delete(milestone).Error; err != nil {
		return err
	}

	s.invalidate(ctx, path.ID)
	return nil
}

// AssignStudent places a student on a path (and optionally a level of
// that path). Both the student and a non-foreign path must resolve.
func (s *ProgressionService) AssignStudent(ctx context.Context, coachID, studentID, pathID uint, levelID *uint) (*model.Student, error) {
	var student model.Student
	if err := s.db.Where("id = ? AND coach_id = ?", studentID, coachID).First(&student).Error; err != nil {
		return nil, err
	}

	if _, err := s.VisiblePath(coachID, pathID); err != nil {
		return nil, err
	}

	if levelID != nil {
		var level model.Level
		if err := s.db.Where("id = ? AND path_id = ?", *levelID, pathID).First(&level).Error; err != nil {
			return nil, err
		}
	}

	student.CurrentPathID = &pathID
	student.CurrentLevelID = levelID
	if err := s.db.Save(&student).Error; err != nil {
		return nil, err
	}

	return &student, nil
}

func (s *ProgressionService) invalidate(ctx context.Context, pathID uint) {
	if s.cache != nil {
		s.cache.Delete(ctx, treeCacheKey(pathID))
	}
}
