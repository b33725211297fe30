package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	if err := s.SeedSystemPaths(); err != nil {
		return fmt.Errorf("failed to seed system progression paths: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

type seedMilestone struct {
	Title       string
	Description string
}

type seedSkill struct {
	Name       string
	Category   model.SkillCategory
	Milestones []seedMilestone
}

type seedLevel struct {
	Name   string
	Skills []seedSkill
}

type seedPath struct {
	Name        string
	Description string
	Category    model.PlayerCategory
	Levels      []seedLevel
}

// systemPaths is the built-in curriculum, shared read-only across all
// coaches. Loosely follows the ITF red/orange/green ball stages.
var systemPaths = []seedPath{
	{
		Name:        "Red Ball Foundations",
		Description: "First steps on a 11m court with red balls: coordination, racquet familiarity and simple rallies.",
		Category:    model.CategoryJuniorRed,
		Levels: []seedLevel{
			{
				Name: "Stage 1: Ball and Racquet Basics",
				Skills: []seedSkill{
					{
						Name:     "Ready Position and Grip",
						Category: model.SkillCategoryTechnique,
						Milestones: []seedMilestone{
							{Title: "Holds continental grip without prompting", Description: "Checked across three consecutive sessions."},
							{Title: "Returns to ready position between feeds"},
						},
					},
					{
						Name:     "Balance and Movement",
						Category: model.SkillCategoryFitness,
						Milestones: []seedMilestone{
							{Title: "Side-shuffles the width of the court and back in under 20 seconds"},
						},
					},
				},
			},
			{
				Name: "Stage 2: First Rallies",
				Skills: []seedSkill{
					{
						Name:     "Forehand Self-Rally",
						Category: model.SkillCategoryTechnique,
						Milestones: []seedMilestone{
							{Title: "10 consecutive self-bounce forehands over the net"},
						},
					},
					{
						Name:     "Cooperative Rally",
						Category: model.SkillCategoryTactics,
						Milestones: []seedMilestone{
							{Title: "6-shot cooperative rally with coach feeding"},
						},
					},
				},
			},
		},
	},
	{
		Name:        "Orange Ball Development",
		Description: "Three-quarter court play with orange balls: rally consistency, serve introduction and basic point play.",
		Category:    model.CategoryJuniorOrange,
		Levels: []seedLevel{
			{
				Name: "Stage 1: Consistent Exchanges",
				Skills: []seedSkill{
					{
						Name:     "Groundstroke Depth",
						Category: model.SkillCategoryTechnique,
						Milestones: []seedMilestone{
							{Title: "8 of 10 forehands past the service line"},
							{Title: "8 of 10 backhands past the service line"},
						},
					},
					{
						Name:     "Underarm Serve",
						Category: model.SkillCategoryTechnique,
						Milestones: []seedMilestone{
							{Title: "7 of 10 underarm serves into the correct box"},
						},
					},
				},
			},
			{
				Name: "Stage 2: Point Play",
				Skills: []seedSkill{
					{
						Name:     "Serve and Return Points",
						Category: model.SkillCategoryTactics,
						Milestones: []seedMilestone{
							{Title: "Plays a tiebreak to 7 using full scoring"},
						},
					},
					{
						Name:     "Staying in the Point",
						Category: model.SkillCategoryMental,
						Milestones: []seedMilestone{
							{Title: "Recovers to the middle after every shot during a 10-ball drill"},
						},
					},
				},
			},
		},
	},
	{
		Name:        "Adult Beginner Pathway",
		Description: "From first racquet contact to confident doubles play for adult starters.",
		Category:    model.CategoryAdult,
		Levels: []seedLevel{
			{
				Name: "Level 1: Fundamentals",
				Skills: []seedSkill{
					{
						Name:     "Forehand and Backhand Foundation",
						Category: model.SkillCategoryTechnique,
						Milestones: []seedMilestone{
							{Title: "20-ball cooperative rally from the baseline"},
						},
					},
					{
						Name:     "Serve Foundation",
						Category: model.SkillCategoryTechnique,
						Milestones: []seedMilestone{
							{Title: "5 of 10 first serves in from the baseline"},
						},
					},
				},
			},
			{
				Name: "Level 2: Match Ready",
				Skills: []seedSkill{
					{
						Name:     "Doubles Positioning",
						Category: model.SkillCategoryTactics,
						Milestones: []seedMilestone{
							{Title: "Completes a supervised doubles set with correct rotation"},
						},
					},
					{
						Name:     "Net Play",
						Category: model.SkillCategoryTechnique,
						Milestones: []seedMilestone{
							{Title: "6 of 10 volleys inside the service boxes"},
						},
					},
				},
			},
		},
	},
}

// SeedSystemPaths creates the built-in progression paths. Idempotent:
// skips any system path whose name already exists.
func (s *Seeder) SeedSystemPaths() error {
	for _, sp := range systemPaths {
		var count int64
		if err := s.db.Model(&model.ProgressionPath{}).
			Where("is_system = ? AND name = ?", true, sp.Name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			log.Printf("System path %q already exists, skipping...", sp.Name)
			continue
		}

		err := s.db.Transaction(func(tx *gorm.DB) error {
			path := model.ProgressionPath{
				Name:           sp.Name,
				Description:    sp.Description,
				PlayerCategory: sp.Category,
				IsSystem:       true,
			}
			if err := tx.Create(&path).Error; err != nil {
				return err
			}

			for li, sl := range sp.Levels {
				level := model.Level{
					PathID:    path.ID,
					Name:      sl.Name,
					SortOrder: li + 1,
				}
				if err := tx.Create(&level).Error; err != nil {
					return err
				}

				for si, sk := range sl.Skills {
					skill := model.Skill{
						LevelID:   level.ID,
						Name:      sk.Name,
						Category:  sk.Category,
						SortOrder: si + 1,
					}
					if err := tx.Create(&skill).Error; err != nil {
						return err
					}

					for mi, sm := range sk.Milestones {
						milestone := model.Milestone{
							SkillID:     skill.ID,
							Title:       sm.Title,
							Description: sm.Description,
							SortOrder:   mi + 1,
						}
						if err := tx.Create(&milestone).Error; err != nil {
							return err
						}
					}
				}
			}

			return nil
		})
		if err != nil {
			return err
		}

		log.Printf("Seeded system path %q", sp.Name)
	}

	return nil
}
