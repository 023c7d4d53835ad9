package infrastructure

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"hr-evaluator/domain"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&domain.Department{},
		&domain.Person{},
		&domain.EvaluatorSetup{},
		&domain.EvaluationTemplate{},
		&domain.Category{},
		&domain.Question{},
		&domain.Evaluation{},
		&domain.Answer{},
		&domain.EvaluationHistory{},
	}
}

func NewMySQLConnection(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("connected to MySQL and migrated schema")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedDemoData inserts a small organisation once: departments, people,
// evaluator setups and a template with graded questions.
func SeedDemoData(db *gorm.DB, log logrus.FieldLogger) error {
	var count int64
	if err := db.Model(&domain.Person{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count people: %w", err)
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		engineering := domain.Department{Name: "Engineering"}
		sales := domain.Department{Name: "Sales"}
		if err := tx.Create(&[]*domain.Department{&engineering, &sales}).Error; err != nil {
			return fmt.Errorf("failed to seed departments: %w", err)
		}

		people := []*domain.Person{
			{Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Active: true},
			{Name: "HR Officer", Email: "hr@example.com", Role: domain.RoleHR, Active: true},
			{Name: "Eva Evaluator", Email: "evaluator@example.com", Role: domain.RoleEvaluator, DepartmentID: &engineering.ID, Active: true},
			{Name: "Rex Reviewer", Email: "reviewer@example.com", Role: domain.RoleReviewer, DepartmentID: &engineering.ID, Active: true},
			{Name: "Mia Manager", Email: "manager@example.com", Role: domain.RoleManager, DepartmentID: &engineering.ID, Active: true},
			{Name: "Eli Employee", Email: "employee@example.com", Role: domain.RoleEmployee, DepartmentID: &engineering.ID, Active: true},
			{Name: "Sam Seller", Email: "seller@example.com", Role: domain.RoleEmployee, DepartmentID: &sales.ID, Active: true},
		}
		if err := tx.Create(&people).Error; err != nil {
			return fmt.Errorf("failed to seed people: %w", err)
		}
		evaluator, reviewer, manager := people[2], people[3], people[4]

		setup := domain.EvaluatorSetup{
			DepartmentID: engineering.ID,
			EvaluatorID:  evaluator.ID,
			ReviewerID:   reviewer.ID,
			ManagerID:    manager.ID,
			Active:       true,
			CreatedBy:    people[0].ID,
		}
		if err := tx.Create(&setup).Error; err != nil {
			return fmt.Errorf("failed to seed evaluator setup: %w", err)
		}

		tpl := domain.EvaluationTemplate{Name: "Standard performance review", Active: true}
		if err := tx.Create(&tpl).Error; err != nil {
			return fmt.Errorf("failed to seed template: %w", err)
		}
		categories := []*domain.Category{
			{TemplateID: tpl.ID, Name: "Delivery", SortOrder: 1},
			{TemplateID: tpl.ID, Name: "Collaboration", SortOrder: 2},
		}
		if err := tx.Create(&categories).Error; err != nil {
			return fmt.Errorf("failed to seed categories: %w", err)
		}
		questions := []domain.Question{
			fivePointQuestion(categories[0].ID, 1, "Delivers agreed work on time", 2),
			fivePointQuestion(categories[0].ID, 2, "Quality of delivered work", 2),
			fivePointQuestion(categories[1].ID, 1, "Communicates clearly with the team", 1),
			fivePointQuestion(categories[1].ID, 2, "Helps colleagues succeed", 1),
		}
		if err := tx.Create(&questions).Error; err != nil {
			return fmt.Errorf("failed to seed questions: %w", err)
		}
		log.Info("seeded demo organisation")
		return nil
	})
}

func fivePointQuestion(categoryID uint, order int, text string, weight float64) domain.Question {
	return domain.Question{
		CategoryID: categoryID,
		Text:       text,
		MinScore:   0,
		MaxScore:   5,
		Weight:     weight,
		SortOrder:  order,
		BandA:      domain.GradeBand{Min: 4.5, Max: 5, Description: "Consistently exceeds expectations"},
		BandB:      domain.GradeBand{Min: 3.5, Max: 4.49, Description: "Often exceeds expectations"},
		BandC:      domain.GradeBand{Min: 2.5, Max: 3.49, Description: "Meets expectations"},
		BandD:      domain.GradeBand{Min: 1.5, Max: 2.49, Description: "Partially meets expectations"},
		BandE:      domain.GradeBand{Min: 0, Max: 1.49, Description: "Below expectations"},
	}
}
