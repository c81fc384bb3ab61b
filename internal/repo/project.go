package repo

import (
	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProjectRepo represents the repository for the project model
type ProjectRepo struct {
	db *gorm.DB
}

type ProjectRepoInterface interface {
	CreateProject(ctx context.Context, project *models.Project) (uuid.UUID, error)
	GetAllProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error)
	RenameProject(ctx context.Context, userID, projectID uuid.UUID, name string) error
	SaveShapes(ctx context.Context, userID, projectID uuid.UUID, shapes []byte) error
	UpdateThumbnail(ctx context.Context, userID, projectID uuid.UUID, url string) error
	DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error
}

func NewProjectRepository(db *gorm.DB) ProjectRepoInterface {
	return &ProjectRepo{db: db}
}

// CreateProject creates a new, empty project in the database
func (r *ProjectRepo) CreateProject(ctx context.Context, project *models.Project) (uuid.UUID, error) {
	id := uuid.New()
	project.UUID = id
	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()
	if len(project.Shapes) == 0 {
		project.Shapes = datatypes.JSON("[]")
	}
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return uuid.Nil, fmt.Errorf("create project: %w", err)
	}
	return id, nil
}

// GetAllProjects returns the user's projects, most recently updated first
func (r *ProjectRepo) GetAllProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepo) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Where("uuid = ? AND user_id = ?", projectID, userID).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("project %s: %w", projectID, faults.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return &project, nil
}

func (r *ProjectRepo) RenameProject(ctx context.Context, userID, projectID uuid.UUID, name string) error {
	return r.update(ctx, userID, projectID, map[string]interface{}{"name": name})
}

// SaveShapes replaces the serialized shape list of the project
func (r *ProjectRepo) SaveShapes(ctx context.Context, userID, projectID uuid.UUID, shapes []byte) error {
	return r.update(ctx, userID, projectID, map[string]interface{}{"shapes": datatypes.JSON(shapes)})
}

func (r *ProjectRepo) UpdateThumbnail(ctx context.Context, userID, projectID uuid.UUID, url string) error {
	return r.update(ctx, userID, projectID, map[string]interface{}{"thumbnail": url})
}

func (r *ProjectRepo) update(ctx context.Context, userID, projectID uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("uuid = ? AND user_id = ?", projectID, userID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update project %s: %w", projectID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", projectID, faults.ErrNotFound)
	}
	return nil
}

func (r *ProjectRepo) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("uuid = ? AND user_id = ?", projectID, userID).
		Delete(&models.Project{})
	if result.Error != nil {
		return fmt.Errorf("delete project %s: %w", projectID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", projectID, faults.ErrNotFound)
	}
	return nil
}

// Documents exposes one user's projects as the synchronizer's remote store.
type Documents struct {
	projects ProjectRepoInterface
	userID   uuid.UUID
}

func NewDocuments(projects ProjectRepoInterface, userID uuid.UUID) *Documents {
	return &Documents{projects: projects, userID: userID}
}

func (d *Documents) LoadShapes(ctx context.Context, projectID string) ([]byte, error) {
	id, err := parseProjectID(projectID)
	if err != nil {
		return nil, err
	}
	project, err := d.projects.GetProject(ctx, d.userID, id)
	if err != nil {
		return nil, err
	}
	return project.Shapes, nil
}

func (d *Documents) SaveShapes(ctx context.Context, projectID string, data []byte) error {
	id, err := parseProjectID(projectID)
	if err != nil {
		return err
	}
	return d.projects.SaveShapes(ctx, d.userID, id, data)
}

func parseProjectID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("project id %q: %w", s, faults.ErrValidation)
	}
	return id, nil
}
