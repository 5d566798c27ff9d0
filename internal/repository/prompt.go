package repository

import (
	"context"

	"github.com/codex-app/codex/internal/model"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
	"gorm.io/gorm"
)

type PromptRepository struct {
	db *gorm.DB
}

func NewPromptRepository(db *gorm.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

func (r *PromptRepository) Create(ctx context.Context, prompt *model.Prompt) error {
	return r.db.WithContext(ctx).Create(prompt).Error
}

// GetByID loads a prompt with its responses, scoped to the owner.
func (r *PromptRepository) GetByID(ctx context.Context, id, userID uint) (*model.Prompt, error) {
	var prompt model.Prompt
	result := r.db.WithContext(ctx).
		Preload("Responses").
		Where("id = ? AND user_id = ?", id, userID).
		First(&prompt)
	if result.Error != nil {
		return nil, result.Error
	}
	return &prompt, nil
}

func (r *PromptRepository) ListByUser(ctx context.Context, userID uint) ([]model.Prompt, error) {
	var prompts []model.Prompt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&prompts).Error
	if err != nil {
		return nil, err
	}
	return prompts, nil
}

// ListByUserWithResponses loads all prompts of a user with responses
// preloaded, used by the purge job to collect blob keys before the
// relational cascade.
func (r *PromptRepository) ListByUserWithResponses(ctx context.Context, userID uint) ([]model.Prompt, error) {
	var prompts []model.Prompt
	err := r.db.WithContext(ctx).
		Preload("Responses").
		Where("user_id = ?", userID).
		Find(&prompts).Error
	if err != nil {
		return nil, err
	}
	return prompts, nil
}

func (r *PromptRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Prompt{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes a prompt and its responses in one transaction,
// dependents first to satisfy the foreign key constraints.
func (r *PromptRepository) Delete(ctx context.Context, id uint) error {
	ctx = ctxutil.NewContext(ctx, "repository", "Delete")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("prompt_id = ?", id).Delete(&model.Response{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Prompt{}).Error
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to delete prompt").
			Int("prompt_id", int(id)).
			Err(err).
			Log()
	}
	return err
}

// DeleteByUser removes every response and prompt owned by the user,
// dependents first. Absent rows delete as no-ops, so re-running after
// a partial purge is safe.
func (r *PromptRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("prompt_id IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&model.Prompt{}).
				Select("id").
				Where("user_id = ?", userID),
		).Delete(&model.Response{}).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.Prompt{}).Error
	})
}

func (r *PromptRepository) CreateResponse(ctx context.Context, response *model.Response) error {
	return r.db.WithContext(ctx).Create(response).Error
}

func (r *PromptRepository) GetResponse(ctx context.Context, id, promptID uint) (*model.Response, error) {
	var response model.Response
	result := r.db.WithContext(ctx).
		Where("id = ? AND prompt_id = ?", id, promptID).
		First(&response)
	if result.Error != nil {
		return nil, result.Error
	}
	return &response, nil
}

func (r *PromptRepository) DeleteResponse(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Response{}).Error
}
