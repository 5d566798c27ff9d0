package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codex-app/codex/internal/dto"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/codex-app/codex/internal/model"
	"github.com/codex-app/codex/pkg/blob"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const contentTypeText = "text/plain; charset=utf-8"

// PromptStore is the prompt/response persistence the service needs.
// *repository.PromptRepository satisfies it.
type PromptStore interface {
	Create(ctx context.Context, prompt *model.Prompt) error
	GetByID(ctx context.Context, id, userID uint) (*model.Prompt, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Prompt, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	CreateResponse(ctx context.Context, response *model.Response) error
	GetResponse(ctx context.Context, id, promptID uint) (*model.Response, error)
	DeleteResponse(ctx context.Context, id uint) error
}

// PromptService manages saved prompts and their model responses. Row
// data stays relational; the prompt and response bodies live in the
// blob store under per-object keys.
type PromptService struct {
	prompts PromptStore
	blobs   blob.Store
}

func NewPromptService(prompts PromptStore, blobs blob.Store) *PromptService {
	return &PromptService{prompts: prompts, blobs: blobs}
}

func promptContentKey(userID uint) string {
	return fmt.Sprintf("prompts/%d/%s", userID, uuid.NewString())
}

func responseContentKey(promptID uint) string {
	return fmt.Sprintf("responses/%d/%s", promptID, uuid.NewString())
}

// Create stores the prompt body in the blob store first, then the row.
// On a row insert failure the orphaned blob is cleaned up best-effort.
func (s *PromptService) Create(ctx context.Context, userID uint, req *dto.CreatePromptRequest) (*dto.PromptResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "CreatePrompt")

	key := promptContentKey(userID)
	if err := s.blobs.Put(ctx, key, []byte(req.Content), contentTypeText); err != nil {
		logger.ErrorWithContext(ctx, "Failed to store prompt content").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
	}

	prompt := &model.Prompt{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		ContentKey:  key,
	}
	if err := s.prompts.Create(ctx, prompt); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			logger.WarnWithContext(ctx, "Failed to clean up orphaned prompt blob").
				String("content_key", key).
				Err(delErr).
				Log()
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	out := s.toPromptResponse(prompt, req.Content, nil)
	return &out, nil
}

// Get returns one prompt with its content and responses hydrated from
// the blob store.
func (s *PromptService) Get(ctx context.Context, userID, promptID uint) (*dto.PromptResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "GetPrompt")

	prompt, err := s.prompts.GetByID(ctx, promptID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPromptNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	content, err := s.blobs.Get(ctx, prompt.ContentKey)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to load prompt content").
			String("content_key", prompt.ContentKey).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
	}

	responses := make([]dto.ModelResponse, 0, len(prompt.Responses))
	for i := range prompt.Responses {
		resp := &prompt.Responses[i]
		body, err := s.blobs.Get(ctx, resp.ContentKey)
		if err != nil {
			logger.WarnWithContext(ctx, "Failed to load response content").
				String("content_key", resp.ContentKey).
				Err(err).
				Log()
			body = nil
		}
		responses = append(responses, s.toModelResponse(resp, string(body)))
	}

	out := s.toPromptResponse(prompt, string(content), responses)
	return &out, nil
}

// List returns the user's prompts without bodies: the listing is a
// metadata view, content is fetched per prompt.
func (s *PromptService) List(ctx context.Context, userID uint) ([]dto.PromptResponse, error) {
	prompts, err := s.prompts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	out := make([]dto.PromptResponse, 0, len(prompts))
	for i := range prompts {
		out = append(out, s.toPromptResponse(&prompts[i], "", nil))
	}
	return out, nil
}

// Update applies a partial update. A new body replaces the blob under
// the same key, so concurrent readers never see a dangling key.
func (s *PromptService) Update(ctx context.Context, userID, promptID uint, req *dto.UpdatePromptRequest) error {
	ctx = ctxutil.NewContext(ctx, "service", "UpdatePrompt")

	prompt, err := s.prompts.GetByID(ctx, promptID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPromptNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if req.Content != nil {
		if err := s.blobs.Put(ctx, prompt.ContentKey, []byte(*req.Content), contentTypeText); err != nil {
			return apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
		}
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.prompts.UpdateFields(ctx, promptID, fields); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return nil
}

// Delete removes the prompt, its responses and their blobs. Blob
// deletes are best-effort and run before the relational cascade.
func (s *PromptService) Delete(ctx context.Context, userID, promptID uint) error {
	ctx = ctxutil.NewContext(ctx, "service", "DeletePrompt")

	prompt, err := s.prompts.GetByID(ctx, promptID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPromptNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	keys := []string{prompt.ContentKey}
	for i := range prompt.Responses {
		keys = append(keys, prompt.Responses[i].ContentKey)
	}
	if err := s.blobs.Delete(ctx, keys...); err != nil {
		logger.WarnWithContext(ctx, "Failed to delete prompt blobs").
			Int("prompt_id", int(promptID)).
			Err(err).
			Log()
	}

	if err := s.prompts.Delete(ctx, promptID); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return nil
}

// AddResponse attaches an LLM response to a prompt owned by the user.
func (s *PromptService) AddResponse(ctx context.Context, userID, promptID uint, req *dto.CreateResponseRequest) (*dto.ModelResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "AddResponse")

	if _, err := s.prompts.GetByID(ctx, promptID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPromptNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return nil, apperrors.NewValidationError("metadata must be valid JSON")
	}

	key := responseContentKey(promptID)
	if err := s.blobs.Put(ctx, key, []byte(req.Content), contentTypeText); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
	}

	response := &model.Response{
		PromptID:   promptID,
		Provider:   req.Provider,
		Model:      req.Model,
		Metadata:   datatypes.JSON(req.Metadata),
		ContentKey: key,
	}
	if err := s.prompts.CreateResponse(ctx, response); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			logger.WarnWithContext(ctx, "Failed to clean up orphaned response blob").
				String("content_key", key).
				Err(delErr).
				Log()
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	out := s.toModelResponse(response, req.Content)
	return &out, nil
}

// DeleteResponse removes one response and its blob, scoped to the
// owning user through the prompt.
func (s *PromptService) DeleteResponse(ctx context.Context, userID, promptID, responseID uint) error {
	ctx = ctxutil.NewContext(ctx, "service", "DeleteResponse")

	if _, err := s.prompts.GetByID(ctx, promptID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPromptNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	response, err := s.prompts.GetResponse(ctx, responseID, promptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrResponseNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.blobs.Delete(ctx, response.ContentKey); err != nil {
		logger.WarnWithContext(ctx, "Failed to delete response blob").
			String("content_key", response.ContentKey).
			Err(err).
			Log()
	}

	if err := s.prompts.DeleteResponse(ctx, responseID); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return nil
}

func (s *PromptService) toPromptResponse(prompt *model.Prompt, content string, responses []dto.ModelResponse) dto.PromptResponse {
	return dto.PromptResponse{
		ID:          prompt.ID,
		Title:       prompt.Title,
		Description: prompt.Description,
		Content:     content,
		CreatedAt:   prompt.CreatedAt,
		UpdatedAt:   prompt.UpdatedAt,
		Responses:   responses,
	}
}

func (s *PromptService) toModelResponse(response *model.Response, content string) dto.ModelResponse {
	return dto.ModelResponse{
		ID:        response.ID,
		Provider:  response.Provider,
		Model:     response.Model,
		Metadata:  json.RawMessage(response.Metadata),
		Content:   content,
		CreatedAt: response.CreatedAt,
	}
}
