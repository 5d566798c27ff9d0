package service

import (
	"context"
	"time"

	"github.com/codex-app/codex/internal/model"
	"github.com/codex-app/codex/pkg/blob"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
)

// PurgeUserStore is the slice of the user store the purge job needs.
type PurgeUserStore interface {
	FindPurgeCandidates(ctx context.Context, cutoff time.Time) ([]model.User, error)
	HardDelete(ctx context.Context, id uint) error
}

// PurgePromptStore collects blob keys and cascades the relational
// delete for a purged user.
type PurgePromptStore interface {
	ListByUserWithResponses(ctx context.Context, userID uint) ([]model.Prompt, error)
	DeleteByUser(ctx context.Context, userID uint) error
}

// PurgeService permanently removes accounts whose retention window has
// elapsed, dependents first: response and prompt blobs, then rows, then
// the user row itself. Blob deletes are best-effort; a failed object
// delete never blocks the relational purge.
type PurgeService struct {
	users         PurgeUserStore
	prompts       PurgePromptStore
	blobs         blob.Store
	retentionDays int
}

func NewPurgeService(users PurgeUserStore, prompts PurgePromptStore, blobs blob.Store, retentionDays int) *PurgeService {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &PurgeService{
		users:         users,
		prompts:       prompts,
		blobs:         blobs,
		retentionDays: retentionDays,
	}
}

// Run executes one purge pass and returns the number of users removed.
// A failure on one user is logged and skipped; remaining candidates
// still purge. Re-running after a partial pass is safe.
func (s *PurgeService) Run(ctx context.Context) (int, error) {
	ctx = ctxutil.NewContext(ctx, "service", "PurgeRun")

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	candidates, err := s.users.FindPurgeCandidates(ctx, cutoff)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to find purge candidates").
			Err(err).
			Log()
		return 0, err
	}

	if len(candidates) == 0 {
		return 0, nil
	}

	deleted := 0
	for i := range candidates {
		user := &candidates[i]
		if err := s.purgeUser(ctx, user); err != nil {
			logger.ErrorWithContext(ctx, "Failed to purge user, skipping").
				Int("user_id", int(user.ID)).
				Err(err).
				Log()
			continue
		}
		deleted++
	}

	logger.InfoWithContext(ctx, "Purge pass completed").
		Int("candidates", len(candidates)).
		Int("deleted", deleted).
		Log()

	return deleted, nil
}

func (s *PurgeService) purgeUser(ctx context.Context, user *model.User) error {
	prompts, err := s.prompts.ListByUserWithResponses(ctx, user.ID)
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, user.ID, prompts)

	if err := s.prompts.DeleteByUser(ctx, user.ID); err != nil {
		return err
	}
	return s.users.HardDelete(ctx, user.ID)
}

// deleteBlobs removes the stored content objects for every prompt and
// response of the user. Failures are logged, not propagated.
func (s *PurgeService) deleteBlobs(ctx context.Context, userID uint, prompts []model.Prompt) {
	if s.blobs == nil {
		return
	}

	keys := make([]string, 0, len(prompts)*2)
	for i := range prompts {
		if prompts[i].ContentKey != "" {
			keys = append(keys, prompts[i].ContentKey)
		}
		for j := range prompts[i].Responses {
			if prompts[i].Responses[j].ContentKey != "" {
				keys = append(keys, prompts[i].Responses[j].ContentKey)
			}
		}
	}
	if len(keys) == 0 {
		return
	}

	if err := s.blobs.Delete(ctx, keys...); err != nil {
		logger.WarnWithContext(ctx, "Failed to delete content blobs during purge").
			Int("user_id", int(userID)).
			Int("key_count", len(keys)).
			Err(err).
			Log()
	}
}
