package tasks

import (
	"context"
	"time"

	"guildhub/internal/derived"
	"guildhub/internal/discord"
	"guildhub/internal/recruit"
	"guildhub/internal/tasks/rate"
	"guildhub/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// TaskHandler runs the periodic maintenance work behind the engine: flipping
// stale invitations, reconciling derived groups, keeping the auto-recruit
// aggregate warm and feeding the discord invite pipeline.
type TaskHandler struct {
	recruit       *recruit.Service
	derived       *derived.Service
	bridge        *discord.Bridge
	inviteLimiter *rate.QueueRateLimiter
	logger        *logger.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(recruitSvc *recruit.Service, derivedSvc *derived.Service, bridge *discord.Bridge, inviteLimiter *rate.QueueRateLimiter) *TaskHandler {
	return &TaskHandler{
		recruit:       recruitSvc,
		derived:       derivedSvc,
		bridge:        bridge,
		inviteLimiter: inviteLimiter,
		logger:        logger.New("task_handler"),
	}
}

// HandleExpireInvitations flips every pending invitation past its expiry.
func (h *TaskHandler) HandleExpireInvitations(ctx context.Context, t *asynq.Task) error {
	flipped, err := h.recruit.ExpireInvitations(ctx, time.Now())
	if err != nil {
		return h.logger.Error("invitation expiry sweep failed", err)
	}
	if flipped > 0 {
		h.logger.Info("expired %d stale invitations", flipped)
	}
	return nil
}

// HandleSyncDerivedGroups reconciles every derived group against its rules.
func (h *TaskHandler) HandleSyncDerivedGroups(ctx context.Context, t *asynq.Task) error {
	result, err := h.derived.SyncAll(ctx)
	if err != nil {
		return h.logger.Error("derived group sync failed", err)
	}
	if result.Added > 0 || result.Removed > 0 {
		h.logger.Info("derived sync added %d removed %d memberships", result.Added, result.Removed)
	}
	return nil
}

// HandleRefreshAutoRecruit rebuilds the shared auto-recruit aggregate before
// its TTL lapses.
func (h *TaskHandler) HandleRefreshAutoRecruit(ctx context.Context, t *asynq.Task) error {
	targets, err := h.bridge.Targets(ctx)
	if err != nil {
		return h.logger.Error("auto-recruit aggregate refresh failed", err)
	}
	h.logger.Debug("auto-recruit aggregate holds %d targets", len(targets))
	return nil
}

// HandleProcessDiscordInvites writes audit rows for members awaiting a
// discord invite. The queue limiter gates whole runs so a backlog never
// floods the bot.
func (h *TaskHandler) HandleProcessDiscordInvites(ctx context.Context, t *asynq.Task) error {
	if h.inviteLimiter != nil {
		allowed, err := h.inviteLimiter.Allow(ctx, "invites")
		if err != nil {
			return h.logger.Error("invite rate limiter check failed", err)
		}
		if !allowed {
			h.logger.Warn("invite processing skipped, rate limit window full")
			return nil
		}
	}
	written, err := h.bridge.ProcessPendingInvites(ctx)
	if err != nil {
		return h.logger.Error("discord invite processing failed", err)
	}
	if written > 0 {
		h.logger.Info("queued %d discord invites", written)
	}
	return nil
}
