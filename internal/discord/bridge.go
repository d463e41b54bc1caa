// Package discord persists the intent to mirror groups onto Discord servers
// and the audit trail of auto-invite outcomes. The engine never calls the
// Discord API itself; a bot consumes the attachment records.
package discord

import (
	"context"
	"encoding/json"
	"time"

	"guildhub/internal/apperr"
	"guildhub/internal/cache"
	"guildhub/internal/identity"
	"guildhub/internal/models"
	"guildhub/internal/store"
	console "guildhub/internal/utils/logger"

	"golang.org/x/time/rate"
	"gorm.io/datatypes"
)

var log = console.New("DISCORD")

const (
	OutcomeInvited = "invited"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

type Bridge struct {
	store   store.Store
	durable cache.Cache
	ttl     time.Duration

	// limiter paces audit-record production so a burst of joins does not
	// translate into a burst of bot invites downstream.
	limiter *rate.Limiter
}

func NewBridge(st store.Store, durable cache.Cache, ttl time.Duration, invitesPerMinute int) *Bridge {
	if invitesPerMinute <= 0 {
		invitesPerMinute = 30
	}
	return &Bridge{
		store:   st,
		durable: durable,
		ttl:     ttl,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(invitesPerMinute)), invitesPerMinute),
	}
}

// Attachments

type AttachInput struct {
	ServerID string   `json:"serverId" validate:"required"`
	RoleIDs  []string `json:"roleIds,omitempty"`
}

// AttachServer links a group to a Discord server. Re-attaching replaces the
// previous link.
func (b *Bridge) AttachServer(ctx context.Context, actor identity.Actor, groupID string, input AttachInput) (*models.GroupDiscordAttachment, error) {
	group, err := b.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("only the owner manages the discord link")
	}
	attachment := models.GroupDiscordAttachment{
		GroupID:  groupID,
		ServerID: input.ServerID,
	}
	if len(input.RoleIDs) > 0 {
		raw, err := json.Marshal(input.RoleIDs)
		if err != nil {
			return nil, err
		}
		attachment.RoleIDs = datatypes.JSON(raw)
	}
	if err := b.store.UpsertAttachment(ctx, &attachment); err != nil {
		return nil, err
	}
	b.invalidateTargets(ctx)
	return &attachment, nil
}

func (b *Bridge) DetachServer(ctx context.Context, actor identity.Actor, groupID string) error {
	group, err := b.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return apperr.PermissionDenied("only the owner manages the discord link")
	}
	if err := b.store.DeleteAttachmentByGroup(ctx, groupID); err != nil {
		return err
	}
	b.invalidateTargets(ctx)
	return nil
}

func (b *Bridge) GetAttachment(ctx context.Context, groupID string) (*models.GroupDiscordAttachment, error) {
	return b.store.GetAttachmentByGroup(ctx, groupID)
}

// Auto-recruit aggregate

// Target is one auto-recruit group with its server link, the unit the bot
// consumes.
type Target struct {
	GroupID  string   `json:"groupId"`
	ServerID string   `json:"serverId"`
	RoleIDs  []string `json:"roleIds,omitempty"`
}

// Targets returns every auto-recruit group that has a server attached. The
// aggregate lives in the durable cache tier so all instances share one copy.
func (b *Bridge) Targets(ctx context.Context) ([]Target, error) {
	key := cache.AutoRecruitGroupsKey()
	if raw, err := b.durable.Get(ctx, key); err == nil {
		var targets []Target
		if err := json.Unmarshal(raw, &targets); err == nil {
			return targets, nil
		}
	}
	groups, err := b.store.ListAutoRecruitGroups(ctx)
	if err != nil {
		return nil, err
	}
	groupIDs := make([]string, 0, len(groups))
	for _, group := range groups {
		groupIDs = append(groupIDs, group.ID)
	}
	attachments, err := b.store.ListAttachmentsByGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[string]models.GroupDiscordAttachment, len(attachments))
	for _, attachment := range attachments {
		byGroup[attachment.GroupID] = attachment
	}

	targets := []Target{}
	for _, group := range groups {
		attachment, ok := byGroup[group.ID]
		if !ok {
			continue
		}
		target := Target{GroupID: group.ID, ServerID: attachment.ServerID}
		if len(attachment.RoleIDs) > 0 {
			if err := json.Unmarshal(attachment.RoleIDs, &target.RoleIDs); err != nil {
				log.Warn("attachment for group %s has malformed role list: %v", group.ID, err)
			}
		}
		targets = append(targets, target)
	}
	if raw, err := json.Marshal(targets); err == nil {
		if err := b.durable.Put(ctx, key, raw, b.ttl); err != nil {
			log.Warn("auto-recruit aggregate cache write failed: %v", err)
		}
	}
	return targets, nil
}

// ProcessPendingInvites walks auto-recruit targets and writes an audit row
// for every member with no invite outcome yet, paced by the rate limiter.
// Returns the number of rows written.
func (b *Bridge) ProcessPendingInvites(ctx context.Context) (int, error) {
	targets, err := b.Targets(ctx)
	if err != nil {
		return 0, err
	}
	groupIDs := make([]string, 0, len(targets))
	for _, target := range targets {
		groupIDs = append(groupIDs, target.GroupID)
	}
	existing, err := b.store.ListInviteAuditsByGroups(ctx, groupIDs)
	if err != nil {
		return 0, err
	}
	audited := make(map[string]bool, len(existing))
	for _, record := range existing {
		audited[record.GroupID+"/"+record.UserID] = true
	}

	written := 0
	for _, target := range targets {
		memberships, err := b.store.ListMembershipsByGroup(ctx, target.GroupID)
		if err != nil {
			return written, err
		}
		var pending []models.DiscordInviteAudit
		for _, membership := range memberships {
			if audited[target.GroupID+"/"+membership.UserID] {
				continue
			}
			if err := b.limiter.Wait(ctx); err != nil {
				return written, err
			}
			pending = append(pending, models.DiscordInviteAudit{
				GroupID:  target.GroupID,
				UserID:   membership.UserID,
				ServerID: target.ServerID,
				Outcome:  OutcomeInvited,
			})
		}
		if len(pending) == 0 {
			continue
		}
		if err := b.store.InsertInviteAuditRecords(ctx, pending); err != nil {
			return written, err
		}
		written += len(pending)
	}
	return written, nil
}

// RecordOutcomes persists outcomes reported back by the bot.
func (b *Bridge) RecordOutcomes(ctx context.Context, records []models.DiscordInviteAudit) error {
	for _, record := range records {
		switch record.Outcome {
		case OutcomeInvited, OutcomeSkipped, OutcomeFailed:
		default:
			return apperr.Validation("unknown invite outcome %q", record.Outcome)
		}
	}
	return b.store.InsertInviteAuditRecords(ctx, records)
}

func (b *Bridge) invalidateTargets(ctx context.Context) {
	if err := b.durable.Delete(ctx, cache.AutoRecruitGroupsKey()); err != nil {
		log.Warn("auto-recruit aggregate invalidation failed: %v", err)
	}
}
