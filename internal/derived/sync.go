// Package derived computes rule-based group memberships and reconciles them
// against stored state. Only union and parent_child rules are evaluated;
// role_based and conditional rules are stored but inert.
package derived

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

	"gorm.io/datatypes"
)

var log = console.New("DERIVED")

type Service struct {
	store store.Store
	hot   cache.Cache
}

func NewService(st store.Store, hot cache.Cache) *Service {
	return &Service{store: st, hot: hot}
}

// Rule management

type RuleInput struct {
	RuleType       models.RuleType `json:"ruleType" validate:"required,rule_type"`
	SourceGroupIDs []string        `json:"sourceGroupIds,omitempty" validate:"omitempty,dive,uuid"`
	ConditionRules json.RawMessage `json:"conditionRules,omitempty"`
	Priority       int             `json:"priority"`
	IsActive       *bool           `json:"isActive,omitempty"`
}

// AddRule attaches a rule to a derived group and reconciles immediately.
func (s *Service) AddRule(ctx context.Context, actor identity.Actor, derivedGroupID string, input RuleInput) (*models.DerivedRule, error) {
	group, err := s.store.GetGroup(ctx, derivedGroupID)
	if err != nil {
		return nil, err
	}
	if group.Type != models.GroupTypeDerived {
		return nil, apperr.InvalidState("rules only attach to derived groups")
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("only the owner manages derived rules")
	}
	if err := s.validateRule(ctx, derivedGroupID, input); err != nil {
		return nil, err
	}

	rule := models.DerivedRule{
		DerivedGroupID: derivedGroupID,
		RuleType:       input.RuleType,
		Priority:       input.Priority,
		IsActive:       true,
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if len(input.SourceGroupIDs) > 0 {
		raw, err := json.Marshal(input.SourceGroupIDs)
		if err != nil {
			return nil, err
		}
		rule.SourceGroupIDs = datatypes.JSON(raw)
	}
	if len(input.ConditionRules) > 0 {
		rule.ConditionRules = datatypes.JSON(input.ConditionRules)
	}
	if err := s.store.CreateDerivedRule(ctx, &rule); err != nil {
		return nil, err
	}
	if _, err := s.Sync(ctx, derivedGroupID); err != nil {
		log.Warn("post-create sync failed for group %s: %v", derivedGroupID, err)
	}
	return &rule, nil
}

func (s *Service) validateRule(ctx context.Context, derivedGroupID string, input RuleInput) error {
	switch input.RuleType {
	case models.RuleTypeUnion, models.RuleTypeParentChild:
		if len(input.SourceGroupIDs) == 0 {
			return apperr.Validation("%s rules require at least one source group", input.RuleType)
		}
	case models.RuleTypeRoleBased, models.RuleTypeConditional:
		// Accepted and stored, never evaluated.
	default:
		return apperr.Validation("unknown rule type %q", input.RuleType)
	}
	for _, sourceID := range input.SourceGroupIDs {
		if sourceID == derivedGroupID {
			return apperr.Validation("a derived group cannot source itself")
		}
		if _, err := s.store.GetGroup(ctx, sourceID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) RemoveRule(ctx context.Context, actor identity.Actor, derivedGroupID, ruleID string) error {
	group, err := s.store.GetGroup(ctx, derivedGroupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return apperr.PermissionDenied("only the owner manages derived rules")
	}
	rule, err := s.store.GetDerivedRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if rule.DerivedGroupID != derivedGroupID {
		return apperr.NotFound("derived rule not found")
	}
	if err := s.store.DeleteDerivedRule(ctx, ruleID); err != nil {
		return err
	}
	if _, err := s.Sync(ctx, derivedGroupID); err != nil {
		log.Warn("post-delete sync failed for group %s: %v", derivedGroupID, err)
	}
	return nil
}

func (s *Service) ListRules(ctx context.Context, derivedGroupID string) ([]models.DerivedRule, error) {
	if _, err := s.store.GetGroup(ctx, derivedGroupID); err != nil {
		return nil, err
	}
	return s.store.ListDerivedRulesByGroup(ctx, derivedGroupID)
}

// Reconciliation

// SyncResult reports what one reconciliation pass changed.
type SyncResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Sync recomputes the derived group's membership from its active rules and
// reconciles stored rows. Only rows this engine created (source "derived")
// are ever added or removed; direct memberships that coincide with the
// computed set are left alone. Running it twice without underlying changes
// performs no writes the second time.
func (s *Service) Sync(ctx context.Context, derivedGroupID string) (SyncResult, error) {
	var result SyncResult
	group, err := s.store.GetGroup(ctx, derivedGroupID)
	if err != nil {
		return result, err
	}
	if group.Type != models.GroupTypeDerived {
		return result, apperr.InvalidState("group %s is not derived", group.Name)
	}

	rules, err := s.store.ListActiveDerivedRules(ctx, derivedGroupID)
	if err != nil {
		return result, err
	}
	target, err := s.computeTargetSet(ctx, derivedGroupID, rules)
	if err != nil {
		return result, err
	}

	// Anyone already in the group by any path is not a candidate to add.
	memberships, err := s.store.ListMembershipsByGroup(ctx, derivedGroupID)
	if err != nil {
		return result, err
	}
	present := make(map[string]models.MembershipSource, len(memberships))
	for _, membership := range memberships {
		present[membership.UserID] = membership.Source
	}

	touched := []string{}
	for userID := range target {
		if _, ok := present[userID]; ok {
			continue
		}
		membership := models.Membership{
			GroupID:  derivedGroupID,
			UserID:   userID,
			Source:   models.MembershipSourceDerived,
			JoinedAt: time.Now(),
		}
		if err := s.store.CreateMembership(ctx, &membership); err != nil {
			if apperr.IsConflict(err) {
				log.Warn("skipping derived add for user %s in group %s: %v", userID, derivedGroupID, err)
				continue
			}
			return result, err
		}
		result.Added++
		touched = append(touched, userID)
	}
	for userID, source := range present {
		if source != models.MembershipSourceDerived {
			continue
		}
		if target[userID] {
			continue
		}
		if err := s.store.DeleteMembership(ctx, derivedGroupID, userID); err != nil && !apperr.IsNotFound(err) {
			return result, err
		}
		result.Removed++
		touched = append(touched, userID)
	}

	if result.Added > 0 || result.Removed > 0 {
		s.invalidate(ctx, derivedGroupID, touched)
	}
	return result, nil
}

func (s *Service) computeTargetSet(ctx context.Context, derivedGroupID string, rules []models.DerivedRule) (map[string]bool, error) {
	target := make(map[string]bool)
	for _, rule := range rules {
		switch rule.RuleType {
		case models.RuleTypeUnion, models.RuleTypeParentChild:
			var sourceIDs []string
			if len(rule.SourceGroupIDs) > 0 {
				if err := json.Unmarshal(rule.SourceGroupIDs, &sourceIDs); err != nil {
					log.Warn("rule %s has malformed source list, skipping: %v", rule.ID, err)
					continue
				}
			}
			for _, sourceID := range sourceIDs {
				if sourceID == derivedGroupID {
					continue
				}
				memberships, err := s.store.ListMembershipsByGroup(ctx, sourceID)
				if err != nil {
					if apperr.IsNotFound(err) {
						continue
					}
					return nil, err
				}
				for _, membership := range memberships {
					target[membership.UserID] = true
				}
			}
		case models.RuleTypeRoleBased, models.RuleTypeConditional:
			log.Debug("rule %s type %s is inert, skipping", rule.ID, rule.RuleType)
		}
	}
	return target, nil
}

// SyncAll reconciles every derived group. Scheduler entry point.
func (s *Service) SyncAll(ctx context.Context) (SyncResult, error) {
	var total SyncResult
	groups, err := s.store.ListGroupsByType(ctx, models.GroupTypeDerived)
	if err != nil {
		return total, err
	}
	for _, group := range groups {
		result, err := s.Sync(ctx, group.ID)
		if err != nil {
			log.Warn("sync failed for derived group %s: %v", group.ID, err)
			continue
		}
		total.Added += result.Added
		total.Removed += result.Removed
	}
	return total, nil
}

func (s *Service) invalidate(ctx context.Context, groupID string, userIDs []string) {
	if err := s.hot.Delete(ctx, cache.GroupMembersKey(groupID)); err != nil {
		log.Warn("member cache invalidation failed for group %s: %v", groupID, err)
	}
	for _, userID := range userIDs {
		if err := s.hot.Delete(ctx, cache.UserPermissionsKey(userID)); err != nil {
			log.Warn("permission cache invalidation failed for user %s: %v", userID, err)
		}
	}
}
