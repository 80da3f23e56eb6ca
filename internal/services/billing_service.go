package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/pipeline"
)

// BillingService answers entitlement questions from the subscriptions table
// maintained by the Stripe webhook. Users without an active subscription get
// the free-tier project quota.
type BillingService struct {
	store            Store
	freeProjectLimit int
	log              *logger.Logger
}

func NewBillingService(store Store, freeProjectLimit int, log *logger.Logger) *BillingService {
	return &BillingService{
		store:            store,
		freeProjectLimit: freeProjectLimit,
		log:              log.With("component", "billing"),
	}
}

// CheckCanCreateProject returns nil when the user may create another project.
// A lapsed subscription yields SUBSCRIPTION_REQUIRED; an exhausted free-tier
// quota yields USAGE_LIMIT_EXCEEDED.
func (s *BillingService) CheckCanCreateProject(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub != nil && sub.Active() {
		return nil
	}

	count, err := s.store.CountProjects(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count projects: %w", err)
	}
	if count < s.freeProjectLimit {
		return nil
	}

	if sub != nil {
		s.log.Info("project creation blocked by lapsed subscription",
			"user_id", userID.String(), "status", sub.Status)
		return &pipeline.ServiceError{
			Code:            pipeline.ErrCodeSubscriptionRequired,
			Message:         fmt.Sprintf("subscription status is %s", sub.Status),
			UserMessage:     "Your subscription is no longer active. Please renew to keep creating projects.",
			Retryable:       false,
			SuggestedAction: "Renew your subscription from the billing page.",
		}
	}

	s.log.Info("project creation blocked by free-tier limit",
		"user_id", userID.String(), "projects", count, "limit", s.freeProjectLimit)
	return &pipeline.ServiceError{
		Code:            pipeline.ErrCodeUsageLimitExceeded,
		Message:         fmt.Sprintf("free tier limit of %d projects reached", s.freeProjectLimit),
		UserMessage:     fmt.Sprintf("The free tier includes %d projects. Upgrade to create more.", s.freeProjectLimit),
		Retryable:       false,
		SuggestedAction: "Upgrade to a paid plan to create more projects.",
	}
}

// PlanFor reports the user's effective plan name for display.
func (s *BillingService) PlanFor(ctx context.Context, userID uuid.UUID) (string, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil || !sub.Active() {
		return models.PlanFree, nil
	}
	return sub.Plan, nil
}
