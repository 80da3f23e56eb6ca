package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/supabase"
)

// Stripe sends well under this; cap the body before reading it.
const stripeBodyLimit = int64(65536)

type StripeWebhookHandler struct {
	dbClient      *supabase.DatabaseClient
	webhookSecret string
	log           *logger.Logger
}

func NewStripeWebhookHandler(dbClient *supabase.DatabaseClient, webhookSecret string, log *logger.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		dbClient:      dbClient,
		webhookSecret: webhookSecret,
		log:           log.With("component", "stripe_webhook"),
	}
}

// HandleWebhook godoc
// @Summary     Stripe webhook endpoint
// @Description Receives Stripe events and keeps the local subscription table in sync. Verifies the Stripe-Signature header.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Success     200 {object} map[string]bool
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /webhooks/stripe [post]
func (h *StripeWebhookHandler) HandleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, stripeBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read request body"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.log.Warn("webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid signature"})
		return
	}

	ctx := c.Request.Context()

	switch string(event.Type) {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		err = h.handleSubscriptionChanged(ctx, event, "")
	case "customer.subscription.deleted":
		err = h.handleSubscriptionChanged(ctx, event, models.SubscriptionStatusCanceled)
	default:
		h.log.Debug("ignoring stripe event", "type", event.Type)
	}
	if err != nil {
		// Non-2xx makes Stripe redeliver the event later.
		h.log.Error("stripe event handling failed", "type", event.Type, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "event handling failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleCheckoutCompleted provisions the subscription row as soon as checkout
// finishes. The period end is provisional; the customer.subscription.updated
// event that follows carries the real one.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	// client_reference_id is set to the user id when the checkout session is
	// created. Without it the event cannot be attributed, and redelivery
	// will not help.
	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		h.log.Warn("checkout session without usable client reference", "session_id", session.ID)
		return nil
	}

	plan := session.Metadata["plan"]
	if plan == "" {
		plan = models.PlanCreator
	}

	sub := &models.Subscription{
		UserID:           userID,
		Plan:             plan,
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: time.Now().AddDate(0, 1, 0),
	}
	if session.Customer != nil {
		sub.StripeCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		sub.StripeSubscriptionID = session.Subscription.ID
	}

	if err := h.dbClient.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	h.log.Info("subscription activated", "user_id", userID, "plan", plan)
	return nil
}

// handleSubscriptionChanged applies subscription lifecycle events. forceStatus
// overrides the status carried by the event, used for deletions.
func (h *StripeWebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event, forceStatus string) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}
	if stripeSub.Customer == nil {
		h.log.Warn("subscription event without customer", "subscription_id", stripeSub.ID)
		return nil
	}

	existing, err := h.dbClient.GetSubscriptionByCustomerID(ctx, stripeSub.Customer.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		// Checkout never completed for this customer, nothing to update.
		h.log.Warn("subscription event for unknown customer", "customer_id", stripeSub.Customer.ID)
		return nil
	}

	status := forceStatus
	if status == "" {
		status = subscriptionStatus(stripeSub.Status)
	}
	if plan := stripeSub.Metadata["plan"]; plan != "" {
		existing.Plan = plan
	}

	existing.StripeSubscriptionID = stripeSub.ID
	existing.Status = status
	if stripeSub.CurrentPeriodEnd > 0 {
		existing.CurrentPeriodEnd = time.Unix(stripeSub.CurrentPeriodEnd, 0)
	}

	if err := h.dbClient.UpsertSubscription(ctx, existing); err != nil {
		return err
	}

	h.log.Info("subscription updated", "user_id", existing.UserID, "status", status)
	return nil
}

func subscriptionStatus(s stripe.SubscriptionStatus) string {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusPastDue
	}
}
