// Package payments wraps Stripe Checkout for tour purchases.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/trailventures/tours-api/internal/domain"
)

// Provider creates checkout sessions and decodes completed-checkout
// webhooks back into bookings to record.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, tour *domain.Tour, user *domain.User) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*CompletedCheckout, error)
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedCheckout is the subset of a paid checkout the booking layer
// needs. Nil is returned by ParseWebhook for event types we don't act on.
type CompletedCheckout struct {
	TourID      int64
	UserID      int64
	AmountCents int64
}

type StripeProvider struct {
	api           *client.API
	webhookSecret string
	currency      string
	baseURL       string
}

func NewStripeProvider(secretKey, webhookSecret, currency, baseURL string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{
		api:           api,
		webhookSecret: webhookSecret,
		currency:      currency,
		baseURL:       baseURL,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, tour *domain.Tour, user *domain.User) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.baseURL + "/my-bookings?checkout=success"),
		CancelURL:         stripe.String(p.baseURL + "/tours/" + tour.Slug),
		CustomerEmail:     stripe.String(user.Email),
		ClientReferenceID: stripe.String(strconv.FormatInt(tour.ID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.currency),
					UnitAmount: stripe.Int64(tour.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(tour.Name + " Tour"),
						Description: stripe.String(tour.Summary),
					},
				},
			},
		},
	}
	params.AddMetadata("tour_id", strconv.FormatInt(tour.ID, 10))
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*CompletedCheckout, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	tourID, err := strconv.ParseInt(sess.Metadata["tour_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("webhook missing tour_id metadata")
	}
	userID, err := strconv.ParseInt(sess.Metadata["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("webhook missing user_id metadata")
	}

	return &CompletedCheckout{
		TourID:      tourID,
		UserID:      userID,
		AmountCents: sess.AmountTotal,
	}, nil
}
