package apisvc

import (
	"context"
	"net/http"
	"net/url"
)

// PublicPortal addresses one school's public pages, authenticated by its slug and token.
type PublicPortal struct {
	client *Client
	slug   string
	token  string
}

func (c *Client) Public(slug, token string) *PublicPortal {
	return &PublicPortal{client: c, slug: slug, token: token}
}

func (p *PublicPortal) path(suffix string) string {
	return "/public/schools/" + url.PathEscape(p.slug) + suffix
}

func (p *PublicPortal) query(extra Params) url.Values {
	q := extra.values()
	q.Set("token", p.token)
	return q
}

func (p *PublicPortal) CurrentMenu(ctx context.Context) (Menu, error) {
	var menu Menu
	err := p.client.Do(ctx, Request{Path: p.path("/menu/current/"), Query: p.query(nil), SkipAuth: true}, &menu)
	return menu, err
}

// Delivery fetches the delivery to confer; an empty deliveryID picks the latest one.
func (p *PublicPortal) Delivery(ctx context.Context, deliveryID string) (Delivery, error) {
	var delivery Delivery
	err := p.client.Do(ctx, Request{
		Path:     p.path("/delivery/current/"),
		Query:    p.query(Params{"delivery_id": deliveryID}),
		SkipAuth: true,
	}, &delivery)
	return delivery, err
}

// SubmitConference sends the delivery conference and returns the persisted delivery.
func (p *PublicPortal) SubmitConference(ctx context.Context, deliveryID string, sub ConferenceSubmission) (Delivery, error) {
	if err := p.client.validator.Struct(sub); err != nil {
		return Delivery{}, err
	}
	var delivery Delivery
	err := p.client.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     p.path("/delivery/current/"),
		Query:    p.query(Params{"delivery_id": deliveryID}),
		Body:     sub,
		SkipAuth: true,
	}, &delivery)
	return delivery, err
}

func (p *PublicPortal) Supplies(ctx context.Context) ([]Supply, error) {
	var supplies []Supply
	err := p.client.Do(ctx, Request{Path: p.path("/consumption/"), Query: p.query(nil), SkipAuth: true}, &supplies)
	return supplies, err
}

// SubmitConsumption registers consumed supplies; it needs at least one item.
func (p *PublicPortal) SubmitConsumption(ctx context.Context, sub ConsumptionSubmission) error {
	if err := p.client.validator.Struct(sub); err != nil {
		return err
	}
	return p.client.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     p.path("/consumption/"),
		Query:    p.query(nil),
		Body:     sub,
		SkipAuth: true,
	}, nil)
}
