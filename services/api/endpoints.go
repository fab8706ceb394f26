package apisvc

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Params are optional query filters; empty values are dropped.
type Params map[string]string

func (p Params) values() url.Values {
	v := make(url.Values, len(p))
	for key, val := range p {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

// BoolParam renders an optional boolean filter.
func BoolParam(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.Do(ctx, Request{Path: "/api/auth/me/"}, &me)
	return me, err
}

// Schools

func (c *Client) Schools(ctx context.Context, params Params) ([]School, error) {
	var schools []School
	err := c.Do(ctx, Request{Path: "/api/schools/", Query: params.values()}, &schools)
	return schools, err
}

func (c *Client) CreateSchool(ctx context.Context, in SchoolInput) (School, error) {
	var school School
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/schools/", Body: in}, &school)
	return school, err
}

func (c *Client) UpdateSchool(ctx context.Context, id string, in SchoolInput) (School, error) {
	var school School
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: "/api/schools/" + url.PathEscape(id) + "/", Body: in}, &school)
	return school, err
}

func (c *Client) DeleteSchool(ctx context.Context, id string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: "/api/schools/" + url.PathEscape(id) + "/"}, nil)
}

func (c *Client) SchoolPublicLink(ctx context.Context, id string) (PublicLink, error) {
	var link PublicLink
	err := c.Do(ctx, Request{Path: "/api/schools/" + url.PathEscape(id) + "/public_link/"}, &link)
	return link, err
}

// Supplies & stock

func (c *Client) Supplies(ctx context.Context, params Params) ([]Supply, error) {
	var supplies []Supply
	err := c.Do(ctx, Request{Path: "/api/supplies/", Query: params.values()}, &supplies)
	return supplies, err
}

func (c *Client) CreateSupply(ctx context.Context, in SupplyInput) (Supply, error) {
	var supply Supply
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/supplies/", Body: in}, &supply)
	return supply, err
}

func (c *Client) UpdateSupply(ctx context.Context, id string, in SupplyInput) (Supply, error) {
	var supply Supply
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: "/api/supplies/" + url.PathEscape(id) + "/", Body: in}, &supply)
	return supply, err
}

func (c *Client) DeleteSupply(ctx context.Context, id string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: "/api/supplies/" + url.PathEscape(id) + "/"}, nil)
}

func (c *Client) Stock(ctx context.Context, params Params) ([]StockBalance, error) {
	var stock []StockBalance
	err := c.Do(ctx, Request{Path: "/api/stock/", Query: params.values()}, &stock)
	return stock, err
}

func (c *Client) CreateStockMovement(ctx context.Context, in StockMovementInput) (StockMovement, error) {
	var mvt StockMovement
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/stock/movements/", Body: in}, &mvt)
	return mvt, err
}

// Deliveries

func (c *Client) Deliveries(ctx context.Context, params Params) ([]Delivery, error) {
	var deliveries []Delivery
	err := c.Do(ctx, Request{Path: "/api/deliveries/", Query: params.values()}, &deliveries)
	return deliveries, err
}

func (c *Client) CreateDelivery(ctx context.Context, in DeliveryInput) (Delivery, error) {
	var delivery Delivery
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/deliveries/", Body: in}, &delivery)
	return delivery, err
}

func (c *Client) SendDelivery(ctx context.Context, id string) (Delivery, error) {
	var delivery Delivery
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/deliveries/" + url.PathEscape(id) + "/send/"}, &delivery)
	return delivery, err
}

func (c *Client) DeliveryConferenceLink(ctx context.Context, id string) (PublicLink, error) {
	var link PublicLink
	err := c.Do(ctx, Request{Path: "/api/deliveries/" + url.PathEscape(id) + "/conference_link/"}, &link)
	return link, err
}

// Menus

func (c *Client) Menus(ctx context.Context, params Params) ([]Menu, error) {
	var menus []Menu
	err := c.Do(ctx, Request{Path: "/api/menus/", Query: params.values()}, &menus)
	return menus, err
}

func (c *Client) CreateMenu(ctx context.Context, in MenuInput) (Menu, error) {
	var menu Menu
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/menus/", Body: in}, &menu)
	return menu, err
}

func (c *Client) UpdateMenu(ctx context.Context, id string, in MenuInput) (Menu, error) {
	var menu Menu
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: "/api/menus/" + url.PathEscape(id) + "/", Body: in}, &menu)
	return menu, err
}

func (c *Client) BulkMenuItems(ctx context.Context, menuID string, items []MenuItem) (Menu, error) {
	var menu Menu
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/menus/" + url.PathEscape(menuID) + "/items/bulk/",
		Body:   map[string][]MenuItem{"items": items},
	}, &menu)
	return menu, err
}

func (c *Client) PublishMenu(ctx context.Context, menuID string) (Menu, error) {
	var menu Menu
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/menus/" + url.PathEscape(menuID) + "/publish/"}, &menu)
	return menu, err
}

// Dashboard

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var dash Dashboard
	err := c.Do(ctx, Request{Path: "/api/dashboard/"}, &dash)
	return dash, err
}

func (c *Client) DashboardSeries(ctx context.Context) (DashboardSeries, error) {
	var series DashboardSeries
	err := c.Do(ctx, Request{Path: "/api/dashboard/series/"}, &series)
	return series, err
}

// Exports are generated server-side; these build the download URLs.

func (c *Client) StockCSVURL() string {
	return c.baseURL + "/api/exports/stock/"
}

func (c *Client) MenusCSVURL() string {
	return c.baseURL + "/api/exports/menus/"
}

func (c *Client) MenuPDFURL(schoolID, weekStart string) string {
	q := Params{"school": schoolID, "week_start": weekStart}.values()
	return c.baseURL + "/api/exports/menus/pdf/?" + q.Encode()
}
