// Package testutil provides an in-process fake of the SEMED REST API for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
)

var (
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "No active account found with the given credentials")
	errInvalidToken       = echo.NewHTTPError(http.StatusUnauthorized, "Token is invalid or expired")
	errInvalidPublicToken = echo.NewHTTPError(http.StatusForbidden, "Token invalido.")
	errNotFound           = echo.NewHTTPError(http.StatusNotFound, "Not found.")
)

type (
	// Claims mirrors the simplejwt claims of the real API.
	Claims struct {
		jwt.StandardClaims
		TokenType string `json:"token_type"`
		UserID    string `json:"user_id"`
	}

	User struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		IsStaff  bool   `json:"is_staff"`
		password string
	}

	Supply struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
		Unit     string `json:"unit"`
		MinStock string `json:"min_stock"`
		IsActive bool   `json:"is_active"`
	}

	DeliveryItem struct {
		ID               string  `json:"id"`
		Supply           string  `json:"supply"`
		SupplyName       string  `json:"supply_name"`
		SupplyUnit       string  `json:"supply_unit"`
		PlannedQuantity  string  `json:"planned_quantity"`
		ReceivedQuantity *string `json:"received_quantity"`
		DivergenceNote   string  `json:"divergence_note"`
	}

	Delivery struct {
		ID                string         `json:"id"`
		SchoolName        string         `json:"school_name"`
		DeliveryDate      string         `json:"delivery_date"`
		Status            string         `json:"status"`
		SenderSignature   string         `json:"sender_signature"`
		SenderSignedBy    string         `json:"sender_signed_by"`
		ReceiverSignature string         `json:"receiver_signature"`
		ReceiverSignedBy  string         `json:"receiver_signed_by"`
		Items             []DeliveryItem `json:"items"`
	}

	// Consumed is one accepted consumption line.
	Consumed struct {
		Supply       string  `json:"supply"`
		Quantity     float64 `json:"quantity"`
		MovementDate string  `json:"movement_date"`
		Note         string  `json:"note"`
	}

	School struct {
		ID         string
		Name       string
		Slug       string
		Token      string
		Deliveries []*Delivery
		Supplies   []Supply
		Consumed   []Consumed
	}

	// FakeAPI serves the auth, private and public endpoints the client talks to.
	FakeAPI struct {
		*httptest.Server

		app    *echo.Echo
		key    []byte
		ttl    time.Duration
		logins int32

		refreshes   int32
		failRefresh int32
		reject      int32

		mu      sync.Mutex
		users   map[string]*User
		schools map[string]*School
		authLog []string
	}
)

// refreshClaims only accepts refresh tokens.
type refreshClaims struct {
	Claims
}

func (c refreshClaims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.TokenType != "refresh" {
		return errors.New("not a refresh token")
	}
	return nil
}

func (f *FakeAPI) keyFunc(*jwt.Token) (interface{}, error) {
	return f.key, nil
}

func (c Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.TokenType != "access" {
		return errors.New("not an access token")
	}
	return nil
}

// NewFakeAPI starts a fake API; it is closed when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	f := &FakeAPI{
		app:     echo.New(),
		key:     []byte("fake-api-" + uuid.New().String()),
		ttl:     5 * time.Minute,
		users:   make(map[string]*User),
		schools: make(map[string]*School),
	}
	f.setup()
	f.Server = httptest.NewServer(f.app)
	t.Cleanup(f.Close)
	return f
}

func (f *FakeAPI) setup() {
	f.app.HideBanner = true
	f.app.Logger.SetLevel(log.OFF)
	f.app.HTTPErrorHandler = errorHandler

	f.app.POST("/api/auth/token/", f.login)
	f.app.POST("/api/auth/token/refresh/", f.refresh)

	jwtMw := middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    f.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
		ErrorHandler:  func(error) error { return errInvalidToken },
	})
	api := f.app.Group("/api", f.recordAuth, f.rejectMiddleware, jwtMw)
	api.GET("/auth/me/", f.me)
	api.GET("/schools/", f.listSchools)
	api.DELETE("/schools/:id/", f.deleteSchool)

	pub := f.app.Group("/public/schools/:slug", f.publicSchool)
	pub.GET("/delivery/current/", f.currentDelivery)
	pub.POST("/delivery/current/", f.conferDelivery)
	pub.GET("/consumption/", f.consumptionSupplies)
	pub.POST("/consumption/", f.registerConsumption)
}

// errorHandler renders errors the way the real API does: {"detail": "..."}.
func errorHandler(err error, ctx echo.Context) {
	code := http.StatusInternalServerError
	var message interface{} = http.StatusText(code)
	if hErr, ok := errors.Cause(err).(*echo.HTTPError); ok {
		code = hErr.Code
		message = hErr.Message
	}
	if _, ok := message.(string); ok {
		message = echo.Map{"detail": message}
	}
	if !ctx.Response().Committed {
		_ = ctx.JSON(code, message)
	}
}

// AddUser registers an account that can log in.
func (f *FakeAPI) AddUser(email, password string) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	usr := &User{ID: uuid.New().String(), Email: email, Name: strings.Split(email, "@")[0], IsStaff: true, password: password}
	f.users[email] = usr
	return usr
}

// AddSchool registers a school with one sent delivery and a few supplies.
func (f *FakeAPI) AddSchool(name string) *School {
	f.mu.Lock()
	defer f.mu.Unlock()
	rice := Supply{ID: uuid.New().String(), Name: "Arroz", Category: "Grãos", Unit: "KG", MinStock: "10.00", IsActive: true}
	milk := Supply{ID: uuid.New().String(), Name: "Leite", Category: "Laticínios", Unit: "L", MinStock: "5.00", IsActive: true}
	sch := &School{
		ID:       uuid.New().String(),
		Name:     name,
		Slug:     strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Token:    uuid.New().String(),
		Supplies: []Supply{rice, milk},
		Deliveries: []*Delivery{{
			ID:           uuid.New().String(),
			SchoolName:   name,
			DeliveryDate: "2026-03-14",
			Status:       "SENT",
			Items: []DeliveryItem{
				{ID: uuid.New().String(), Supply: rice.ID, SupplyName: rice.Name, SupplyUnit: rice.Unit, PlannedQuantity: "10.00"},
				{ID: uuid.New().String(), Supply: milk.ID, SupplyName: milk.Name, SupplyUnit: milk.Unit, PlannedQuantity: "5.50"},
			},
		}},
	}
	f.schools[sch.Slug] = sch
	return sch
}

// School returns a snapshot of the school registered under slug.
func (f *FakeAPI) School(slug string) School {
	f.mu.Lock()
	defer f.mu.Unlock()
	sch := *f.schools[slug]
	sch.Consumed = append([]Consumed(nil), sch.Consumed...)
	return sch
}

// Token signs a token of the given type for usr, expiring at exp.
func (f *FakeAPI) Token(usr *User, tokenType string, exp time.Time) string {
	claims := Claims{
		StandardClaims: jwt.StandardClaims{ExpiresAt: exp.Unix(), IssuedAt: time.Now().Unix(), Subject: usr.ID},
		TokenType:      tokenType,
		UserID:         usr.ID,
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.key)
	if err != nil {
		panic(err)
	}
	return ss
}

// AccessToken returns a valid access token for usr.
func (f *FakeAPI) AccessToken(usr *User) string {
	return f.Token(usr, "access", time.Now().Add(f.ttl))
}

// RefreshToken returns a valid refresh token for usr.
func (f *FakeAPI) RefreshToken(usr *User) string {
	return f.Token(usr, "refresh", time.Now().Add(24*time.Hour))
}

// Refreshes is the number of refresh requests received.
func (f *FakeAPI) Refreshes() int {
	return int(atomic.LoadInt32(&f.refreshes))
}

func (f *FakeAPI) Logins() int {
	return int(atomic.LoadInt32(&f.logins))
}

// FailRefresh makes every refresh request fail.
func (f *FakeAPI) FailRefresh(fail bool) {
	var v int32
	if fail {
		v = 1
	}
	atomic.StoreInt32(&f.failRefresh, v)
}

// RejectNext answers the next n authenticated requests with a 401, whatever their token.
func (f *FakeAPI) RejectNext(n int) {
	atomic.StoreInt32(&f.reject, int32(n))
}

// AuthHeaders lists the Authorization header of every private request, in order.
func (f *FakeAPI) AuthHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authLog...)
}

func (f *FakeAPI) recordAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		f.mu.Lock()
		f.authLog = append(f.authLog, ctx.Request().Header.Get(echo.HeaderAuthorization))
		f.mu.Unlock()
		return next(ctx)
	}
}

func (f *FakeAPI) rejectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		for {
			n := atomic.LoadInt32(&f.reject)
			if n <= 0 {
				return next(ctx)
			}
			if atomic.CompareAndSwapInt32(&f.reject, n, n-1) {
				return errInvalidToken
			}
		}
	}
}

func (f *FakeAPI) login(ctx echo.Context) error {
	atomic.AddInt32(&f.logins, 1)
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	f.mu.Lock()
	usr, ok := f.users[in.Email]
	f.mu.Unlock()
	if !ok || usr.password != in.Password {
		return errInvalidCredentials
	}
	return ctx.JSON(http.StatusOK, echo.Map{"access": f.AccessToken(usr), "refresh": f.RefreshToken(usr)})
}

func (f *FakeAPI) refresh(ctx echo.Context) error {
	atomic.AddInt32(&f.refreshes, 1)
	if atomic.LoadInt32(&f.failRefresh) == 1 {
		return errInvalidToken
	}
	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := ctx.Bind(&in); err != nil {
		return err
	}

	claims := new(refreshClaims)
	if _, err := jwt.ParseWithClaims(in.Refresh, claims, f.keyFunc); err != nil {
		return errInvalidToken
	}

	f.mu.Lock()
	var usr *User
	for _, u := range f.users {
		if u.ID == claims.UserID {
			usr = u
		}
	}
	f.mu.Unlock()
	if usr == nil {
		return errInvalidToken
	}
	return ctx.JSON(http.StatusOK, echo.Map{"access": f.AccessToken(usr)})
}

func (f *FakeAPI) contextUser(ctx echo.Context) (*User, error) {
	token, ok := ctx.Get("userToken").(*jwt.Token)
	if !ok {
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errInvalidToken
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == claims.UserID {
			return u, nil
		}
	}
	return nil, errInvalidToken
}

func (f *FakeAPI) me(ctx echo.Context) error {
	usr, err := f.contextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (f *FakeAPI) listSchools(ctx echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	search := strings.ToLower(ctx.QueryParam("search"))
	res := make([]echo.Map, 0, len(f.schools))
	for _, sch := range f.schools {
		if search != "" && !strings.Contains(strings.ToLower(sch.Name), search) {
			continue
		}
		res = append(res, echo.Map{"id": sch.ID, "name": sch.Name, "public_slug": sch.Slug, "is_active": true})
	}
	return ctx.JSON(http.StatusOK, res)
}

func (f *FakeAPI) deleteSchool(ctx echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for slug, sch := range f.schools {
		if sch.ID == ctx.Param("id") {
			delete(f.schools, slug)
			return ctx.NoContent(http.StatusNoContent)
		}
	}
	return errNotFound
}

// publicSchool resolves the school of a public route and checks its token.
func (f *FakeAPI) publicSchool(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		f.mu.Lock()
		sch, ok := f.schools[ctx.Param("slug")]
		f.mu.Unlock()
		if !ok {
			return errNotFound
		}
		if token := ctx.QueryParam("token"); token == "" || token != sch.Token {
			return errInvalidPublicToken
		}
		ctx.Set("school", sch)
		return next(ctx)
	}
}

func (f *FakeAPI) findDelivery(ctx echo.Context) (*Delivery, error) {
	sch := ctx.Get("school").(*School)
	id := ctx.QueryParam("delivery_id")
	if id == "" {
		if len(sch.Deliveries) == 0 {
			return nil, echo.NewHTTPError(http.StatusForbidden, "Nenhuma entrega habilitada para conferencia.")
		}
		return sch.Deliveries[len(sch.Deliveries)-1], nil
	}
	for _, d := range sch.Deliveries {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, errNotFound
}

func (f *FakeAPI) currentDelivery(ctx echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.findDelivery(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

func (f *FakeAPI) conferDelivery(ctx echo.Context) error {
	var in struct {
		Items []struct {
			ItemID           string  `json:"item_id"`
			ReceivedQuantity float64 `json:"received_quantity"`
			Note             string  `json:"note"`
		} `json:"items"`
		SenderSignatureData   string `json:"sender_signature_data"`
		SenderSignerName      string `json:"sender_signer_name"`
		ReceiverSignatureData string `json:"receiver_signature_data"`
		ReceiverSignerName    string `json:"receiver_signer_name"`
	}
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if ctx.QueryParam("delivery_id") == "" {
		return echo.NewHTTPError(http.StatusForbidden, "delivery_id obrigatorio para envio da conferencia.")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.findDelivery(ctx)
	if err != nil {
		return err
	}
	if d.Status == "CONFERRED" {
		return echo.NewHTTPError(http.StatusForbidden, "Conferencia ja enviada para esta entrega.")
	}
	if in.SenderSignatureData == "" || in.ReceiverSignatureData == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Assinaturas obrigatorias.")
	}
	if len(in.Items) != len(d.Items) {
		return echo.NewHTTPError(http.StatusBadRequest, "Todos os itens devem ser conferidos.")
	}

	byID := make(map[string]int, len(d.Items))
	for i, it := range d.Items {
		byID[it.ID] = i
	}
	for _, entry := range in.Items {
		i, ok := byID[entry.ItemID]
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "Item invalido informado.")
		}
		qty := strconv.FormatFloat(entry.ReceivedQuantity, 'f', 2, 64)
		d.Items[i].ReceivedQuantity = &qty
		d.Items[i].DivergenceNote = entry.Note
	}
	d.Status = "CONFERRED"
	d.SenderSignature, d.SenderSignedBy = in.SenderSignatureData, in.SenderSignerName
	d.ReceiverSignature, d.ReceiverSignedBy = in.ReceiverSignatureData, in.ReceiverSignerName
	return ctx.JSON(http.StatusOK, d)
}

func (f *FakeAPI) consumptionSupplies(ctx echo.Context) error {
	sch := ctx.Get("school").(*School)
	f.mu.Lock()
	defer f.mu.Unlock()
	return ctx.JSON(http.StatusOK, sch.Supplies)
}

func (f *FakeAPI) registerConsumption(ctx echo.Context) error {
	var in struct {
		Items []Consumed `json:"items"`
	}
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if len(in.Items) == 0 {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"items": []string{"Informe ao menos um item."}})
	}

	sch := ctx.Get("school").(*School)
	f.mu.Lock()
	defer f.mu.Unlock()
	known := make(map[string]bool, len(sch.Supplies))
	for _, s := range sch.Supplies {
		known[s.ID] = true
	}
	for _, it := range in.Items {
		if !known[it.Supply] {
			return echo.NewHTTPError(http.StatusForbidden, "Insumo invalido informado.")
		}
	}
	sch.Consumed = append(sch.Consumed, in.Items...)
	return ctx.JSON(http.StatusOK, echo.Map{"detail": "Consumo registrado com sucesso."})
}
