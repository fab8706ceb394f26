package apisvc

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Quantity is a decimal amount. The API sends decimals as JSON strings ("12.50") and accepts numbers.
type Quantity float64

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*q = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing quantity %q", s)
		}
		*q = Quantity(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*q = Quantity(f)
	return nil
}

// delivery statuses
const (
	DeliveryDraft     = "DRAFT"
	DeliverySent      = "SENT"
	DeliveryConferred = "CONFERRED"
)

// stock movement types
const (
	MovementIn  = "IN"
	MovementOut = "OUT"
)

type (
	Credentials struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}

	Me struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		IsStaff   bool   `json:"is_staff"`
	}

	School struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Address     string `json:"address"`
		City        string `json:"city"`
		IsActive    bool   `json:"is_active"`
		PublicSlug  string `json:"public_slug"`
		PublicToken string `json:"public_token,omitempty"`
	}

	SchoolInput struct {
		Name     string `json:"name,omitempty"`
		Address  string `json:"address,omitempty"`
		City     string `json:"city,omitempty"`
		IsActive *bool  `json:"is_active,omitempty"`
	}

	PublicLink struct {
		Slug  string `json:"slug"`
		Token string `json:"token"`
		URL   string `json:"url"`
	}

	Supply struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Category string   `json:"category"`
		Unit     string   `json:"unit"`
		MinStock Quantity `json:"min_stock"`
		IsActive bool     `json:"is_active"`
	}

	SupplyInput struct {
		Name     string   `json:"name,omitempty"`
		Category string   `json:"category,omitempty"`
		Unit     string   `json:"unit,omitempty"`
		MinStock Quantity `json:"min_stock,omitempty"`
		IsActive *bool    `json:"is_active,omitempty"`
	}

	StockBalance struct {
		Supply     Supply   `json:"supply"`
		Quantity   Quantity `json:"quantity"`
		IsLowStock bool     `json:"is_low_stock"`
	}

	StockMovementInput struct {
		Supply       string   `json:"supply"`
		School       string   `json:"school,omitempty"`
		Type         string   `json:"type"`
		Quantity     Quantity `json:"quantity"`
		MovementDate string   `json:"movement_date"`
		Note         string   `json:"note,omitempty"`
	}

	StockMovement struct {
		ID           string   `json:"id"`
		Supply       string   `json:"supply"`
		School       string   `json:"school"`
		Type         string   `json:"type"`
		Quantity     Quantity `json:"quantity"`
		MovementDate string   `json:"movement_date"`
		Note         string   `json:"note"`
	}

	DeliveryItem struct {
		ID               string    `json:"id"`
		Supply           string    `json:"supply,omitempty"`
		SupplyName       string    `json:"supply_name"`
		SupplyUnit       string    `json:"supply_unit"`
		PlannedQuantity  Quantity  `json:"planned_quantity"`
		ReceivedQuantity *Quantity `json:"received_quantity"`
		DivergenceNote   string    `json:"divergence_note"`
	}

	Delivery struct {
		ID                    string         `json:"id"`
		School                string         `json:"school,omitempty"`
		SchoolName            string         `json:"school_name"`
		DeliveryDate          string         `json:"delivery_date"`
		SenderName            string         `json:"sender_name"`
		SenderPosition        string         `json:"sender_position"`
		ResponsibleName       string         `json:"responsible_name,omitempty"`
		ResponsiblePhone      string         `json:"responsible_phone,omitempty"`
		Notes                 string         `json:"notes"`
		Status                string         `json:"status"`
		ConferenceEnabled     bool           `json:"conference_enabled,omitempty"`
		ConferenceSubmittedAt string         `json:"conference_submitted_at"`
		SenderSignature       string         `json:"sender_signature"`
		SenderSignedBy        string         `json:"sender_signed_by"`
		ReceiverSignature     string         `json:"receiver_signature"`
		ReceiverSignedBy      string         `json:"receiver_signed_by"`
		Items                 []DeliveryItem `json:"items"`
	}

	NewDeliveryItem struct {
		Supply          string   `json:"supply"`
		PlannedQuantity Quantity `json:"planned_quantity"`
	}

	DeliveryInput struct {
		School           string            `json:"school"`
		DeliveryDate     string            `json:"delivery_date"`
		ResponsibleName  string            `json:"responsible_name,omitempty"`
		ResponsiblePhone string            `json:"responsible_phone,omitempty"`
		Notes            string            `json:"notes,omitempty"`
		Items            []NewDeliveryItem `json:"items"`
	}

	ConferenceItem struct {
		ItemID           string   `json:"item_id" validate:"required"`
		ReceivedQuantity Quantity `json:"received_quantity" validate:"gte=0"`
		Note             string   `json:"note"`
	}

	// ConferenceSubmission is the payload of a delivery conference.
	ConferenceSubmission struct {
		Items                 []ConferenceItem `json:"items" validate:"dive"`
		SenderSignatureData   string           `json:"sender_signature_data" validate:"required,signature"`
		SenderSignerName      string           `json:"sender_signer_name" validate:"required"`
		ReceiverSignatureData string           `json:"receiver_signature_data" validate:"required,signature"`
		ReceiverSignerName    string           `json:"receiver_signer_name" validate:"required"`
	}

	ConsumptionItem struct {
		Supply       string   `json:"supply" validate:"required"`
		Quantity     Quantity `json:"quantity" validate:"gt=0"`
		MovementDate string   `json:"movement_date" validate:"required,isodate"`
		Note         string   `json:"note,omitempty"`
	}

	ConsumptionSubmission struct {
		Items []ConsumptionItem `json:"items" validate:"required,min=1,dive"`
	}

	MenuItem struct {
		ID          string `json:"id,omitempty"`
		DayOfWeek   string `json:"day_of_week"`
		MealType    string `json:"meal_type"`
		MealName    string `json:"meal_name,omitempty"`
		PortionText string `json:"portion_text,omitempty"`
		ImageURL    string `json:"image_url,omitempty"`
		ImageData   string `json:"image_data,omitempty"`
		Description string `json:"description"`
	}

	Menu struct {
		ID          string     `json:"id"`
		School      string     `json:"school"`
		SchoolName  string     `json:"school_name"`
		WeekStart   string     `json:"week_start"`
		WeekEnd     string     `json:"week_end"`
		Status      string     `json:"status"`
		Notes       string     `json:"notes"`
		PublishedAt string     `json:"published_at"`
		Items       []MenuItem `json:"items"`
	}

	MenuInput struct {
		School    string `json:"school,omitempty"`
		WeekStart string `json:"week_start,omitempty"`
		WeekEnd   string `json:"week_end,omitempty"`
		Status    string `json:"status,omitempty"`
		Notes     string `json:"notes,omitempty"`
	}

	Dashboard struct {
		SchoolsTotal   int `json:"schools_total"`
		SchoolsActive  int `json:"schools_active"`
		SuppliesTotal  int `json:"supplies_total"`
		LowStock       int `json:"low_stock"`
		MenusPublished int `json:"menus_published"`
	}

	SeriesPoint struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	DashboardSeries struct {
		ConsumptionByMonth []SeriesPoint `json:"consumption_by_month"`
	}
)
