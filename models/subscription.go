package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type Subscription struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	BusinessId           string          `gorm:"size:64;index;not null" json:"business_id"`
	Name                 string          `gorm:"size:255;not null" json:"name"`
	Category             string          `gorm:"size:100;index" json:"category"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Recurrence           Recurrence      `gorm:"type:enum('one_time','monthly','quarterly','yearly','custom');not null" json:"recurrence"`
	CustomIntervalMonths int             `gorm:"not null;default:0" json:"custom_interval_months"`
	StartDate            time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate              *time.Time      `gorm:"type:date" json:"end_date"`
	Description          string          `gorm:"type:text" json:"description"`
	Vendor               string          `gorm:"size:255" json:"vendor"`
	IsActive             *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSubscription struct {
	Name                 string       `json:"name" validate:"required,max=255"`
	Category             string       `json:"category" validate:"max=100"`
	Amount               utils.Amount `json:"amount"`
	Recurrence           string       `json:"recurrence" validate:"required"`
	CustomIntervalMonths int          `json:"custom_interval_months" validate:"gte=0,lte=120"`
	StartDate            string       `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate              *string      `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Description          string       `json:"description"`
	Vendor               string       `json:"vendor" validate:"max=255"`
	IsActive             *bool        `json:"is_active"`
}

func (s Subscription) GetBusinessId() string {
	return s.BusinessId
}

// Active treats a missing flag as active.
func (s Subscription) Active() bool {
	return utils.BoolOr(s.IsActive, true)
}

// parsed holds the normalized values of a NewSubscription.
type parsedSubscription struct {
	recurrence Recurrence
	startDate  time.Time
	endDate    *time.Time
}

func (input *NewSubscription) validate() (*parsedSubscription, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, invalidInput(err)
	}
	if !input.Amount.IsPositive() {
		return nil, invalidInput(errors.New("amount must be greater than 0"))
	}
	recurrence, err := ParseRecurrence(input.Recurrence)
	if err != nil {
		return nil, invalidInput(err)
	}
	if input.CustomIntervalMonths > 0 && recurrence != RecurrenceCustom {
		return nil, invalidInput(errors.New("custom_interval_months is only allowed for custom recurrence"))
	}
	startDate, err := time.Parse(dateLayout, input.StartDate)
	if err != nil {
		return nil, invalidInput(err)
	}
	p := &parsedSubscription{recurrence: recurrence, startDate: startDate}
	if input.EndDate != nil && strings.TrimSpace(*input.EndDate) != "" {
		endDate, err := time.Parse(dateLayout, *input.EndDate)
		if err != nil {
			return nil, invalidInput(err)
		}
		if endDate.Before(startDate) {
			return nil, invalidInput(errors.New("end_date must not be before start_date"))
		}
		p.endDate = &endDate
	}
	return p, nil
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", utils.ErrorInvalidInput, err)
}

func CreateSubscription(ctx context.Context, input *NewSubscription) (*Subscription, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	p, err := input.validate()
	if err != nil {
		return nil, err
	}

	isActive := utils.BoolOr(input.IsActive, true)
	sub := Subscription{
		BusinessId:           businessId,
		Name:                 strings.TrimSpace(input.Name),
		Category:             input.Category,
		Amount:               input.Amount.Decimal,
		Recurrence:           p.recurrence,
		CustomIntervalMonths: input.CustomIntervalMonths,
		StartDate:            p.startDate,
		EndDate:              p.endDate,
		Description:          input.Description,
		Vendor:               input.Vendor,
		IsActive:             &isActive,
	}
	if err := dbFromContext(ctx).Create(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscription leaves existing projection rows alone; their amounts
// are the declaration made when each row was created.
func UpdateSubscription(ctx context.Context, id int, input *NewSubscription) (*Subscription, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	p, err := input.validate()
	if err != nil {
		return nil, err
	}
	sub, err := fetchModel[Subscription](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	isActive := utils.BoolOr(input.IsActive, sub.Active())
	err = dbFromContext(ctx).Model(sub).
		Select("name", "category", "amount", "recurrence", "custom_interval_months", "start_date", "end_date", "description", "vendor", "is_active").
		Updates(Subscription{
			Name:                 strings.TrimSpace(input.Name),
			Category:             input.Category,
			Amount:               input.Amount.Decimal,
			Recurrence:           p.recurrence,
			CustomIntervalMonths: input.CustomIntervalMonths,
			StartDate:            p.startDate,
			EndDate:              p.endDate,
			Description:          input.Description,
			Vendor:               input.Vendor,
			IsActive:             &isActive,
		}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Subscription](id); err != nil {
		return nil, err
	}
	return fetchModel[Subscription](ctx, businessId, id)
}

// DeleteSubscription removes the subscription with its projection rows and
// their ledger entries. Subscriptions with recorded payments must be
// deactivated instead.
func DeleteSubscription(ctx context.Context, id int) (*Subscription, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := fetchModel[Subscription](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	err = RunInTx(ctx, func(ctx context.Context) error {
		tx := dbFromContext(ctx)
		entryIds := tx.Model(&Entry{}).Select("id").
			Where("business_id = ? AND entry_type = ? AND reference_id = ?", businessId, EntryTypeSubscriptionPayment, id)
		var paymentCount int64
		if err := tx.Model(&Payment{}).Where("entry_id IN (?)", entryIds).Count(&paymentCount).Error; err != nil {
			return err
		}
		if paymentCount > 0 {
			return invalidInput(errors.New("subscription has recorded payments; deactivate it instead"))
		}
		if err := tx.Where("business_id = ? AND entry_type = ? AND reference_id = ?", businessId, EntryTypeSubscriptionPayment, id).
			Delete(&Entry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ? AND subscription_id = ?", businessId, id).
			Delete(&SubscriptionProjectionEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(sub).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Subscription](id); err != nil {
		return nil, err
	}
	return sub, nil
}

func GetSubscription(ctx context.Context, id int) (*Subscription, error) {
	return GetResource[Subscription](ctx, id)
}

type SubscriptionFilter struct {
	Category *string
	IsActive *bool
}

func ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]*Subscription, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	q := dbFromContext(ctx).Where("business_id = ?", businessId)
	if filter.Category != nil && *filter.Category != "" {
		q = q.Where("category = ?", *filter.Category)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	var results []*Subscription
	if err := q.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
