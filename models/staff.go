package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
)

type Staff struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Store         string          `gorm:"index;size:64;not null;uniqueIndex:idx_staff_store_name,priority:1" json:"store"`
	Name          string          `gorm:"size:150;not null;uniqueIndex:idx_staff_store_name,priority:2" json:"name" binding:"required"`
	Phone         string          `gorm:"size:30" json:"phone"`
	MonthlySalary decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_salary"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StaffPayment is the denormalized salary record keyed to staff and pay
// period. It is written after the expense posting commits; the posting
// itself is the financial source of truth.
type StaffPayment struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Store     string          `gorm:"index;size:64;not null" json:"store"`
	StaffId   int             `gorm:"index;not null" json:"staff_id"`
	Period    time.Time       `gorm:"index;not null" json:"period"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`
	Status    string          `gorm:"size:20;default:'paid'" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewStaff struct {
	Name          string          `json:"name" binding:"required"`
	Phone         string          `json:"phone"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
}

func CreateStaff(ctx context.Context, input *NewStaff) (*Staff, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	if err := utils.ValidateUnique[Staff](ctx, store, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("phone", err.Error())
		}
	}
	if input.MonthlySalary.IsNegative() {
		return nil, utils.NewValidationError("monthly_salary", "must not be negative")
	}

	staff := Staff{
		Store:         store,
		Name:          input.Name,
		Phone:         input.Phone,
		MonthlySalary: input.MonthlySalary,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&staff).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func GetStaff(ctx context.Context, id int) (*Staff, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	return utils.FetchModel[Staff](ctx, store, id)
}

func GetStaffList(ctx context.Context) ([]*Staff, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var results []*Staff
	err := db.WithContext(ctx).Where("store = ?", store).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetStaffPayments(ctx context.Context, staffId int) ([]*StaffPayment, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var results []*StaffPayment
	err := db.WithContext(ctx).Where("store = ? AND staff_id = ?", store, staffId).
		Order("paid_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
