package billing

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type gormParametersRepository struct {
	db *gorm.DB
}

func NewGormParametersRepository(db *gorm.DB) ParametersRepository {
	return &gormParametersRepository{db: db}
}

func (r *gormParametersRepository) ListActive(ctx context.Context, period string) ([]*ClientParameters, error) {
	// Effective-date filtering uses the first day of the reference month.
	firstDay := period + "-01"
	var params []*ClientParameters
	err := r.db.WithContext(ctx).
		Where("active").
		Where("effective_from <= ?", firstDay).
		Where("effective_to IS NULL OR effective_to >= ?", firstDay).
		Order("client_name").
		Find(&params).Error
	if err != nil {
		return nil, fmt.Errorf("listing client parameters: %w", err)
	}
	return params, nil
}

func (r *gormParametersRepository) PricesForClient(ctx context.Context, clientName string) ([]*PriceEntry, error) {
	var prices []*PriceEntry
	err := r.db.WithContext(ctx).
		Where("client_name = ?", clientName).
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("loading price table for %s: %w", clientName, err)
	}
	return prices, nil
}

type gormDemonstrativoRepository struct {
	db *gorm.DB
}

func NewGormDemonstrativoRepository(db *gorm.DB) DemonstrativoRepository {
	return &gormDemonstrativoRepository{db: db}
}

func (r *gormDemonstrativoRepository) Create(ctx context.Context, d *Demonstrativo) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("inserting demonstrativo: %w", err)
	}
	return nil
}

func (r *gormDemonstrativoRepository) GetByClientPeriod(ctx context.Context, clientName, period string) (*Demonstrativo, error) {
	var d Demonstrativo
	err := r.db.WithContext(ctx).
		Where("client_name = ? AND periodo_referencia = ?", clientName, period).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDemonstrativoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading demonstrativo: %w", err)
	}
	return &d, nil
}

func (r *gormDemonstrativoRepository) ListByPeriod(ctx context.Context, period string) ([]*Demonstrativo, error) {
	var ds []*Demonstrativo
	err := r.db.WithContext(ctx).
		Where("periodo_referencia = ?", period).
		Order("client_name").
		Find(&ds).Error
	if err != nil {
		return nil, fmt.Errorf("listing demonstrativos for %s: %w", period, err)
	}
	return ds, nil
}

func (r *gormDemonstrativoRepository) DeleteByClientPeriod(ctx context.Context, clientName, period string) error {
	err := r.db.WithContext(ctx).
		Where("client_name = ? AND periodo_referencia = ?", clientName, period).
		Delete(&Demonstrativo{}).Error
	if err != nil {
		return fmt.Errorf("deleting demonstrativo: %w", err)
	}
	return nil
}
