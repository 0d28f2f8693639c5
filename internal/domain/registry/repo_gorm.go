package registry

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Catalog:     make(map[string]CatalogEntry),
		Aliases:     make(map[AliasKind]map[string]string),
		ValueByExam: make(map[string]float64),
		Denied:      make(map[string]bool),
		SplitRules:  make(map[string][]SplitTarget),
	}

	var catalog []CatalogEntry
	if err := r.db.WithContext(ctx).Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("%w: exam catalog: %v", ErrSnapshotFailed, err)
	}
	for _, e := range catalog {
		snap.Catalog[NormalizeKey(e.ExamName)] = e
	}

	var aliases []Alias
	if err := r.db.WithContext(ctx).Find(&aliases).Error; err != nil {
		return nil, fmt.Errorf("%w: aliases: %v", ErrSnapshotFailed, err)
	}
	for _, a := range aliases {
		m := snap.Aliases[a.Kind]
		if m == nil {
			m = make(map[string]string)
			snap.Aliases[a.Kind] = m
		}
		m[NormalizeKey(a.From)] = a.To
	}

	var values []ValueBackfill
	if err := r.db.WithContext(ctx).Find(&values).Error; err != nil {
		return nil, fmt.Errorf("%w: value backfills: %v", ErrSnapshotFailed, err)
	}
	for _, v := range values {
		snap.ValueByExam[NormalizeKey(v.ExamName)] = v.Quantity
	}

	var denied []DeniedClient
	if err := r.db.WithContext(ctx).Find(&denied).Error; err != nil {
		return nil, fmt.Errorf("%w: denied clients: %v", ErrSnapshotFailed, err)
	}
	for _, d := range denied {
		snap.Denied[NormalizeKey(d.ClientName)] = true
	}

	var splits []SplitRule
	if err := r.db.WithContext(ctx).Where("active").Find(&splits).Error; err != nil {
		return nil, fmt.Errorf("%w: split rules: %v", ErrSnapshotFailed, err)
	}
	for _, s := range splits {
		key := NormalizeKey(s.CompositeExamName)
		snap.SplitRules[key] = append(snap.SplitRules[key], SplitTarget{
			ExamName: s.TargetExamName,
			Category: s.TargetCategory,
		})
	}

	return snap, nil
}
