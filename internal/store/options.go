package store

import (
	"time"

	"github.com/dataforge/ingest/internal/store/model"
	"gorm.io/gorm"
)

type QueryFn func(tx *gorm.DB) *gorm.DB

type RunQueryFilter struct {
	QueryFn []QueryFn
}

func NewRunQueryFilter() *RunQueryFilter {
	return &RunQueryFilter{}
}

func (f *RunQueryFilter) ByPipelineName(name string) *RunQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("pipeline_name = ?", name)
	})
	return f
}

func (f *RunQueryFilter) BySourceType(sourceType model.SourceType) *RunQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("source_type = ?", sourceType)
	})
	return f
}

func (f *RunQueryFilter) ByStatus(status model.RunStatus) *RunQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return f
}

func (f *RunQueryFilter) StartedAfter(t time.Time) *RunQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("start_time >= ?", t)
	})
	return f
}

func (f *RunQueryFilter) Limit(n int) *RunQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(n)
	})
	return f
}
