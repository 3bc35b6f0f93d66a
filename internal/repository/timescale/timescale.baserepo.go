package timescale

import (
	"context"

	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/errors"
)

type TimeScaleBaseRepo struct {
	db database.DB
}

func (r *TimeScaleBaseRepo) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return errors.FromDB("failed to ping database", err)
	}
	return nil
}
func (r *TimeScaleBaseRepo) Close() error {
	if err := r.db.Close(); err != nil {
		return errors.NewDatabaseError("failed to close database", err)
	}
	return nil
}
