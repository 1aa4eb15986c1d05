package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

const (
	lowStockAlertJob = "low-stock-alert"
	maxLowStockLines = 30
)

type lowStockReader interface {
	ListLowStock(ctx context.Context, threshold int64) ([]models.Product, error)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	Catalog   lowStockReader
	Notifier  Notifier
	Marker    Marker
	Location  *time.Location
	Threshold int64
}

// NewLowStockJob builds the job that lists nearly sold-out products once a day.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Marker == nil {
		return nil, fmt.Errorf("marker required")
	}
	if params.Threshold < 0 {
		return nil, fmt.Errorf("threshold must be non-negative")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &lowStockJob{
		logg:      params.Logger,
		catalog:   params.Catalog,
		notifier:  params.Notifier,
		marker:    params.Marker,
		loc:       loc,
		threshold: params.Threshold,
		now:       time.Now,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	catalog   lowStockReader
	notifier  Notifier
	marker    Marker
	loc       *time.Location
	threshold int64
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return lowStockAlertJob }

func (j *lowStockJob) Run(ctx context.Context) error {
	products, err := j.catalog.ListLowStock(ctx, j.threshold)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	key := fmt.Sprintf("%s:%s", lowStockAlertJob, j.now().In(j.loc).Format("2006-01-02"))
	claimed, err := j.marker.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if err := j.notifier.Notify(ctx, lowStockText(products)); err != nil {
		if forgetErr := j.marker.Forget(ctx, key); forgetErr != nil {
			j.logg.Error(ctx, "failed to release low stock marker", forgetErr)
		}
		return fmt.Errorf("send low stock alert: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "products", len(products)), "low stock alert sent")
	return nil
}

func lowStockText(products []models.Product) string {
	var b strings.Builder
	b.WriteString("⚠️ Kam qolgan mahsulotlar:")
	for i, p := range products {
		if i == maxLowStockLines {
			fmt.Fprintf(&b, "\n… yana %d ta mahsulot", len(products)-maxLowStockLines)
			break
		}
		fmt.Fprintf(&b, "\n#%d %s — %d dona", p.ID, p.Name, p.Qty)
	}
	return b.String()
}
