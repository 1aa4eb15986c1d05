package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/reports"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

const (
	dailySalesReportJob = "daily-sales-report"
	reportTopN          = 20
)

// Notifier delivers text to the shop's admin chats.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type periodReporter interface {
	For(ctx context.Context, period enums.ReportPeriod, at time.Time) (*reports.Summary, error)
}

// SalesReportJobParams configure the daily sales report.
type SalesReportJobParams struct {
	Logger   *logger.Logger
	Reports  periodReporter
	Notifier Notifier
	Marker   Marker
	Location *time.Location
	// Hour is the store-local hour from which yesterday's report is due.
	Hour int
}

// NewSalesReportJob builds the job that sends yesterday's summary once a day.
func NewSalesReportJob(params SalesReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reports == nil {
		return nil, fmt.Errorf("reports service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Marker == nil {
		return nil, fmt.Errorf("marker required")
	}
	if params.Hour < 0 || params.Hour > 23 {
		return nil, fmt.Errorf("report hour must be 0-23, got %d", params.Hour)
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &salesReportJob{
		logg:     params.Logger,
		reports:  params.Reports,
		notifier: params.Notifier,
		marker:   params.Marker,
		loc:      loc,
		hour:     params.Hour,
		now:      time.Now,
	}, nil
}

type salesReportJob struct {
	logg     *logger.Logger
	reports  periodReporter
	notifier Notifier
	marker   Marker
	loc      *time.Location
	hour     int
	now      func() time.Time
}

func (j *salesReportJob) Name() string { return dailySalesReportJob }

func (j *salesReportJob) Run(ctx context.Context) error {
	now := j.now().In(j.loc)
	if now.Hour() < j.hour {
		return nil
	}
	yesterday := now.AddDate(0, 0, -1)
	key := fmt.Sprintf("%s:%s", dailySalesReportJob, yesterday.Format("2006-01-02"))

	claimed, err := j.marker.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	summary, err := j.reports.For(ctx, enums.ReportPeriodDaily, yesterday)
	if err == nil {
		err = j.notifier.Notify(ctx, reports.FormatSummary(summary, reportTopN))
	}
	if err != nil {
		if forgetErr := j.marker.Forget(ctx, key); forgetErr != nil {
			j.logg.Error(ctx, "failed to release report marker", forgetErr)
		}
		return fmt.Errorf("send daily report: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"report_date": yesterday.Format("2006-01-02"),
		"sales":       summary.SalesCount,
		"revenue":     summary.Revenue,
	}), "daily sales report sent")
	return nil
}
