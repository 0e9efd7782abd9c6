package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/export"
)

type consistencyRepository interface {
	RelationshipClasses() []models.RelationshipClass
	FindOrphans(ctx context.Context, relation models.RelationshipClass) ([]models.ConsistencyFinding, error)
}

type tabularExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ConsistencyService runs read-only scans over denormalised scope columns and
// reports rows whose referenced relation disagrees on organization or term.
// It never mutates data; remediation is an operator decision.
type ConsistencyService struct {
	repo   consistencyRepository
	csv    tabularExporter
	pdf    pdfExporter
	logger *zap.Logger

	orphanGauge   *prometheus.GaugeVec
	sweepDuration prometheus.Histogram
}

// NewConsistencyService creates a consistency service. The registerer may be
// nil, in which case metrics are collected but not exported.
func NewConsistencyService(repo consistencyRepository, csv tabularExporter, pdf pdfExporter, reg prometheus.Registerer, logger *zap.Logger) *ConsistencyService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ConsistencyService{
		repo:   repo,
		csv:    csv,
		pdf:    pdf,
		logger: logger,
		orphanGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tenancy_consistency_orphans",
			Help: "Orphaned records found by the last consistency scan, per relationship class.",
		}, []string{"relationship"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tenancy_consistency_sweep_seconds",
			Help:    "Duration of consistency sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(s.orphanGauge, s.sweepDuration)
	}
	return s
}

// Run scans every relationship class and assembles a report. A failing probe
// aborts the run; a partial report would hide orphans behind a green result.
func (s *ConsistencyService) Run(ctx context.Context) (*models.ConsistencyReport, error) {
	start := time.Now()

	report := &models.ConsistencyReport{
		GeneratedAt: start.UTC(),
		Findings:    make(map[models.RelationshipClass][]models.ConsistencyFinding),
	}

	for _, relation := range s.repo.RelationshipClasses() {
		findings, err := s.repo.FindOrphans(ctx, relation)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("consistency probe %s failed", relation))
		}

		report.Scanned = append(report.Scanned, relation)
		if len(findings) > 0 {
			report.Findings[relation] = findings
		}
		report.Total += len(findings)
		s.orphanGauge.WithLabelValues(string(relation)).Set(float64(len(findings)))
	}

	s.sweepDuration.Observe(time.Since(start).Seconds())

	if report.Total > 0 {
		s.logger.Warn("consistency scan found orphaned records",
			zap.Int("total", report.Total),
			zap.Int("relationships", len(report.Findings)))
	} else {
		s.logger.Info("consistency scan clean",
			zap.Int("relationships_scanned", len(report.Scanned)))
	}

	return report, nil
}

// Dataset flattens a report into tabular form for export.
func (s *ConsistencyService) Dataset(report *models.ConsistencyReport) export.Dataset {
	data := export.Dataset{
		Headers: []string{"relationship", "record_id", "related_id", "record_org", "related_org", "record_term", "related_term"},
	}
	for _, relation := range report.Scanned {
		for _, f := range report.Findings[relation] {
			data.Rows = append(data.Rows, map[string]string{
				"relationship": string(relation),
				"record_id":    f.RecordID,
				"related_id":   f.RelatedID,
				"record_org":   f.RecordOrg,
				"related_org":  f.RelatedOrg,
				"record_term":  f.RecordTerm,
				"related_term": f.RelatedTerm,
			})
		}
	}
	return data
}

// ExportCSV renders a report as CSV bytes.
func (s *ConsistencyService) ExportCSV(report *models.ConsistencyReport) ([]byte, error) {
	out, err := s.csv.Render(s.Dataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render consistency csv")
	}
	return out, nil
}

// ExportPDF renders a report as a PDF document.
func (s *ConsistencyService) ExportPDF(report *models.ConsistencyReport) ([]byte, error) {
	title := fmt.Sprintf("Consistency Report %s", report.GeneratedAt.Format("2006-01-02 15:04"))
	out, err := s.pdf.Render(s.Dataset(report), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render consistency pdf")
	}
	return out, nil
}
