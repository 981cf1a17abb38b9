package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
	"github.com/noah-isme/achievement-registry-api/internal/verification"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
	"github.com/noah-isme/achievement-registry-api/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type portfolioSource interface {
	ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error)
	Summary(ctx context.Context, studentID string) (*models.AchievementSummary, bool, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportFile is a rendered portfolio ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a student's achievement portfolio.
type ExportService struct {
	source    portfolioSource
	renderers map[ExportFormat]renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(source portfolioSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source: source,
		renderers: map[ExportFormat]renderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Portfolio renders every achievement of studentID. Students may export their
// own portfolio; admins may export any.
func (s *ExportService) Portfolio(ctx context.Context, actor models.Profile, studentID string, format ExportFormat) (*ExportFile, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "studentId is required", map[string]interface{}{"studentId": "required"})
	}
	if actor.StudentIDValue() != studentID && !policy.CanVerify(actor) {
		return nil, mapVerificationError(&verification.PermissionError{
			Capability: policy.CapabilityStudent,
			Role:       actor.Role,
			Reason:     "portfolio export is limited to the owning student",
		})
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "unsupported export format", map[string]interface{}{"format": format})
	}

	var (
		items   []models.Achievement
		summary *models.AchievementSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.source.ListByStudentID(gctx, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		summary, _, err = s.source.Summary(gctx, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.FromError(err)
	}

	payload, err := r.Render(portfolioDataset(studentID, items, summary, s.now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("portfolio exported",
		zap.String("student_id", studentID),
		zap.String("format", string(format)),
		zap.Int("rows", len(items)))

	return &ExportFile{
		Filename:    fmt.Sprintf("portfolio_%s_%s.%s", sanitizeFilename(studentID), s.now().Format("20060102"), format),
		ContentType: r.ContentType(),
		Data:        payload,
	}, nil
}

func portfolioDataset(studentID string, items []models.Achievement, summary *models.AchievementSummary, generated time.Time) export.Dataset {
	data := export.Dataset{
		Title:   "Achievement portfolio " + studentID,
		Headers: []string{"ID", "Title", "Category", "Date", "Status", "Verified By", "Links"},
		Widths:  []float64{2, 4, 1.5, 1.2, 1.2, 1.8, 3},
		Rows:    make([]map[string]string, 0, len(items)),
	}
	if summary != nil {
		data.Notes = append(data.Notes, fmt.Sprintf("Total %d, verified %d, pending %d, rejected %d",
			summary.Total, summary.Verified, summary.Pending, summary.Rejected))
	}
	data.Notes = append(data.Notes, "Generated "+generated.Format(time.RFC3339))

	for _, a := range items {
		var verifier string
		if latest, ok := a.VerificationHistory.Latest(); ok {
			verifier = latest.Verifier
		}
		data.Rows = append(data.Rows, map[string]string{
			"ID":          a.AchievementID,
			"Title":       a.Title,
			"Category":    string(a.Category),
			"Date":        a.Date.Format("2006-01-02"),
			"Status":      string(a.Status),
			"Verified By": verifier,
			"Links":       strings.Join(a.Links, " "),
		})
	}
	return data
}

func sanitizeFilename(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}
