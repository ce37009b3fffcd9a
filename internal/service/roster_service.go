package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
	"github.com/noah-isme/community-events-api/pkg/export"
)

// Roster export formats.
const (
	RosterFormatJSON = "json"
	RosterFormatCSV  = "csv"
	RosterFormatPDF  = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// RosterFile is a rendered roster export.
type RosterFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RosterService builds event rosters for organizers.
type RosterService struct {
	events        eventStore
	registrations registrationStore
	waitlist      waitlistStore
	csv           csvRenderer
	pdf           pdfRenderer
	logger        *zap.Logger
}

// NewRosterService builds a RosterService.
func NewRosterService(events eventStore, registrations registrationStore, waitlist waitlistStore, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *RosterService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{events: events, registrations: registrations, waitlist: waitlist, csv: csv, pdf: pdf, logger: logger}
}

// Roster returns registered users and the waitlist in queue order.
func (s *RosterService) Roster(ctx context.Context, actor models.Actor, eventID string) (*dto.Roster, error) {
	if !actor.IsOrganizer() {
		return nil, appErrors.ErrForbidden
	}
	event, err := loadActiveEvent(ctx, s.events, nil, eventID)
	if err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListActive(ctx, nil, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	entries, err := s.waitlist.List(ctx, nil, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}

	roster := &dto.Roster{
		EventID:    event.ID,
		EventName:  event.ActivityGroupName,
		EventDate:  event.EventDate,
		Registered: make([]dto.RosterEntry, 0, len(regs)),
		Waitlist:   make([]dto.RosterEntry, 0, len(entries)),
	}
	for _, reg := range regs {
		roster.Registered = append(roster.Registered, dto.RosterEntry{UserID: reg.UserID, Status: string(reg.Status), Since: reg.CreatedAt})
	}
	for i, entry := range entries {
		roster.Waitlist = append(roster.Waitlist, dto.RosterEntry{
			UserID:   entry.UserID,
			Status:   string(entry.Status),
			Position: i + 1,
			Since:    entry.CreatedAt,
		})
	}
	return roster, nil
}

// Export renders the roster as CSV or PDF.
func (s *RosterService) Export(ctx context.Context, actor models.Actor, eventID, format string) (*RosterFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != RosterFormatCSV && format != RosterFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	roster, err := s.Roster(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	data := rosterDataset(roster)
	base := fmt.Sprintf("roster-%s-%s", eventID, roster.EventDate.Format("20060102"))
	switch format {
	case RosterFormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RosterFile{Filename: base + ".csv", ContentType: "text/csv", Content: content}, nil
	default:
		title := fmt.Sprintf("%s %s", roster.EventName, roster.EventDate.Format("2006-01-02"))
		content, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RosterFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: content}, nil
	}
}

func rosterDataset(roster *dto.Roster) export.Dataset {
	headers := []string{"user_id", "status", "position", "since"}
	rows := make([]map[string]string, 0, len(roster.Registered)+len(roster.Waitlist))
	for _, entry := range append(append([]dto.RosterEntry{}, roster.Registered...), roster.Waitlist...) {
		position := ""
		if entry.Position > 0 {
			position = strconv.Itoa(entry.Position)
		}
		rows = append(rows, map[string]string{
			"user_id":  entry.UserID,
			"status":   entry.Status,
			"position": position,
			"since":    entry.Since.UTC().Format(time.RFC3339),
		})
	}
	labels := map[string]string{"user_id": "User", "status": "Status", "position": "Queue position", "since": "Since"}
	return export.Dataset{Headers: headers, Labels: labels, Rows: rows}
}
