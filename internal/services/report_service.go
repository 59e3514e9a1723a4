package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"

	"gorm.io/gorm"
)

// maxReportDays bounds the range of a single report.
const maxReportDays = 366

// occupyingStates are the reservations that held their slot.
var occupyingStates = []models.ReservationState{
	models.StateActive,
	models.StateInProgress,
	models.StateFinished,
	models.StatePendingPayment,
}

// ReportService aggregates revenue and occupancy per sport and local day.
type ReportService struct {
	*env
}

// DayReport holds one local day. Every sport seen in the range has an entry,
// zero when nothing happened that day.
type DayReport struct {
	Date         string             `json:"date"`
	Revenue      map[string]float64 `json:"revenue"`
	RevenueTotal float64            `json:"revenue_total"`
	Occupancy    map[string]int64   `json:"occupancy"`
}

type DailyReport struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Sports []string    `json:"sports"`
	Days   []DayReport `json:"days"`
}

type revenueRow struct {
	Day    string
	Sport  string
	Amount float64
}

type occupancyRow struct {
	Day   string
	Sport string
	Slots int64
}

// Daily reports, for each local day in [from, to], the non-refunded payments
// and the occupied slots per sport. from after to yields an empty report.
func (s *ReportService) Daily(ctx context.Context, from, to string, sportID *uint) (*DailyReport, error) {
	start, _, err := s.cal.DayBounds(from)
	if err != nil {
		return nil, validationError("invalid from date %q, expected YYYY-MM-DD", from)
	}
	last, end, err := s.cal.DayBounds(to)
	if err != nil {
		return nil, validationError("invalid to date %q, expected YYYY-MM-DD", to)
	}
	report := &DailyReport{From: from, To: to, Sports: []string{}, Days: []DayReport{}}
	if start.After(last) {
		return report, nil
	}
	if days := s.cal.DaysBetween(start, last) + 1; days > maxReportDays {
		return nil, validationError("report range is limited to %d days", maxReportDays)
	}

	dayExpr, err := localDayExpr(s.db, s.cal)
	if err != nil {
		return nil, err
	}

	var revenue []revenueRow
	q := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select(fmt.Sprintf("%s AS day, sports.name AS sport, SUM(payments.amount) AS amount", dayExpr("payments.created_at"))).
		Joins("JOIN reservations ON reservations.id = payments.reservation_id").
		Joins("JOIN facilities ON facilities.id = reservations.facility_id").
		Joins("JOIN sports ON sports.id = facilities.sport_id").
		Where("payments.refunded = ?", false).
		Where("payments.created_at >= ? AND payments.created_at < ?", start.UTC(), end.UTC())
	if sportID != nil {
		q = q.Where("sports.id = ?", *sportID)
	}
	if err := q.Group("day, sports.name").Order("day, sports.name").Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("aggregate revenue: %w", err)
	}

	var occupancy []occupancyRow
	q = s.db.WithContext(ctx).Model(&models.Reservation{}).
		Select(fmt.Sprintf("%s AS day, sports.name AS sport, COUNT(*) AS slots", dayExpr("reservations.slot_start"))).
		Joins("JOIN facilities ON facilities.id = reservations.facility_id").
		Joins("JOIN sports ON sports.id = facilities.sport_id").
		Where("reservations.state IN ?", occupyingStates).
		Where("reservations.slot_start >= ? AND reservations.slot_start < ?", start.UTC(), end.UTC())
	if sportID != nil {
		q = q.Where("sports.id = ?", *sportID)
	}
	if err := q.Group("day, sports.name").Order("day, sports.name").Scan(&occupancy).Error; err != nil {
		return nil, fmt.Errorf("aggregate occupancy: %w", err)
	}

	seen := map[string]bool{}
	for _, r := range revenue {
		seen[r.Sport] = true
	}
	for _, r := range occupancy {
		seen[r.Sport] = true
	}
	for sport := range seen {
		report.Sports = append(report.Sports, sport)
	}
	sort.Strings(report.Sports)

	index := map[string]int{}
	for d := start; !d.After(last); d = d.AddDate(0, 0, 1) {
		day := DayReport{
			Date:      s.cal.FormatDate(d),
			Revenue:   make(map[string]float64, len(report.Sports)),
			Occupancy: make(map[string]int64, len(report.Sports)),
		}
		for _, sport := range report.Sports {
			day.Revenue[sport] = 0
			day.Occupancy[sport] = 0
		}
		index[day.Date] = len(report.Days)
		report.Days = append(report.Days, day)
	}

	for _, r := range revenue {
		i, ok := index[r.Day]
		if !ok {
			continue
		}
		d := &report.Days[i]
		d.Revenue[r.Sport] = roundCents(r.Amount)
		d.RevenueTotal = roundCents(d.RevenueTotal + r.Amount)
	}
	for _, r := range occupancy {
		if i, ok := index[r.Day]; ok {
			report.Days[i].Occupancy[r.Sport] = r.Slots
		}
	}
	return report, nil
}

// localDayExpr returns a builder for the SQL expression rendering a UTC
// timestamp column as its YYYY-MM-DD date in the calendar's offset.
func localDayExpr(db *gorm.DB, cal *clock.Calendar) (func(col string) string, error) {
	_, offset := time.Date(2000, 1, 1, 0, 0, 0, 0, cal.Location()).Zone()
	minutes := offset / 60

	switch db.Dialector.Name() {
	case "postgres":
		return func(col string) string {
			return fmt.Sprintf("to_char((%s AT TIME ZONE 'UTC') + interval '%d minutes', 'YYYY-MM-DD')", col, minutes)
		}, nil
	case "sqlite":
		return func(col string) string {
			return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s, '%+d minutes')", col, minutes)
		}, nil
	default:
		return nil, fmt.Errorf("reports are not supported on %s", db.Dialector.Name())
	}
}
