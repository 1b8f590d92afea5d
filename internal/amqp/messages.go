package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"obras/internal/core"
)

// ReportRequestMessage asks the worker to build and publish one month report.
type ReportRequestMessage struct {
	RequestID string    `json:"request_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Mode      string    `json:"mode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportRequestMessage(year, month int, mode string) *ReportRequestMessage {
	return &ReportRequestMessage{
		RequestID: uuid.NewString(),
		Year:      year,
		Month:     month,
		Mode:      mode,
		Timestamp: time.Now().UTC(),
	}
}

// Period validates the requested month.
func (m *ReportRequestMessage) Period() (core.Period, error) {
	return core.NewPeriod(m.Year, m.Month)
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON decodes a request. A request without an id is
// rejected since replies are correlated on it.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestID == "" {
		return nil, fmt.Errorf("%w: missing request_id", core.ErrInvalidArgument)
	}
	return &msg, nil
}

// ReportReadyMessage announces a finished report with its headline figures.
type ReportReadyMessage struct {
	RequestID      string             `json:"request_id"`
	Year           int                `json:"year"`
	Month          int                `json:"month"`
	Mode           string             `json:"mode"`
	RevenueSource  core.RevenueSource `json:"revenue_source"`
	TotalRevenue   decimal.Decimal    `json:"total_revenue"`
	TotalExpenses  decimal.Decimal    `json:"total_expenses"`
	Profit         decimal.Decimal    `json:"profit"`
	Projects       int                `json:"projects"`
	FailedProjects []string           `json:"failed_projects,omitempty"`
	SheetsRef      string             `json:"sheets_ref,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// NewReportReadyMessage summarizes r. requestID may be empty for reports
// that were not built on request.
func NewReportReadyMessage(requestID, mode string, r *core.MonthReport) *ReportReadyMessage {
	failed := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		failed = append(failed, f.ProjectID)
	}
	return &ReportReadyMessage{
		RequestID:      requestID,
		Year:           r.Period.Year,
		Month:          r.Period.Month,
		Mode:           mode,
		RevenueSource:  r.RevenueSource,
		TotalRevenue:   r.TotalRevenue,
		TotalExpenses:  r.TotalExpenses,
		Profit:         r.Profit,
		Projects:       len(r.Projects),
		FailedProjects: failed,
		Timestamp:      time.Now().UTC(),
	}
}

func (m *ReportReadyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportReadyMessageFromJSON(data []byte) (*ReportReadyMessage, error) {
	var msg ReportReadyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
