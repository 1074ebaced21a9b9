package model

import "time"

// AlertStatus records what happened to a triggered alert.
type AlertStatus string

const (
	AlertStatusSent    AlertStatus = "sent"
	AlertStatusFailed  AlertStatus = "failed"
	AlertStatusMuted   AlertStatus = "muted"
	AlertStatusSkipped AlertStatus = "skipped"
)

// AlertMute suppresses alert delivery for a scope until a deadline. A nil
// scope field matches any value; a mute with all three nil is global.
type AlertMute struct {
	ID        string    `json:"id"`
	RuleName  *string   `json:"rule_name,omitempty"`
	CompanyID *string   `json:"company_id,omitempty"`
	Vendor    *string   `json:"vendor,omitempty"`
	Until     time.Time `json:"until"`
	Reason    string    `json:"reason,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Global reports whether the mute applies to every rule, company and vendor.
func (m AlertMute) Global() bool {
	return m.RuleName == nil && m.CompanyID == nil && m.Vendor == nil
}

// Active reports whether the mute is still in force at t.
func (m AlertMute) Active(t time.Time) bool {
	return m.Until.After(t)
}

// MuteScope is the lookup key for mute checks. Empty fields mean "not
// specified" and only match mutes whose corresponding field is nil.
type MuteScope struct {
	RuleName  string `json:"rule_name,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
}

// Matches reports whether mute m covers scope s.
func (s MuteScope) Matches(m AlertMute) bool {
	return fieldMatches(m.RuleName, s.RuleName) &&
		fieldMatches(m.CompanyID, s.CompanyID) &&
		fieldMatches(m.Vendor, s.Vendor)
}

func fieldMatches(muteField *string, value string) bool {
	if muteField == nil {
		return true
	}
	return value != "" && *muteField == value
}

// AlertEvent is a delivery record for one triggered alert.
type AlertEvent struct {
	ID         string      `json:"id"`
	RuleName   string      `json:"rule_name"`
	CompanyID  string      `json:"company_id"`
	AnalysisID string      `json:"analysis_id"`
	Vendor     string      `json:"vendor,omitempty"`
	Severity   string      `json:"severity"`
	Message    string      `json:"message"`
	Status     AlertStatus `json:"status"`
	Channel    string      `json:"channel,omitempty"`
	Error      string      `json:"error,omitempty"`
	DedupKey   string      `json:"dedup_key"`
	CreatedAt  time.Time   `json:"created_at"`
}
