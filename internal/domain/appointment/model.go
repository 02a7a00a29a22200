package appointment

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/calendar"
)

var ErrNotFound = errors.New("appointment not found")

// ValidationError reports caller input the service rejects.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Appointment statuses.
const (
	StatusScheduled   = "SCHEDULED"
	StatusConfirmed   = "CONFIRMED"
	StatusCancelled   = "CANCELLED"
	StatusCompleted   = "COMPLETED"
	StatusPending     = "PENDING"
	StatusRescheduled = "RESCHEDULED"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCancelled: true,
	StatusCompleted: true, StatusPending: true, StatusRescheduled: true,
}

// Visit types.
const (
	VisitRoutineCheckup = "ROUTINE_CHECKUP"
	VisitNewPatient     = "NEW_PATIENT_VISIT"
	VisitFollowUp       = "FOLLOW_UP"
	VisitConsultation   = "CONSULTATION"
	VisitUrgentCare     = "URGENT_CARE"
)

var validVisitTypes = map[string]bool{
	VisitRoutineCheckup: true, VisitNewPatient: true, VisitFollowUp: true,
	VisitConsultation: true, VisitUrgentCare: true,
}

// DateLayout is the wire and storage form of Appointment.Date.
const DateLayout = "2006-01-02"

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

type Appointment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   string    `db:"patient_id" json:"patient_id"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	DoctorID    string    `db:"doctor_id" json:"doctor_id"`
	Doctor      string    `db:"doctor_name" json:"doctor"`
	Gender      string    `db:"gender" json:"gender"`
	Date        string    `db:"appointment_date" json:"date"`
	Time        string    `db:"appointment_time" json:"time"`
	Mobile      string    `db:"mobile" json:"mobile"`
	Injury      string    `db:"issue" json:"injury"`
	Email       string    `db:"email" json:"email"`
	Status      string    `db:"status" json:"status"`
	VisitType   string    `db:"visit_type" json:"visit_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) normalize() {
	for _, f := range []*string{&a.PatientID, &a.PatientName, &a.DoctorID, &a.Doctor,
		&a.Gender, &a.Date, &a.Time, &a.Mobile, &a.Injury, &a.Email} {
		*f = strings.TrimSpace(*f)
	}
	a.Status = normalizeCode(a.Status)
	a.VisitType = normalizeCode(a.VisitType)
}

// normalizeCode accepts "follow-up" or "Follow Up" for FOLLOW_UP.
func normalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// Day parses Date.
func (a *Appointment) Day() (time.Time, error) {
	return time.Parse(DateLayout, a.Date)
}

func (a *Appointment) Validate() error {
	required := []struct{ name, value string }{
		{"patient_id", a.PatientID},
		{"patient_name", a.PatientName},
		{"doctor_id", a.DoctorID},
		{"doctor", a.Doctor},
		{"gender", a.Gender},
		{"date", a.Date},
		{"time", a.Time},
		{"mobile", a.Mobile},
		{"injury", a.Injury},
		{"email", a.Email},
	}
	for _, f := range required {
		if f.value == "" {
			return invalid("%s is required", f.name)
		}
	}
	if _, err := a.Day(); err != nil {
		return invalid("invalid date %q: want YYYY-MM-DD", a.Date)
	}
	if !timePattern.MatchString(a.Time) {
		return invalid("invalid time %q: want HH:MM or HH:MM:SS", a.Time)
	}
	if _, err := mail.ParseAddress(a.Email); err != nil {
		return invalid("invalid email %q", a.Email)
	}
	if !validStatuses[a.Status] {
		return invalid("invalid appointment status: %s", a.Status)
	}
	if !validVisitTypes[a.VisitType] {
		return invalid("invalid visit type: %s", a.VisitType)
	}
	return nil
}

// merge applies the non-empty fields of patch over a copy of a.
func (a Appointment) merge(patch *Appointment) *Appointment {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&a.PatientID, patch.PatientID)
	set(&a.PatientName, patch.PatientName)
	set(&a.DoctorID, patch.DoctorID)
	set(&a.Doctor, patch.Doctor)
	set(&a.Gender, patch.Gender)
	set(&a.Date, patch.Date)
	set(&a.Time, patch.Time)
	set(&a.Mobile, patch.Mobile)
	set(&a.Injury, patch.Injury)
	set(&a.Email, patch.Email)
	set(&a.Status, patch.Status)
	set(&a.VisitType, patch.VisitType)
	return &a
}

// CalendarRecord is the slice of the appointment the doctor calendar shows.
func (a *Appointment) CalendarRecord() calendar.Appointment {
	day, _ := a.Day()
	return calendar.Appointment{
		ID:          a.ID.String(),
		DoctorID:    a.DoctorID,
		PatientName: a.PatientName,
		Issue:       a.Injury,
		Date:        day,
		Time:        a.Time,
		Status:      a.Status,
	}
}
