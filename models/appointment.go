package models

import "strings"

// Placeholder values used while an appointment is being extracted.
const (
	UnknownPatient  = "Unknown Patient"
	UnknownTime     = "Unknown Time"
	UnknownDate     = "Unknown Date"
	NoPhone         = "N/A"
	ErrorProcessing = "Error processing"
)

// Appointment is one scraped calendar entry. The JSON shape is the webhook
// payload contract.
type Appointment struct {
	Patient     string `json:"patient"`
	DateTime    string `json:"dateTime"`
	PhoneNumber string `json:"phoneNumber"`
}

// Resolved reports whether the record carries a usable phone number.
func (a Appointment) Resolved() bool {
	return a.PhoneNumber != "" && a.PhoneNumber != NoPhone && a.PhoneNumber != ErrorProcessing
}

// Failed reports whether the record stands in for an appointment that could
// not be processed.
func (a Appointment) Failed() bool {
	return a.PhoneNumber == ErrorProcessing
}

// FailedAppointment builds the record appended when processing an
// appointment fails part-way.
func FailedAppointment(patient string) Appointment {
	return Appointment{
		Patient:     patient,
		DateTime:    ErrorProcessing,
		PhoneNumber: ErrorProcessing,
	}
}

// FilterResolved returns the resolved records, preserving order.
func FilterResolved(list []Appointment) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if a.Resolved() {
			out = append(out, a)
		}
	}
	return out
}

// PatientName joins the name parts as "last first", dropping empty parts.
func PatientName(lastName, firstName string) string {
	return strings.TrimSpace(lastName + " " + firstName)
}

// JoinDateTime joins the date and time as "date time".
func JoinDateTime(date, clock string) string {
	return strings.TrimSpace(date + " " + clock)
}

// Credentials are the portal login details for one run. They are never
// stored on a Run or written to logs.
type Credentials struct {
	Email    string
	Password string
}
