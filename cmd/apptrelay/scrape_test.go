package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/apptrelay/models"
	"github.com/use-agent/apptrelay/runs"
)

func TestPrintTable(t *testing.T) {
	records := []models.Appointment{
		{Patient: "DUPONT Marie", DateTime: "12/03/2025 09:30", PhoneNumber: "+33612345678"},
		{Patient: "MARTIN Paul", DateTime: "12/03/2025 10:00", PhoneNumber: models.NoPhone},
		models.FailedAppointment(models.UnknownPatient),
	}
	out := runs.Outcome{
		Records:   records,
		Resolved:  models.FilterResolved(records),
		Attempted: true,
		Delivered: true,
	}

	var buf bytes.Buffer
	printTable(&buf, out)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Contains(t, lines[0], "PATIENT")
	assert.Contains(t, lines[1], "DUPONT Marie")
	assert.Contains(t, lines[1], "+33612345678")
	assert.NotContains(t, buf.String(), "MARTIN Paul")
	assert.Equal(t, "3 processed, 1 with phone number, 1 failed, webhook delivered: true", lines[len(lines)-1])
}

func TestPrintTable_NoWebhook(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, runs.Outcome{Records: []models.Appointment{}, Resolved: []models.Appointment{}})

	assert.True(t, strings.HasSuffix(buf.String(), "0 processed, 0 with phone number, 0 failed\n"))
}
