// Package config loads environment driven configuration for the interview
// scheduler process.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mentor describes one roster entry from INTERVIEW_MENTORS.
type Mentor struct {
	ID             string
	Name           string
	MaxStudents    int
	Specialization string
}

// Config captures environment driven configuration values.
type Config struct {
	SQLiteDSN      string
	Timezone       string
	SlotStartHour  int
	SlotEndHour    int
	ReminderLead   time.Duration
	CapacityPolicy string
	AdminChannel   string
	Mentors        []Mentor
}

// defaultMentors is the roster used when INTERVIEW_MENTORS is unset.
var defaultMentors = []Mentor{
	{ID: "mentor_1", Name: "Backend Interviewer", MaxStudents: 3, Specialization: "backend"},
	{ID: "mentor_2", Name: "Frontend Interviewer", MaxStudents: 3, Specialization: "frontend"},
	{ID: "mentor_3", Name: "Algorithms Interviewer", MaxStudents: 2, Specialization: "algorithms"},
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; invalid values are collected and
// reported together rather than one at a time.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:      "file:interview.db?_foreign_keys=on",
		Timezone:       "Europe/Moscow",
		SlotStartHour:  9,
		SlotEndHour:    17,
		ReminderLead:   time.Hour,
		CapacityPolicy: "active-bookings",
		AdminChannel:   "admin",
		Mentors:        defaultMentors,
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("INTERVIEW_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("INTERVIEW_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "INTERVIEW_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if value := strings.TrimSpace(os.Getenv("INTERVIEW_SLOT_START_HOUR")); value != "" {
		hour, err := strconv.Atoi(value)
		if err != nil || hour < 0 || hour > 23 {
			invalid = append(invalid, "INTERVIEW_SLOT_START_HOUR")
		} else {
			cfg.SlotStartHour = hour
		}
	}

	if value := strings.TrimSpace(os.Getenv("INTERVIEW_SLOT_END_HOUR")); value != "" {
		hour, err := strconv.Atoi(value)
		if err != nil || hour < 1 || hour > 24 {
			invalid = append(invalid, "INTERVIEW_SLOT_END_HOUR")
		} else {
			cfg.SlotEndHour = hour
		}
	}

	if value := strings.TrimSpace(os.Getenv("INTERVIEW_REMINDER_LEAD")); value != "" {
		lead, err := time.ParseDuration(value)
		if err != nil || lead <= 0 {
			invalid = append(invalid, "INTERVIEW_REMINDER_LEAD")
		} else {
			cfg.ReminderLead = lead
		}
	}

	if value := strings.TrimSpace(os.Getenv("INTERVIEW_CAPACITY_POLICY")); value != "" {
		if value != "active-bookings" && value != "distinct-students" {
			invalid = append(invalid, "INTERVIEW_CAPACITY_POLICY")
		} else {
			cfg.CapacityPolicy = value
		}
	}

	if channel := strings.TrimSpace(os.Getenv("INTERVIEW_ADMIN_CHANNEL")); channel != "" {
		cfg.AdminChannel = channel
	}

	if value := strings.TrimSpace(os.Getenv("INTERVIEW_MENTORS")); value != "" {
		mentors, err := parseMentors(value)
		if err != nil {
			invalid = append(invalid, "INTERVIEW_MENTORS")
		} else {
			cfg.Mentors = mentors
		}
	}

	if cfg.SlotStartHour >= cfg.SlotEndHour {
		invalid = append(invalid, "INTERVIEW_SLOT_START_HOUR/INTERVIEW_SLOT_END_HOUR")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// parseMentors reads the "id:name:capacity:specialization" comma list.
func parseMentors(value string) ([]Mentor, error) {
	entries := strings.Split(value, ",")
	mentors := make([]Mentor, 0, len(entries))
	seen := make(map[string]bool)

	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed mentor entry %q", entry)
		}
		id := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		capacity, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || capacity < 0 {
			return nil, fmt.Errorf("malformed mentor capacity in %q", entry)
		}
		specialization := strings.TrimSpace(parts[3])
		if id == "" || name == "" {
			return nil, fmt.Errorf("mentor entry %q is missing id or name", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate mentor id %q", id)
		}
		seen[id] = true
		mentors = append(mentors, Mentor{ID: id, Name: name, MaxStudents: capacity, Specialization: specialization})
	}

	if len(mentors) == 0 {
		return nil, fmt.Errorf("mentor roster must not be empty")
	}
	return mentors, nil
}
