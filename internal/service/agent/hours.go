package agent

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultOpenHour     = 9
	defaultCloseHour    = 18
	defaultBusinessDays = "monday,tuesday,wednesday,thursday,friday"
)

// BusinessOpen reports whether the configured business hours cover the
// current local time.
func (e *Engine) BusinessOpen() bool {
	now := e.now()

	openHour := settingInt(e.settings, "business_hours_start", defaultOpenHour)
	closeHour := settingInt(e.settings, "business_hours_end", defaultCloseHour)

	daysRaw := e.settings.Setting("business_days")
	if daysRaw == "" {
		daysRaw = defaultBusinessDays
	}

	today := strings.ToLower(now.Weekday().String())
	businessDay := false
	for _, day := range strings.Split(daysRaw, ",") {
		if strings.TrimSpace(strings.ToLower(day)) == today {
			businessDay = true
			break
		}
	}

	hour := now.Hour()
	return businessDay && hour >= openHour && hour < closeHour
}

// AfterHoursMessage is spoken before routing a closed-hours call to
// voicemail.
func (e *Engine) AfterHoursMessage() string {
	open := e.settings.Setting("business_hours_start")
	if open == "" {
		open = "9:00 AM"
	}
	closeAt := e.settings.Setting("business_hours_end")
	if closeAt == "" {
		closeAt = "6:00 PM"
	}

	return fmt.Sprintf("Thank you for calling! Our office is currently closed. Our business hours are Monday through Friday, %s to %s. Please leave a message and we'll get back to you as soon as possible, or you can call back during business hours.", open, closeAt)
}

func settingInt(settings SettingsSource, key string, defaultValue int) int {
	raw := settings.Setting(key)
	if raw == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return val
}
