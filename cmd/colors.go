package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	colorSuccess  = color.New(color.FgGreen).SprintFunc()
	colorInfo     = color.New(color.FgCyan).SprintFunc()
	colorWarn     = color.New(color.FgYellow).SprintFunc()
	colorError    = color.New(color.FgRed).SprintFunc()
	colorCritical = color.New(color.FgHiRed, color.Bold).SprintFunc()
	colorMuted    = color.New(color.FgHiBlack).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "open", "enabled", "secure", "present", "confirmed", "complete":
		return colorSuccess(status)
	case "error", "fail", "failed", "unreachable":
		return colorError(status)
	case "limited", "skipped", "present_weak":
		return colorWarn(status)
	case "closed", "disabled", "not_vulnerable":
		return colorMuted(status)
	default:
		return status
	}
}

// formatSeverity colors severity and risk level labels alike.
func formatSeverity(severity string) string {
	return severityColor(severity)(severity)
}

func severityColor(severity string) func(a ...interface{}) string {
	switch strings.ToLower(severity) {
	case "critical":
		return colorCritical
	case "high", "vulnerable", "missing", "deprecated", "exposed":
		return colorError
	case "medium", "potentially_vulnerable":
		return colorWarn
	case "low":
		return colorInfo
	case "informational", "info", "unknown", "":
		return colorMuted
	default:
		return fmt.Sprint
	}
}

// formatOpenPortState colors a port verdict; an open port takes the color of
// its risk level instead of plain green.
func formatOpenPortState(status, risk string) string {
	if strings.EqualFold(status, "open") {
		return severityColor(risk)(status)
	}
	return colorMuted(status)
}
