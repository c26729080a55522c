package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/client"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)

	errInvalidCode = errors.New("code is not valid")
)

func statusLabel(status string) string {
	label := strings.ToUpper(status)
	switch status {
	case "open":
		return infoColor.Sprint(label)
	case "in_transit":
		return warnColor.Sprint(label)
	case "arrived", "delivered", "closed":
		return okColor.Sprint(label)
	case "cancelled":
		return errColor.Sprint(label)
	default:
		return label
	}
}

// lossLabel renders a weight differential; positive is loss
func lossLabel(differential, percentage float64) string {
	text := fmt.Sprintf("%+.2f kg (%.1f%%)", differential, percentage)
	switch {
	case percentage >= 5:
		return errColor.Sprint(text)
	case percentage > 0:
		return warnColor.Sprint(text)
	default:
		return okColor.Sprint(text)
	}
}

func progressBar(percentage, width int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := percentage * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func describeError(ref string, err error) error {
	if client.IsNotFound(err) {
		return fmt.Errorf("batch %s not found", ref)
	}
	return err
}
