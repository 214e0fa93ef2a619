package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/geowatch/geo-events-bot/internal/models"
	"gopkg.in/yaml.v3"
)

type recipientsFile struct {
	Recipients []models.Recipient `yaml:"recipients"`
}

// LoadRecipients reads the recipient seed file. An empty path yields no recipients.
func LoadRecipients(path string) ([]models.Recipient, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipients file: %w", err)
	}

	return ParseRecipients(data)
}

// ParseRecipients decodes and validates a YAML recipient list
func ParseRecipients(data []byte) ([]models.Recipient, error) {
	var file recipientsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse recipients: %w", err)
	}

	seen := make(map[string]bool)
	for i, r := range file.Recipients {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("recipient %d has no id", i+1)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("recipient %s is listed twice", r.ID)
		}
		seen[r.ID] = true

		if !strings.Contains(r.Email, "@") {
			return nil, fmt.Errorf("recipient %s has an invalid email %q", r.ID, r.Email)
		}

		switch r.NotificationPreferences.Frequency {
		case models.FrequencyImmediate, models.FrequencyDaily, models.FrequencyWeekly:
		default:
			return nil, fmt.Errorf("recipient %s has unknown frequency %q", r.ID, r.NotificationPreferences.Frequency)
		}
	}

	return file.Recipients, nil
}
