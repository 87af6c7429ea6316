package backend

import (
	"errors"
	"fmt"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config. The
// Google mirror is chosen whenever a spreadsheet id is configured.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	mirror := MemoryMirror
	if appConfig.GoogleSpreadsheetID != "" {
		mirror = GoogleMirror
	}

	return Config{
		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Mirror:              mirror,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}

	switch c.Mirror {
	case "", MemoryMirror:
	case GoogleMirror:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for google mirror")
		}
	default:
		return fmt.Errorf("invalid mirror type: %s", c.Mirror)
	}

	return nil
}

// GetMirrorTypes returns all valid mirror types
func GetMirrorTypes() []MirrorType {
	return []MirrorType{GoogleMirror, MemoryMirror}
}
