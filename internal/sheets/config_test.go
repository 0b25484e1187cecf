package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/invoice-chaser/internal/common"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		errMsg  string
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "existing spreadsheet without name", modify: func(c *Config) { c.SpreadsheetName = ""; c.SpreadsheetID = "abc" }},
		{name: "invalid batch size", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: true, errMsg: "batch size must be positive"},
		{name: "negative retry attempts", modify: func(c *Config) { c.RetryAttempts = -1 }, wantErr: true, errMsg: "retry attempts cannot be negative"},
		{name: "negative retry delay", modify: func(c *Config) { c.RetryDelay = -time.Second }, wantErr: true, errMsg: "retry delay cannot be negative"},
		{name: "no target", modify: func(c *Config) { c.SpreadsheetName = "" }, wantErr: true, errMsg: "spreadsheet id or name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)

			err := config.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, common.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
