package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("CHASER_TEST_DIR", "/srv/chaser")

	tests := map[string]string{
		"":                        "",
		"~":                       home,
		"~/ledger.db":             filepath.Join(home, "ledger.db"),
		"$CHASER_TEST_DIR/x.json": "/srv/chaser/x.json",
		"/abs/path":               "/abs/path",
		"~other/x":                "~other/x",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExpandPath(in), in)
	}
}

func TestDatabasePath(t *testing.T) {
	t.Setenv("HOME", "/home/op")
	t.Setenv("CHASER_TEST_DIR", "/srv/chaser")

	tests := []struct {
		name    string
		setting string
		want    string
	}{
		{name: "default", want: "/home/op/.local/share/chaser/chaser.db"},
		{name: "home relative", setting: "~/ledger.db", want: "/home/op/ledger.db"},
		{name: "environment", setting: "$CHASER_TEST_DIR/ledger.db", want: "/srv/chaser/ledger.db"},
		{name: "in memory", setting: ":memory:", want: ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			if tt.setting != "" {
				viper.Set("database.path", tt.setting)
			}
			assert.Equal(t, tt.want, DatabasePath())
		})
	}
}

func TestLoadGoogleConfigs(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", "/home/op")

	auth := LoadGoogleAuthConfig()
	assert.Equal(t, "credentials.json", auth.CredentialsFile)
	assert.Equal(t, "/home/op/.config/chaser/token.json", auth.TokenFile)

	viper.Set("gmail.token_path", "~/tok.json")
	viper.Set("gmail.download_dir", "/tmp/dl")
	viper.Set("gmail.query", "is:unread label:invoices")

	auth = LoadGoogleAuthConfig()
	assert.Equal(t, "/home/op/tok.json", auth.TokenFile)

	gm := LoadGmailConfig()
	assert.Equal(t, "/tmp/dl", gm.DownloadDir)
	assert.Equal(t, "is:unread label:invoices", gm.Query)
	assert.Equal(t, "Re: Invoice Reconciliation", gm.ReplySubject)

	assert.Equal(t, "/home/op/.local/share/chaser/chaser.db", DatabasePath())
}

func TestLoadSheetsConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "from-env")

	config, err := LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.SpreadsheetID)
	assert.Equal(t, "Invoice Ledger", config.SpreadsheetName)

	viper.Set("sheets.spreadsheet_id", "from-viper")
	viper.Set("sheets.spreadsheet_name", "Q3 Ledger")
	config, err = LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-viper", config.SpreadsheetID)
	assert.Equal(t, "Q3 Ledger", config.SpreadsheetName)
}
