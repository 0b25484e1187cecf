package config

import (
	"github.com/spf13/viper"

	"github.com/Veraticus/invoice-chaser/internal/gmail"
	"github.com/Veraticus/invoice-chaser/internal/googleauth"
)

// LoadGoogleAuthConfig reads the OAuth client and token locations.
func LoadGoogleAuthConfig() googleauth.Config {
	return googleauth.Config{
		CredentialsFile: pathOr("gmail.credentials_path", DefaultCredentialsPath),
		ClientID:        viper.GetString("gmail.client_id"),
		ClientSecret:    viper.GetString("gmail.client_secret"),
		TokenFile:       pathOr("gmail.token_path", DefaultTokenPath),
		CallbackAddr:    viper.GetString("gmail.callback_addr"),
	}
}

// LoadGmailConfig reads the mailbox transport settings.
func LoadGmailConfig() gmail.Config {
	config := gmail.DefaultConfig()
	config.DownloadDir = pathOr("gmail.download_dir", DefaultDownloadDir)
	if v := viper.GetString("gmail.query"); v != "" {
		config.Query = v
	}
	if v := viper.GetString("gmail.reply_subject"); v != "" {
		config.ReplySubject = v
	}
	return config
}
