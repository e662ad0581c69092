// Package prefs owns the persisted display preferences: language and cookie
// consent. It is the only writer of those storage keys.
package prefs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Astra2544/weingut-storefront/internal/storage"
)

const (
	LanguageGerman  = "de"
	LanguageEnglish = "en"
)

var ErrUnknownLanguage = errors.New("unknown language")

type Preferences struct {
	local           storage.Store
	defaultLanguage string
	logger          *slog.Logger
}

func New(local storage.Store, defaultLanguage string, logger *slog.Logger) *Preferences {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLanguage != LanguageGerman && defaultLanguage != LanguageEnglish {
		defaultLanguage = LanguageGerman
	}
	return &Preferences{local: local, defaultLanguage: defaultLanguage, logger: logger}
}

// Language returns the persisted display language, falling back to the
// configured default when nothing usable is stored.
func (p *Preferences) Language(ctx context.Context) string {
	var lang string
	err := storage.GetJSON(ctx, p.local, storage.KeyLanguage, &lang)
	if err != nil {
		if !storage.Absent(err) {
			p.logger.WarnContext(ctx, "failed to read language preference", "error", err)
		}
		return p.defaultLanguage
	}
	if lang != LanguageGerman && lang != LanguageEnglish {
		return p.defaultLanguage
	}
	return lang
}

func (p *Preferences) SetLanguage(ctx context.Context, lang string) error {
	if lang != LanguageGerman && lang != LanguageEnglish {
		return ErrUnknownLanguage
	}
	return storage.PutJSON(ctx, p.local, storage.KeyLanguage, lang)
}

// CookieConsent reports the stored consent decision. The second return is
// false while the user has not decided yet.
func (p *Preferences) CookieConsent(ctx context.Context) (accepted, decided bool) {
	var v bool
	err := storage.GetJSON(ctx, p.local, storage.KeyCookieConsent, &v)
	if err != nil {
		if !storage.Absent(err) {
			p.logger.WarnContext(ctx, "failed to read cookie consent", "error", err)
		}
		return false, false
	}
	return v, true
}

func (p *Preferences) SetCookieConsent(ctx context.Context, accepted bool) error {
	return storage.PutJSON(ctx, p.local, storage.KeyCookieConsent, accepted)
}
