package utils

import (
	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Translator is the translation lookup handed to the store. Components never
// reach a global bundle; the capability is injected at construction.
type Translator interface {
	T(messageID string) string
	TWithData(messageID string, data map[string]interface{}) string
}

// Bundle wraps the i18n message bundle and builds per-language translators.
type Bundle struct {
	bundle *i18n.Bundle
	logger *Logger
}

// NewBundle creates a bundle with English as the fallback language and loads
// the given toml locale files. A missing file is logged, not fatal.
func NewBundle(logger *Logger, localeFiles ...string) *Bundle {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, f := range localeFiles {
		if _, err := bundle.LoadMessageFile(f); err != nil {
			logger.Warn("Failed to load locale file %s: %v", f, err)
		}
	}

	return &Bundle{bundle: bundle, logger: logger}
}

// Translator returns a translator for the specified language
func (b *Bundle) Translator(lang string) Translator {
	if lang == "" {
		lang = "en"
	}
	return &localizerTranslator{
		localizer: i18n.NewLocalizer(b.bundle, lang),
		logger:    b.logger,
	}
}

// AddMessages registers messages programmatically, used by tests that have no
// locale files on disk.
func (b *Bundle) AddMessages(lang string, messages map[string]string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return err
	}
	msgs := make([]*i18n.Message, 0, len(messages))
	for id, other := range messages {
		msgs = append(msgs, &i18n.Message{ID: id, Other: other})
	}
	return b.bundle.AddMessages(tag, msgs...)
}

type localizerTranslator struct {
	localizer *i18n.Localizer
	logger    *Logger
}

// T translates a message ID
func (t *localizerTranslator) T(messageID string) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID: messageID,
	})
	if err != nil {
		t.logger.Debug("Translation error for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}

// TWithData translates a message ID with template data
func (t *localizerTranslator) TWithData(messageID string, data map[string]interface{}) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		t.logger.Debug("Translation error for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}
