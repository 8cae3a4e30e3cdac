package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslatorLookup(t *testing.T) {
	bundle := NewBundle(NewLogger(ERROR))
	require.NoError(t, bundle.AddMessages("en", map[string]string{"nosubject": "No subject"}))
	require.NoError(t, bundle.AddMessages("fr", map[string]string{"nosubject": "Sans objet"}))

	assert.Equal(t, "No subject", bundle.Translator("en").T("nosubject"))
	assert.Equal(t, "Sans objet", bundle.Translator("fr").T("nosubject"))
}

func TestTranslatorFallsBackToEnglish(t *testing.T) {
	bundle := NewBundle(NewLogger(ERROR))
	require.NoError(t, bundle.AddMessages("en", map[string]string{"mail.sent": "Your message has been sent."}))

	assert.Equal(t, "Your message has been sent.", bundle.Translator("fr").T("mail.sent"))
}

func TestTranslatorUnknownMessageReturnsID(t *testing.T) {
	bundle := NewBundle(NewLogger(ERROR))
	assert.Equal(t, "conversation.missing", bundle.Translator("en").T("conversation.missing"))
}

func TestTranslatorWithData(t *testing.T) {
	bundle := NewBundle(NewLogger(ERROR))
	require.NoError(t, bundle.AddMessages("en", map[string]string{
		"attachment.upload.failed": "Could not upload {{.Filename}}.",
	}))

	message := bundle.Translator("en").TWithData("attachment.upload.failed", map[string]interface{}{
		"Filename": "report.pdf",
	})
	assert.Equal(t, "Could not upload report.pdf.", message)
}
