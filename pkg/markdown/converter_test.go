package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToTelegramHTMLInlineStyles(t *testing.T) {
	assert.Equal(t, "<b>hola</b> <i>mundo</i>", ToTelegramHTML("**hola** _mundo_"))
	assert.Equal(t, "<s>caro</s>", ToTelegramHTML("~~caro~~"))
	assert.Equal(t, "usa <code>go test</code>", ToTelegramHTML("usa `go test`"))
	assert.Equal(t, "Gastaste <b>$85.000</b> en comida", ToTelegramHTML("Gastaste **$85.000** en comida"))
}

func TestToTelegramHTMLHeadings(t *testing.T) {
	assert.Equal(t, "<b>Resumen</b>\n\ntexto", ToTelegramHTML("# Resumen\n\ntexto"))
}

func TestToTelegramHTMLLists(t *testing.T) {
	assert.Equal(t, "• uno\n\n• dos", ToTelegramHTML("- uno\n- dos"))
}

func TestToTelegramHTMLCodeBlocks(t *testing.T) {
	assert.Equal(t, "<pre>cuota = 120000\n</pre>", ToTelegramHTML("```\ncuota = 120000\n```"))
}

func TestToTelegramHTMLKeepsLinks(t *testing.T) {
	assert.Equal(t, `<a href="https://example.com">docs</a>`, ToTelegramHTML("[docs](https://example.com)"))
}

func TestToTelegramHTMLStripsUnsupportedTags(t *testing.T) {
	// Blockquotes have no Telegram equivalent, the text survives bare
	assert.Equal(t, "nota", ToTelegramHTML("> nota"))
}

func TestToTelegramHTMLPlainText(t *testing.T) {
	assert.Equal(t, "Todo en orden", ToTelegramHTML("Todo en orden"))
	assert.Equal(t, "", ToTelegramHTML(""))
}
