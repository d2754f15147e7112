// Package ssml builds the speech markup document sent to the synthesis
// oracle.
package ssml

import (
	"encoding/xml"
	"strings"

	"github.com/book-expert/radio-tts-service/internal/item"
)

// Style carries the optional speaking controls for one clip.
type Style struct {
	Emphasis item.Optional[string]
	Rate     item.Optional[string]
	Pitch    item.Optional[string]
}

// Build wraps text, innermost first, in an emphasis element when emphasis
// is set, a prosody element when rate or pitch is set, and the speak root.
// Attributes that are unset are omitted. Text is inserted verbatim so
// inline markup such as <break/> passes through to the oracle.
func Build(text string, style Style) string {
	var builder strings.Builder

	builder.WriteString("<speak>")

	prosody := prosodyAttributes(style)
	if prosody != "" {
		builder.WriteString("<prosody")
		builder.WriteString(prosody)
		builder.WriteString(">")
	}

	emphasis, hasEmphasis := style.Emphasis.Get()
	if hasEmphasis {
		builder.WriteString(`<emphasis level="`)
		builder.WriteString(escapeAttribute(emphasis))
		builder.WriteString(`">`)
	}

	builder.WriteString(text)

	if hasEmphasis {
		builder.WriteString("</emphasis>")
	}

	if prosody != "" {
		builder.WriteString("</prosody>")
	}

	builder.WriteString("</speak>")

	return builder.String()
}

// prosodyAttributes renders pitch before rate, each only when set.
func prosodyAttributes(style Style) string {
	var attrs strings.Builder

	if pitch, ok := style.Pitch.Get(); ok {
		attrs.WriteString(` pitch="`)
		attrs.WriteString(escapeAttribute(pitch))
		attrs.WriteString(`"`)
	}

	if rate, ok := style.Rate.Get(); ok {
		attrs.WriteString(` rate="`)
		attrs.WriteString(escapeAttribute(rate))
		attrs.WriteString(`"`)
	}

	return attrs.String()
}

var attributeEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeAttribute(value string) string {
	return attributeEscaper.Replace(value)
}

// PlainText strips markup tags and unescapes entities, for oracles that
// only accept plain text.
func PlainText(markup string) string {
	decoder := xml.NewDecoder(strings.NewReader(markup))
	decoder.Strict = false

	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}

		if data, ok := token.(xml.CharData); ok {
			text.Write(data)
		}
	}

	return strings.TrimSpace(text.String())
}
