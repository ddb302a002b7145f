// Package subtitle renders inference results into the textual output
// formats the service offers for download.
package subtitle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"transcription-service/internal/engine"
)

// Supported output formats.
const (
	FormatTXT  = "txt"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
	FormatJSON = "json"
)

// Render serializes a result into the requested format.
func Render(res *engine.Result, format string) ([]byte, error) {
	switch format {
	case FormatTXT:
		return []byte(res.Text), nil
	case FormatSRT:
		return renderSRT(res.Segments), nil
	case FormatVTT:
		return renderVTT(res.Segments), nil
	case FormatJSON:
		return renderJSON(res)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Timestamp converts seconds into HH:MM:SS?mmm where ? is msSep.
// Milliseconds are taken from the mod-60 remainder and truncated, never
// rounded, so output matches the subtitle files the python tooling emits.
func Timestamp(seconds float64, msSep string) string {
	hours := int(seconds / 3600)
	minutes := int((seconds - float64(hours)*3600) / 60)
	rem := seconds - float64(hours)*3600 - float64(minutes)*60
	whole := int(rem)
	millis := int((rem - float64(whole)) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, whole, msSep, millis)
}

func renderSRT(segments []engine.Segment) []byte {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			Timestamp(seg.Start, ","),
			Timestamp(seg.End, ","),
			strings.TrimSpace(seg.Text),
		)
	}
	return []byte(b.String())
}

func renderVTT(segments []engine.Segment) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			Timestamp(seg.Start, "."),
			Timestamp(seg.End, "."),
			strings.TrimSpace(seg.Text),
		)
	}
	return []byte(b.String())
}

// renderJSON dumps the full result. HTML escaping is off so non-ASCII and
// punctuation survive byte-for-byte.
func renderJSON(res *engine.Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
