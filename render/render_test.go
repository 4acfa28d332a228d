package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var ts = time.Date(2026, 3, 9, 14, 30, 5, 0, time.UTC)

func TestMessageNoPlaceholdersIsIdentity(t *testing.T) {
	tpl := "plain text, no substitutions"
	assert.Equal(t, tpl, Message(tpl, ts, "output"))
}

func TestMessageTimestampReplacedEverywhere(t *testing.T) {
	got := Message("{timestamp} and again {timestamp}", ts, "")
	want := "Mon Mar 09 14:30:05 UTC 2026 and again Mon Mar 09 14:30:05 UTC 2026"
	assert.Equal(t, want, got)
}

func TestMessageResponseReplacedOnlyOnce(t *testing.T) {
	got := Message("{command_response_content} / {command_response_content}", ts, "up")
	assert.Equal(t, "up / {command_response_content}", got)
}

func TestMessageEmptyOutputYieldsNoResponse(t *testing.T) {
	assert.Equal(t, "result: no response", Message("result: {command_response_content}", ts, ""))
	assert.Equal(t, "result: no response", Message("result: {command_response_content}", ts, "  \n "))
}

func TestMessageCombined(t *testing.T) {
	got := Message("[{timestamp}]\n{command_response_content}", ts, "load: 0.42")
	assert.Equal(t, "[Mon Mar 09 14:30:05 UTC 2026]\nload: 0.42", got)
}

func TestTimestampFormat(t *testing.T) {
	hk, err := time.LoadLocation("Asia/Hong_Kong")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	got := Timestamp(time.Date(2026, 12, 24, 9, 5, 0, 0, hk))
	assert.Equal(t, "Thu Dec 24 09:05:00 HKT 2026", got)
}
