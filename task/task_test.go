package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klchiu/waops/wa"
)

func validTask() Task {
	return Task{
		Title:      "morning report",
		Kind:       KindSendMessage,
		Mode:       ModeOnce,
		Times:      []string{"09:00"},
		Recurrence: Recurrence{Type: Everyday},
		Target:     Target{Type: wa.ChatUser, ID: "85212345678"},
		Message:    "hi",
		Enabled:    true,
	}
}

func TestValidateOK(t *testing.T) {
	assert.Empty(t, validTask().Validate())
}

func TestValidateCollectsAllReasons(t *testing.T) {
	tk := validTask()
	tk.Title = ""
	tk.Target.ID = ""
	tk.Times = []string{"25:99"}

	reasons := tk.Validate()
	assert.Len(t, reasons, 3)
	assert.Contains(t, reasons, "title is required")
	assert.Contains(t, reasons, "target id is required")
}

func TestValidateWeeklyEmptyDaySet(t *testing.T) {
	tk := validTask()
	tk.Recurrence = Recurrence{Type: Weekly}

	reasons := tk.Validate()
	assert.Contains(t, reasons, "weekly recurrence needs at least one weekday")
}

func TestValidateMonthlyDayRange(t *testing.T) {
	tk := validTask()
	tk.Recurrence = Recurrence{Type: Monthly, Days: []int{0, 32}}

	reasons := tk.Validate()
	assert.Len(t, reasons, 2)
}

func TestValidateRepeatCountMatchesTimes(t *testing.T) {
	tk := validTask()
	tk.Mode = ModeRepeat
	tk.RepeatCount = 3
	tk.Times = []string{"09:00", "12:00"}

	reasons := tk.Validate()
	assert.Contains(t, reasons, "expected 3 times of day, got 2")
}

func TestValidateCommandRequiredForCommandTasks(t *testing.T) {
	tk := validTask()
	tk.Kind = KindRunCommand
	tk.Command = "   "

	reasons := tk.Validate()
	assert.Contains(t, reasons, "command is required for command tasks")
}

func TestValidateRegexFilterCompiledEagerly(t *testing.T) {
	tk := validTask()
	tk.OutputFilters = []string{"secret", "/valid.*/", "/([bad/"}

	reasons := tk.Validate()
	assert.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], `"/([bad/"`)
}

func TestValidateSpecificDates(t *testing.T) {
	tk := validTask()
	tk.Recurrence = Recurrence{Type: Specific, Dates: []string{"2026-12-24", "not-a-date"}}

	reasons := tk.Validate()
	assert.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], `"not-a-date"`)
}
