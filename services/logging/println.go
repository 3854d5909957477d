package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Println is the MCU logger: one line per record through the builtin
// println, "[level] component: msg k=v ...". Records below Min are dropped.
type Println struct {
	Component string
	Min       slog.Level
}

func (p Println) Debug(msg string, args ...any) { p.emit(slog.LevelDebug, msg, args) }
func (p Println) Info(msg string, args ...any)  { p.emit(slog.LevelInfo, msg, args) }
func (p Println) Warn(msg string, args ...any)  { p.emit(slog.LevelWarn, msg, args) }
func (p Println) Error(msg string, args ...any) { p.emit(slog.LevelError, msg, args) }

func (p Println) emit(lvl slog.Level, msg string, args []any) {
	if lvl < p.Min {
		return
	}
	println(p.format(lvl, msg, args))
}

func (p Println) format(lvl slog.Level, msg string, args []any) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToLower(lvl.String()))
	b.WriteString("] ")
	if p.Component != "" {
		b.WriteString(p.Component)
		b.WriteString(": ")
	}
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 == len(args) {
			fmt.Fprint(&b, "!BADKEY=", args[i])
			break
		}
		fmt.Fprint(&b, args[i], "=", args[i+1])
	}
	return b.String()
}
