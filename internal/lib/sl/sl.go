// Package sl содержит логгер и атрибуты slog, которые повторяются во всех слоях сервиса.
package sl

import (
	"io"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// New создает логгер для окружения: текст с уровнем debug для local и dev, JSON с уровнем info для prod.
func New(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	switch env {
	case envLocal, envDev:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Err возвращает атрибут "error". Для nil возвращает пустую строку, чтобы не падать в defer-логах.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Op атрибут имени операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// Mentor атрибут идентификатора ментора.
func Mentor(mentorID string) slog.Attr {
	return slog.String("mentor_id", mentorID)
}
