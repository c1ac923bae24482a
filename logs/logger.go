// Package logs monta o logger estruturado (slog) da aplicação.
// Saída em stdout, stderr ou arquivo rotacionado com lumberjack.
package logs

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferreirogomes/starnotary/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName é o nome do arquivo quando a saída é um diretório.
const LogFileName = "starnotary.log"

// SetupLogger cria o logger JSON conforme a seção `log` da configuração.
func SetupLogger(o config.Log) *slog.Logger {
	handlerOpts := slog.HandlerOptions{Level: ParseLevel(o.Level)}
	return slog.New(slog.NewJSONHandler(Writer(o.Output), &handlerOpts))
}

// ParseLevel converte o nível textual; valores desconhecidos viram info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Writer resolve o destino dos logs.
func Writer(output string) io.Writer {
	switch output {
	case "", "stdout", "1":
		return os.Stdout
	case "stderr", "2":
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(output, LogFileName),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
}

// Discard é um logger que descarta tudo, útil em testes.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
