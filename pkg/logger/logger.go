package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// デバッグチャンネル名
const (
	ChannelScript       = "script"
	ChannelDataInit     = "datainit"
	ChannelBuiltin      = "builtin"
	ChannelStackMachine = "stackmachine"
)

var globalLogger *slog.Logger

// ParseLevel ログレベル文字列をslog.Levelに変換
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger ログレベルに応じてslogを初期化
func InitLogger(level string) error {
	return InitLoggerWithWriter(level, os.Stdout)
}

// InitLoggerWithWriter 出力先を指定してslogを初期化
func InitLoggerWithWriter(level string, w io.Writer) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}

// Channel チャンネル属性付きのロガーを取得
func Channel(name string) *slog.Logger {
	return GetLogger().With("channel", name)
}
