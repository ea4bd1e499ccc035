package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Component isimleri
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentDatabase  = "database"
	ComponentLease     = "lease"
	ComponentPayment   = "payment"
	ComponentScheduler = "scheduler"
	ComponentEvents    = "events"
	ComponentAudit     = "audit"
)

// Logger slog.Logger üzerine component alanı ekler
type Logger struct {
	*slog.Logger
	// root component alanı eklenmemiş hali; WithComponent buradan türetir
	root      *slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	Output    io.Writer
	JSON      bool
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	component := cfg.Component
	if component == "" {
		component = ComponentApp
	}
	root := slog.New(handler)
	return &Logger{
		Logger:    root.With("component", component),
		root:      root,
		component: component,
	}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), root: l.root.With(args...), component: l.component}
}

// WithComponent aynı handler ile farklı component'e ait logger döner
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.root.With("component", component), root: l.root, component: component}
}

func (l *Logger) Component() string {
	return l.component
}

// ParseLevel "debug", "info", "warn", "error" değerlerini çözer; bilinmeyen değer info olur
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

var std = New(DefaultConfig())

// L paket genelinde kullanılan varsayılan logger
func L() *Logger {
	return std
}

// Init varsayılan logger'ı yeniden kurar (main içinde bir kez çağrılır)
func Init(cfg Config) *Logger {
	std = New(cfg)
	SetDefault(std)
	return std
}
