package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger

	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger

	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{name: "Debug level JSON format", level: LevelDebug, format: FormatJSON},
		{name: "Info level JSON format", level: LevelInfo, format: FormatJSON},
		{name: "Warn level JSON format", level: LevelWarn, format: FormatJSON},
		{name: "Error level JSON format", level: LevelError, format: FormatJSON},
		{name: "Info level Text format", level: LevelInfo, format: FormatText},
		{name: "Debug level Text format", level: LevelDebug, format: FormatText},
		{name: "Default level (invalid value)", level: Level(999), format: FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			logger := GetLogger()
			if logger == nil {
				t.Error("Expected logger to be initialized, got nil")
			}
		})
	}

	InitLogger(LevelInfo, FormatJSON)
}

func TestGetLogger(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	logger := GetLogger()
	if logger == nil {
		t.Error("Expected logger to be non-nil")
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id-123"

	newCtx := WithRequestID(ctx, requestID)

	if got := GetRequestID(newCtx); got != requestID {
		t.Errorf("GetRequestID() = %s; want %s", got, requestID)
	}
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "Context with request ID",
			ctx:      context.WithValue(context.Background(), RequestIDKey, "test-id"),
			expected: "test-id",
		},
		{
			name:     "Context without request ID",
			ctx:      context.Background(),
			expected: "",
		},
		{
			name:     "Context with wrong type value",
			ctx:      context.WithValue(context.Background(), RequestIDKey, 12345),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := GetRequestID(tt.ctx); result != tt.expected {
				t.Errorf("GetRequestID() = %s; want %s", result, tt.expected)
			}
		})
	}
}

func TestWithTransactionID(t *testing.T) {
	ctx := context.Background()
	transactionID := "txn-abc-123"

	newCtx := WithTransactionID(ctx, transactionID)

	if got := GetTransactionID(newCtx); got != transactionID {
		t.Errorf("GetTransactionID() = %s; want %s", got, transactionID)
	}
}

func TestGetTransactionID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "Context with transaction ID",
			ctx:      context.WithValue(context.Background(), TransactionIDKey, "txn-1"),
			expected: "txn-1",
		},
		{
			name:     "Context without transaction ID",
			ctx:      context.Background(),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := GetTransactionID(tt.ctx); result != tt.expected {
				t.Errorf("GetTransactionID() = %s; want %s", result, tt.expected)
			}
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "Context with request ID", ctx: WithRequestID(context.Background(), "test-123")},
		{name: "Context with transaction ID", ctx: WithTransactionID(context.Background(), "txn-123")},
		{name: "Context without values", ctx: context.Background()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if logger := LoggerFromContext(tt.ctx); logger == nil {
				t.Error("Expected logger to be non-nil")
			}
		})
	}
}

func TestLoggerFromContext_CarriesBothIDs(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTransactionID(ctx, "txn-1")

	output := captureLogOutput(func() {
		LoggerFromContext(ctx).Info("combined")
	})

	if !strings.Contains(output, "req-1") {
		t.Error("expected output to contain request id")
	}
	if !strings.Contains(output, "txn-1") {
		t.Error("expected output to contain transaction id")
	}
}

func TestLoggingFunctions(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)

	tests := []struct {
		name string
		fn   func()
	}{
		{name: "Debug", fn: func() { Debug("debug message", "key", "value") }},
		{name: "Info", fn: func() { Info("info message", "key", "value") }},
		{name: "Warn", fn: func() { Warn("warning message", "key", "value") }},
		{name: "Error", fn: func() { Error("error message", "key", "value") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(tt.fn)
			if output == "" {
				t.Error("Expected log output, got empty string")
			}
		})
	}
}

func TestContextLoggingFunctions(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)
	ctx := WithRequestID(context.Background(), "test-request-id")

	tests := []struct {
		name string
		fn   func()
	}{
		{name: "DebugContext", fn: func() { DebugContext(ctx, "debug message", "key", "value") }},
		{name: "InfoContext", fn: func() { InfoContext(ctx, "info message", "key", "value") }},
		{name: "WarnContext", fn: func() { WarnContext(ctx, "warning message", "key", "value") }},
		{name: "ErrorContext", fn: func() { ErrorContext(ctx, "error message", "key", "value") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(tt.fn)
			if output == "" {
				t.Error("Expected log output, got empty string")
			}
			if !strings.Contains(output, "test-request-id") {
				t.Error("Expected output to contain request ID")
			}
		})
	}
}

func TestTransactionEvent(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	ctx := WithTransactionID(context.Background(), "txn-42")

	output := captureLogOutput(func() {
		TransactionEvent(ctx, "commit", "in_transaction")
	})

	if !strings.Contains(output, "transaction_event") {
		t.Error("Expected output to contain transaction_event")
	}
	if !strings.Contains(output, "txn-42") {
		t.Error("Expected output to contain transaction id")
	}
	if !strings.Contains(output, "commit") {
		t.Error("Expected output to contain event name")
	}
}

func TestQueryExecuted(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)
	ctx := context.Background()

	output := captureLogOutput(func() {
		QueryExecuted(ctx, "users", 3, 12*time.Millisecond, "filter", "age__gt")
	})

	if !strings.Contains(output, "query_executed") {
		t.Error("Expected output to contain query_executed")
	}
	if !strings.Contains(output, "users") {
		t.Error("Expected output to contain collection name")
	}
	if !strings.Contains(output, "filter") {
		t.Error("Expected output to contain custom args")
	}
}

func TestDatabaseLocked(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	ctx := context.Background()
	err := errors.New("database is locked")

	output := captureLogOutput(func() {
		DatabaseLocked(ctx, "insert", err)
	})

	if !strings.Contains(output, "database_locked") {
		t.Error("Expected output to contain database_locked")
	}
	if !strings.Contains(output, "insert") {
		t.Error("Expected output to contain operation")
	}
	if !strings.Contains(output, "database is locked") {
		t.Error("Expected output to contain error message")
	}
}

func TestInit(t *testing.T) {
	if defaultLogger == nil {
		t.Error("Expected defaultLogger to be initialized by init()")
	}
}

func TestContextKeyType(t *testing.T) {
	var key ContextKey = "test"
	if string(key) != "test" {
		t.Errorf("Expected key to be 'test', got '%s'", string(key))
	}

	if RequestIDKey != "request_id" {
		t.Errorf("Expected RequestIDKey to be 'request_id', got '%s'", RequestIDKey)
	}
	if TransactionIDKey != "transaction_id" {
		t.Errorf("Expected TransactionIDKey to be 'transaction_id', got '%s'", TransactionIDKey)
	}
}

func TestLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("Expected LevelDebug < LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("Expected LevelInfo < LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("Expected LevelWarn < LevelError")
	}
}

func TestFormatConstants(t *testing.T) {
	if FormatJSON == FormatText {
		t.Error("Expected FormatJSON != FormatText")
	}
}

func TestReplaceAttrTimestamp(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	})
	defaultLogger = slog.New(handler)
	defaultLogger.Info("timestamp test")
	defaultLogger = oldLogger

	output := buf.String()
	if !strings.Contains(output, "T") {
		t.Error("Expected timestamp to be in RFC3339 format")
	}
	if !strings.Contains(output, "timestamp test") {
		t.Error("Expected output to contain test message")
	}
}
