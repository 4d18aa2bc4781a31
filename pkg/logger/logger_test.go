package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithPlate(ctx, "AB1234")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"plate":"AB1234"`)) {
		t.Fatalf("expected plate to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerTransitionFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "yardgate", Output: buf})

	ctx := log.WithTransactionID(context.Background(), "tx-1")
	ctx = log.WithOperator(ctx, "gate1")
	ctx = log.WithOperatorRole(ctx, "security")
	ctx = log.WithLocation(ctx, "north")
	log.Info(ctx, "transaction.exit_authorized")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, buf.String())
	}
	want := map[string]string{
		"service":        "yardgate",
		"transaction_id": "tx-1",
		"operator_id":    "gate1",
		"operator_role":  "security",
		"location":       "north",
		"message":        "transaction.exit_authorized",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Fatalf("expected %s=%q, got %v", key, value, entry[key])
		}
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("did not expect stack when warn stack disabled")
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be filtered, got %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestLoggerNodeAndTransition(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Node: "north-yard", Format: FormatJSON, Output: buf})

	ctx := log.WithTransition(context.Background(), "authorize_exit", "PENDING_EXIT", "IN_ROUTE")
	log.Info(ctx, "transaction.exit_authorized")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, buf.String())
	}
	for key, value := range map[string]string{
		"node":        "north-yard",
		"transition":  "authorize_exit",
		"from_status": "PENDING_EXIT",
		"to_status":   "IN_ROUTE",
	} {
		if entry[key] != value {
			t.Fatalf("expected %s=%q, got %v", key, value, entry[key])
		}
	}
}

func TestWithFieldAcceptsNilContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Format: FormatJSON, Output: buf})

	ctx := log.WithField(nil, "plate", "AB1234")
	log.Info(ctx, "ok")
	if !bytes.Contains(buf.Bytes(), []byte(`"plate":"AB1234"`)) {
		t.Fatalf("expected plate field, got %s", buf.String())
	}
}
