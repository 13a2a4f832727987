package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigureVerboseJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Configure(true, "json", &buf); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", Logger.GetLevel())
	}

	WithField("region", "HH 529").Debug("shift")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["region"] != "HH 529" || entry["msg"] != "shift" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestConfigureEnvLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	if err := Configure(false, "text", &buf); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if Logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("Expected warn level, got %v", Logger.GetLevel())
	}

	Logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered, got %q", buf.String())
	}
}

func TestConfigureBadFormat(t *testing.T) {
	if err := Configure(false, "xml", &bytes.Buffer{}); err == nil {
		t.Errorf("Expected an error for an unknown format")
	}
}
