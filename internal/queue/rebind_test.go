package queue

import (
	"testing"

	"cubby/internal/config"
)

func TestRebind(t *testing.T) {
	query := "UPDATE jobs SET status = ? WHERE id = ? AND note <> '?'"
	if got := rebind(config.DriverSQLite, query); got != query {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
	want := "UPDATE jobs SET status = $1 WHERE id = $2 AND note <> '?'"
	if got := rebind(config.DriverPostgres, query); got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
}

func TestParseJobKind(t *testing.T) {
	kind, err := ParseJobKind(" Transcription ")
	if err != nil || kind != KindTranscription {
		t.Fatalf("ParseJobKind = %q, %v", kind, err)
	}
	if _, err := ParseJobKind("encode"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	if !isSQLiteBusy(errString("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("expected busy message to match")
	}
	if isSQLiteBusy(errString("no such table")) {
		t.Fatal("unexpected busy match")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
