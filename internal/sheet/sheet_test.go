package sheet

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"checkin/internal/attendance"
)

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, []attendance.Record{
		{Identifier: "A1", Session: "AM Break", Timestamp: time.Date(2025, 3, 14, 10, 5, 0, 0, time.UTC)},
		{Identifier: "B2", Session: "Lunch, Main Hall", Timestamp: time.Date(2025, 3, 14, 12, 40, 0, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "Timestamp,Matric No,Session\n" +
		"2025-03-14T10:05:00Z,A1,AM Break\n" +
		"2025-03-14T12:40:00Z,B2,\"Lunch, Main Hall\"\n"
	if buf.String() != want {
		t.Fatalf("Encode =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestReadIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"header skipped", "Matric No,Name\na123,Ali\nb456,Siti\n", []string{"A123", "B456"}},
		{"no header", "a123\n b456 \n", []string{"A123", "B456"}},
		{"blank rows", "a123\n\n,\nc789\n", []string{"A123", "C789"}},
		{"bom header", "\ufeffidentifier\nx1\n", []string{"X1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadIdentifiers(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadIdentifiers: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ReadIdentifiers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadIdentifiersFileMissing(t *testing.T) {
	if _, err := ReadIdentifiersFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing roster")
	}
}

func TestMirrorAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sheet.csv")
	rec := attendance.Record{Identifier: "A1", Session: "AM Break", Timestamp: time.Date(2025, 3, 14, 10, 5, 0, 0, time.UTC)}

	for i := 0; i < 2; i++ {
		m, err := OpenMirror(path)
		if err != nil {
			t.Fatalf("OpenMirror: %v", err)
		}
		if err := m.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if m.Rows() != 1 {
			t.Fatalf("Rows = %d", m.Rows())
		}
		if err := m.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	want := "Timestamp,Matric No,Session\n" +
		"2025-03-14T10:05:00Z,A1,AM Break\n" +
		"2025-03-14T10:05:00Z,A1,AM Break\n"
	if string(data) != want {
		t.Fatalf("mirror =\n%s", data)
	}
}
