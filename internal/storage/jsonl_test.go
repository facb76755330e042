package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dexAdapter/internal/serializer"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	s := NewJsonlStorage(path)

	first := []serializer.Event{
		serializer.SwapEvent{EventType: serializer.EventSwap, TxnID: "0x01", PriceNative: "1"},
	}
	second := []serializer.Event{
		serializer.JoinExitEvent{EventType: serializer.EventJoin, TxnID: "0x02", Amount0: "1", Amount1: "2"},
		serializer.JoinExitEvent{EventType: serializer.EventExit, TxnID: "0x03", Amount0: "1", Amount1: "2"},
	}
	if err := s.PutEvents(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.PutEvents(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var types []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var row struct {
			EventType string `json:"eventType"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		types = append(types, row.EventType)
	}
	if len(types) != 3 || types[0] != "swap" || types[1] != "join" || types[2] != "exit" {
		t.Fatalf("unexpected lines: %v", types)
	}
}

func TestJsonlStorageEmptyBatchCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := NewJsonlStorage(path).PutEvents(nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file, got %v", err)
	}
}
