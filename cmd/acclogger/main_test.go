package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/lorahub/internal/config"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/stream"
)

// withFlags sets the global flags for one test.
func withFlags(t *testing.T, units, simulated string) {
	t.Helper()
	oldUnits, oldSim, oldConfig, oldTimeout := unitList, simUnits, configPath, timeoutMs
	t.Cleanup(func() {
		unitList, simUnits, configPath, timeoutMs = oldUnits, oldSim, oldConfig, oldTimeout
	})
	unitList = units
	simUnits = simulated
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	timeoutMs = 200
}

func TestGroupTarget(t *testing.T) {
	tests := []struct {
		name     string
		units    string
		wantMask uint8
		wantErr  bool
	}{
		{name: "two units", units: "1,3", wantMask: 0b101},
		{name: "all", units: "1,2,3,4,5,6,7,8", wantMask: 0xFF},
		{name: "empty", units: "", wantErr: true},
		{name: "beyond group range", units: "1,9", wantErr: true},
		{name: "garbage", units: "one", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFlags(t, tt.units, "")
			addr, err := groupTarget()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("groupTarget() = %v, want error", addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("groupTarget() error = %v", err)
			}
			if addr.Mask() != tt.wantMask {
				t.Errorf("mask = %08b, want %08b", addr.Mask(), tt.wantMask)
			}
		})
	}
}

func TestSortedUnits(t *testing.T) {
	got := sortedUnits(map[uint8]int{42: 1, 3: 5, 1: 2})
	want := []uint8{1, 3, 42}
	if len(got) != len(want) {
		t.Fatalf("sortedUnits() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedUnits() = %v, want %v", got, want)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	withFlags(t, "", "")
	bridgeURL = "ws://example:8765/radio"
	defer func() { bridgeURL = "" }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.ReplyTimeoutMs != 200 {
		t.Errorf("ReplyTimeoutMs = %d, want 200", cfg.ReplyTimeoutMs)
	}
	if cfg.BridgeURL != bridgeURL {
		t.Errorf("BridgeURL = %q, want %q", cfg.BridgeURL, bridgeURL)
	}
}

func TestRunGroupAgainstSimulation(t *testing.T) {
	tests := []struct {
		name    string
		units   string
		sim     string
		op      groupOp
		wantErr bool
	}{
		{name: "enable all present", units: "1,3", sim: "1,2,3", op: (*protocol.Engine).Enable},
		{name: "check with one missing", units: "1,2", sim: "1", op: (*protocol.Engine).RangeCheck, wantErr: true},
		{name: "disable", units: "2", sim: "2", op: (*protocol.Engine).Disable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFlags(t, tt.units, tt.sim)
			err := runGroup(context.Background(), tt.name, tt.op)
			if (err != nil) != tt.wantErr {
				t.Errorf("runGroup() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	withFlags(t, "", "")
	forceInit = false

	if err := configInitCmd.RunE(configInitCmd, nil); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ControlFrequency != config.Default().ControlFrequency {
		t.Errorf("ControlFrequency = %d", cfg.ControlFrequency)
	}

	if err := configInitCmd.RunE(configInitCmd, nil); err == nil {
		t.Error("second init without --force succeeded")
	}
}

func TestStreamReportsLogFiles(t *testing.T) {
	withFlags(t, "1,2", "1,2")
	noMQTT = true
	defer func() { noMQTT = false }()

	logDir := t.TempDir()
	cfg := config.Default()
	cfg.LogDir = logDir
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	streamCmd.SetContext(ctx)
	if err := runStream(streamCmd, nil); err != nil {
		t.Fatalf("runStream() error = %v", err)
	}

	files, err := filepath.Glob(filepath.Join(logDir, "*.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d CSV files %v, want one per unit", len(files), files)
	}
}

func TestStreamSummaryListsFiles(t *testing.T) {
	stats := stream.Stats{Pages: 3, PerUnit: map[uint8]int{2: 1, 1: 2}}
	files := []string{"/logs/1_2026-10-16_12-00-00.csv", "/logs/2_2026-10-16_12-00-00.csv"}

	res := streamSummary(stats, files, 3*time.Second)
	var got []string
	for _, d := range res.Details {
		if d.Key == "File" {
			got = append(got, d.Value)
		}
	}
	if len(got) != len(files) || got[0] != files[0] || got[1] != files[1] {
		t.Errorf("File details = %v, want %v", got, files)
	}
	if res.Details[3].Key != "Unit 1" {
		t.Errorf("units should follow the totals in order, got %q", res.Details[3].Key)
	}
}
