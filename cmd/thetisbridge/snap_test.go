package main

import "testing"

func TestSnap(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		dir         Direction
		wantTarget  int64
		wantApplied bool
		wantErr     bool
	}{
		{"up rounds to next boundary", "ZZFA00014250123", DirectionUp, 14251000, true, false},
		{"down rounds to previous boundary", "ZZFA00014250123", DirectionDown, 14250000, true, false},
		{"already on boundary", "ZZFA00014250000", DirectionUp, 14250000, false, false},
		{"terminator tolerated", "ZZFA00007074999;", DirectionUp, 7075000, true, false},
		{"bare digits", "00000001001", DirectionDown, 1000, true, false},
		{"bare short decimal", "14250123", DirectionUp, 14251000, true, false},
		{"bare short decimal down", "7074999;", DirectionDown, 7074000, true, false},
		{"bare short on boundary", "7074000", DirectionUp, 7074000, false, false},
		{"short reply", "ZZFA", DirectionUp, 0, false, true},
		{"non numeric", "ZZFA000142501x3", DirectionUp, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, applied, err := Snap(tt.reply, tt.dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Snap(%q) error = %v, wantErr %v", tt.reply, err, tt.wantErr)
			}
			if applied != tt.wantApplied {
				t.Fatalf("Snap(%q) applied = %v, want %v", tt.reply, applied, tt.wantApplied)
			}
			if !tt.wantErr && target != tt.wantTarget {
				t.Errorf("Snap(%q) target = %d, want %d", tt.reply, target, tt.wantTarget)
			}
		})
	}
}

func TestFreqCommand(t *testing.T) {
	if got := freqCommand(14251000); got != "ZZFA00014251000;" {
		t.Errorf("freqCommand = %q, want ZZFA00014251000;", got)
	}
}

func TestParseStepIndex(t *testing.T) {
	tests := []struct {
		reply   string
		want    int
		wantErr bool
	}{
		{"ZZAC05", 5, false},
		{"ZZAC11;", 11, false},
		{"5", 5, false},
		{"07;", 7, false},
		{"ZZAC", 0, true},
		{"ZZACx1", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseStepIndex(tt.reply)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseStepIndex(%q) error = %v, wantErr %v", tt.reply, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseStepIndex(%q) = %d, want %d", tt.reply, got, tt.want)
		}
	}
}
