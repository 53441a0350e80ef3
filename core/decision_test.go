package core

import "testing"

func TestMemoryDecisionValidate(t *testing.T) {
	tests := []struct {
		name     string
		decision MemoryDecision
		wantErr  bool
	}{
		{"add with text", MemoryDecision{Event: DecisionAdd, Text: "likes jazz"}, false},
		{"add without text", MemoryDecision{Event: DecisionAdd}, true},
		{"update complete", MemoryDecision{Event: DecisionUpdate, ID: "m1", Text: "new"}, false},
		{"update without id", MemoryDecision{Event: DecisionUpdate, Text: "new"}, true},
		{"update without text", MemoryDecision{Event: DecisionUpdate, ID: "m1"}, true},
		{"delete with id", MemoryDecision{Event: DecisionDelete, ID: "m1"}, false},
		{"delete without id", MemoryDecision{Event: DecisionDelete}, true},
		{"none bare", MemoryDecision{Event: DecisionNone}, false},
		{"unknown event", MemoryDecision{Event: "MERGE"}, true},
		{"empty event", MemoryDecision{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
