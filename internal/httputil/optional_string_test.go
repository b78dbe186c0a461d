package httputil

import (
	"encoding/json"
	"testing"
)

func TestOptionalStringUnmarshal(t *testing.T) {
	type payload struct {
		ParentID OptionalString `json:"parent_id"`
	}

	tests := []struct {
		name        string
		json        string
		wantPresent bool
		wantValue   *string
	}{
		{
			name:        "absent field",
			json:        `{}`,
			wantPresent: false,
		},
		{
			name:        "explicit null",
			json:        `{"parent_id": null}`,
			wantPresent: true,
			wantValue:   nil,
		},
		{
			name:        "string value",
			json:        `{"parent_id": "folder-1"}`,
			wantPresent: true,
			wantValue:   func() *string { s := "folder-1"; return &s }(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			if err := json.Unmarshal([]byte(tt.json), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if p.ParentID.Present != tt.wantPresent {
				t.Errorf("Present = %v, want %v", p.ParentID.Present, tt.wantPresent)
			}
			if (p.ParentID.Value == nil) != (tt.wantValue == nil) {
				t.Fatalf("Value = %v, want %v", p.ParentID.Value, tt.wantValue)
			}
			if tt.wantValue != nil && *p.ParentID.Value != *tt.wantValue {
				t.Errorf("Value = %q, want %q", *p.ParentID.Value, *tt.wantValue)
			}
		})
	}
}

func TestOptionalStringRejectsNonString(t *testing.T) {
	var o OptionalString
	if err := json.Unmarshal([]byte(`42`), &o); err == nil {
		t.Fatal("unmarshal of a number succeeded, want error")
	}
}
