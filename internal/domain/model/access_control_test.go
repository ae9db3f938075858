package model

import (
	"encoding/json"
	"testing"
)

func TestParseAccessControl(t *testing.T) {
	tests := []struct {
		input   string
		want    AccessControl
		wantErr bool
	}{
		{input: "public", want: AccessPublic},
		{input: "Unlisted", want: AccessUnlisted},
		{input: " PRIVATE ", want: AccessPrivate},
		{input: "", wantErr: true},
		{input: "protected", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAccessControl(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ожидалась ошибка для %q, получено %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAccessControl(%q) = %v, ожидается %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAccessControl_StringRoundTrip(t *testing.T) {
	for _, ac := range AllAccessControls() {
		parsed, err := ParseAccessControl(ac.String())
		if err != nil {
			t.Fatalf("ParseAccessControl(%q): %v", ac.String(), err)
		}
		if parsed != ac {
			t.Errorf("после разбора %q получено %v", ac.String(), parsed)
		}
		if ac.Label() == "" {
			t.Errorf("пустая подпись для %v", ac)
		}
	}
}

func TestAccessControl_ZeroValueInvalid(t *testing.T) {
	var zero AccessControl
	if zero.Valid() {
		t.Error("нулевое значение не должно быть допустимым")
	}
	if _, err := zero.MarshalText(); err == nil {
		t.Error("ожидалась ошибка сериализации нулевого значения")
	}
}

func TestAccessControl_JSON(t *testing.T) {
	var payload struct {
		Access AccessControl `json:"access"`
	}
	if err := json.Unmarshal([]byte(`{"access":"unlisted"}`), &payload); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if payload.Access != AccessUnlisted {
		t.Errorf("Access = %v, ожидается unlisted", payload.Access)
	}

	if err := json.Unmarshal([]byte(`{"access":"everyone"}`), &payload); err == nil {
		t.Error("ожидалась ошибка для недопустимого значения")
	}

	data, err := json.Marshal(struct {
		Access AccessControl `json:"access"`
	}{Access: AccessPrivate})
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if string(data) != `{"access":"private"}` {
		t.Errorf("json = %s, ожидается {\"access\":\"private\"}", data)
	}
}
