package webhook

import (
	"errors"
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`, false},
		{"missing id", `{"type":"checkout.session.completed"}`, true},
		{"missing type", `{"id":"evt_1"}`, true},
		{"not json", `t=1,v1=abc`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		ev, err := ParseEvent([]byte(tt.body))
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("%s: err = %v, want ErrMalformedEvent", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: err = %v", tt.name, err)
			continue
		}
		if ev.ID != "evt_1" {
			t.Errorf("%s: id = %q", tt.name, ev.ID)
		}
	}
}

func TestParseOrderIntent(t *testing.T) {
	valid := `{"items":[{"item_id":"A","quantity":2,"price_cents":1000}],"order_type":"online","customer_name":"Kim","tip_cents":300}`

	tests := []struct {
		name     string
		metadata map[string]string
		wantErr  bool
	}{
		{"valid", map[string]string{"order_data": valid}, false},
		{"missing key", map[string]string{}, true},
		{"nil metadata", nil, true},
		{"empty value", map[string]string{"order_data": ""}, true},
		{"not json", map[string]string{"order_data": "hello"}, true},
		{"no items", map[string]string{"order_data": `{"items":[]}`}, true},
		{"blank item id", map[string]string{"order_data": `{"items":[{"item_id":"","quantity":1}]}`}, true},
		{"zero quantity", map[string]string{"order_data": `{"items":[{"item_id":"A","quantity":0}]}`}, true},
		{"negative tip", map[string]string{"order_data": `{"items":[{"item_id":"A","quantity":1}],"tip_cents":-100}`}, true},
	}
	for _, tt := range tests {
		intent, err := ParseOrderIntent(tt.metadata)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedIntent) {
				t.Errorf("%s: err = %v, want ErrMalformedIntent", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: err = %v", tt.name, err)
			continue
		}
		if intent.CustomerName != "Kim" || intent.TipCents != 300 || len(intent.Items) != 1 {
			t.Errorf("%s: intent = %+v", tt.name, intent)
		}
	}
}
