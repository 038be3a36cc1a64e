package gate

import (
	"encoding/json"
	"testing"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Timestamp
		wantErr bool
	}{
		{name: "number", body: `{"timestamp":1700000000}`, want: Timestamp{Value: 1700000000, Set: true}},
		{name: "string", body: `{"timestamp":"1700000000"}`, want: Timestamp{Value: 1700000000, Set: true}},
		{name: "negative", body: `{"timestamp":-5}`, want: Timestamp{Value: -5, Set: true}},
		{name: "absent", body: `{}`, want: Timestamp{}},
		{name: "null", body: `{"timestamp":null}`, want: Timestamp{}},
		{name: "fraction", body: `{"timestamp":1700000000.5}`, wantErr: true},
		{name: "exponent", body: `{"timestamp":1.7e9}`, wantErr: true},
		{name: "empty string", body: `{"timestamp":""}`, wantErr: true},
		{name: "word", body: `{"timestamp":"now"}`, wantErr: true},
		{name: "bool", body: `{"timestamp":true}`, wantErr: true},
		{name: "milliseconds overflow", body: `{"timestamp":99999999999999999999}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req IssueRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && req.Timestamp != tt.want {
				t.Errorf("Timestamp = %+v, want %+v", req.Timestamp, tt.want)
			}
		})
	}
}

func TestIssueRequest_ProbeIsOptional(t *testing.T) {
	var req IssueRequest
	body := `{"resourceId":"chat","timestamp":1,"probe":{"score":3,"suspicious":false,"signals":{"noPlugins":true}}}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.Probe == nil || req.Probe.Signals == nil || !req.Probe.Signals.NoPlugins {
		t.Errorf("Probe = %+v", req.Probe)
	}

	req = IssueRequest{}
	if err := json.Unmarshal([]byte(`{"resourceId":"chat","timestamp":1}`), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.Probe != nil {
		t.Error("Probe should be nil when absent")
	}
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(RedeemRequest{ResourceID: "chat", Timestamp: Timestamp{Value: 42, Set: true}, Signature: "ab"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"resourceId":"chat","timestamp":42,"signature":"ab"}` {
		t.Errorf("Marshal() = %s", b)
	}
	b, _ = json.Marshal(Timestamp{})
	if string(b) != "null" {
		t.Errorf("Marshal(unset) = %s, want null", b)
	}
}
