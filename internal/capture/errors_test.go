package capture

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "sentinel wrapped", err: fmt.Errorf("open: %w", ErrDeviceBusy), want: ErrDeviceBusy},
		{name: "permission message", err: errors.New("NotAllowedError: Permission denied"), want: ErrPermissionDenied},
		{name: "missing device", err: errors.New("Invalid device"), want: ErrDeviceNotFound},
		{name: "no default input", err: errors.New("no default input device"), want: ErrDeviceNotFound},
		{name: "busy device", err: errors.New("Device unavailable"), want: ErrDeviceBusy},
		{name: "unknown", err: errors.New("host error -9999"), want: ErrUnknownCapture},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if !errors.Is(got, tc.err) {
				t.Fatal("expected the driver cause to stay in the chain")
			}
		})
	}
}

func TestClassify_NilAndIdempotent(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	first := Classify(errors.New("device busy"))
	if second := Classify(first); second != first {
		t.Fatal("expected classified error to be returned unchanged")
	}
}

func TestDescribe(t *testing.T) {
	if Describe(nil) != "" {
		t.Fatal("expected empty description for nil")
	}
	err := Classify(errors.New("permission denied"))
	if err.Error() != Describe(ErrPermissionDenied) {
		t.Fatalf("expected human readable message, got %q", err.Error())
	}
	seen := map[string]bool{}
	for _, kind := range taxonomy {
		msg := Describe(kind)
		if msg == "" || seen[msg] {
			t.Fatalf("expected a distinct message for %v, got %q", kind, msg)
		}
		seen[msg] = true
	}
}
