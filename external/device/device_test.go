package device

import "testing"

func TestMatchInput(t *testing.T) {
	candidates := []inputCandidate{
		{Index: 0, Name: "HDMI Output", MaxInputChannels: 0},
		{Index: 1, Name: "USB Microphone Pro", MaxInputChannels: 1},
		{Index: 2, Name: "USB Microphone", MaxInputChannels: 2},
		{Index: 3, Name: "Built-in Input", MaxInputChannels: 2},
	}
	cases := []struct {
		id   string
		want int
	}{
		{id: "3", want: 3},
		{id: "0", want: -1},
		{id: "9", want: -1},
		{id: "usb microphone", want: 2},
		{id: "built-in", want: 3},
		{id: "HDMI", want: -1},
		{id: "webcam", want: -1},
	}
	for _, tc := range cases {
		if got := matchInput(candidates, tc.id); got != tc.want {
			t.Fatalf("matchInput(%q): expected %d, got %d", tc.id, tc.want, got)
		}
	}
}
