package main

import (
	"net/url"
	"testing"
)

func TestRoomURL(t *testing.T) {
	serverURL = "https://desk.example.com"

	tests := []struct {
		name       string
		advertised string
		wantHost   string
		wantScheme string
	}{
		{"advertised", "ws://rooms.example.com/ws/room", "rooms.example.com", "ws"},
		{"derived from server", "", "desk.example.com", "wss"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := roomURL(tt.advertised, "tok en")
			if err != nil {
				t.Fatalf("roomURL failed: %v", err)
			}
			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("bad URL %q: %v", got, err)
			}
			if u.Scheme != tt.wantScheme || u.Host != tt.wantHost || u.Path != "/ws/room" {
				t.Errorf("roomURL = %q", got)
			}
			if u.Query().Get("token") != "tok en" {
				t.Errorf("token = %q", u.Query().Get("token"))
			}
		})
	}
}
