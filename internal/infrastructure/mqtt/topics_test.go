package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"system status", topics.SystemStatus(), "dbkeeper/system/status"},
		{"health", topics.TargetHealth("orders-db"), "dbkeeper/targets/orders-db/health"},
		{"pool", topics.TargetPool("orders-db"), "dbkeeper/targets/orders-db/pool"},
		{"events", topics.TargetEvents("orders-db"), "dbkeeper/targets/orders-db/events"},
		{"reset", topics.TargetReset("orders-db"), "dbkeeper/command/orders-db/reset"},
		{"all resets", topics.AllTargetResets(), "dbkeeper/command/+/reset"},
		{"all health", topics.AllTargetHealth(), "dbkeeper/targets/+/health"},
		{"all", topics.AllTopics(), "dbkeeper/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTargetFromCommand(t *testing.T) {
	tests := []struct {
		topic       string
		wantTarget  string
		wantCommand string
		wantOK      bool
	}{
		{"dbkeeper/command/orders-db/reset", "orders-db", "reset", true},
		{"dbkeeper/command/local/reset", "local", "reset", true},
		{"dbkeeper/command/local", "", "", false},
		{"dbkeeper/command//reset", "", "", false},
		{"dbkeeper/command/a/b/c", "", "", false},
		{"dbkeeper/targets/local/health", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			target, command, ok := Topics{}.TargetFromCommand(tt.topic)
			if target != tt.wantTarget || command != tt.wantCommand || ok != tt.wantOK {
				t.Errorf("TargetFromCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, target, command, ok, tt.wantTarget, tt.wantCommand, tt.wantOK)
			}
		})
	}
}
