package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the dbkeeper topic hierarchy.
//
//	dbkeeper/system/status              online/offline (retained, LWT)
//	dbkeeper/targets/{name}/health      latest health.Result (retained)
//	dbkeeper/targets/{name}/pool        latest pool.Stats (retained)
//	dbkeeper/targets/{name}/events      reconnect events
//	dbkeeper/command/{name}/reset       inbound reset requests
const (
	// TopicPrefix is the root of every dbkeeper topic.
	TopicPrefix = "dbkeeper"

	// TopicPrefixTargets is the base for per-target status topics.
	TopicPrefixTargets = "dbkeeper/targets"

	// TopicPrefixCommand is the base for inbound commands.
	TopicPrefixCommand = "dbkeeper/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "dbkeeper/system"
)

// Topics provides builders for dbkeeper MQTT topics.
//
//	topics := mqtt.Topics{}
//	healthTopic := topics.TargetHealth("orders-db")
//	// Returns: "dbkeeper/targets/orders-db/health"
type Topics struct{}

// SystemStatus returns the system status topic.
//
// Example: dbkeeper/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// TargetHealth returns the topic carrying a target's latest health result.
//
// Example: dbkeeper/targets/orders-db/health
func (Topics) TargetHealth(target string) string {
	return fmt.Sprintf("%s/%s/health", TopicPrefixTargets, target)
}

// TargetPool returns the topic carrying a target's pool statistics.
//
// Example: dbkeeper/targets/orders-db/pool
func (Topics) TargetPool(target string) string {
	return fmt.Sprintf("%s/%s/pool", TopicPrefixTargets, target)
}

// TargetEvents returns the topic for a target's reconnect events.
//
// Example: dbkeeper/targets/orders-db/events
func (Topics) TargetEvents(target string) string {
	return fmt.Sprintf("%s/%s/events", TopicPrefixTargets, target)
}

// TargetReset returns the command topic that resets a target.
//
// Example: dbkeeper/command/orders-db/reset
func (Topics) TargetReset(target string) string {
	return fmt.Sprintf("%s/%s/reset", TopicPrefixCommand, target)
}

// AllTargetResets returns a pattern matching every reset command.
//
// Pattern: dbkeeper/command/+/reset
func (Topics) AllTargetResets() string {
	return fmt.Sprintf("%s/+/reset", TopicPrefixCommand)
}

// AllTargetHealth returns a pattern matching every target health topic.
//
// Pattern: dbkeeper/targets/+/health
func (Topics) AllTargetHealth() string {
	return fmt.Sprintf("%s/+/health", TopicPrefixTargets)
}

// AllTopics returns a pattern matching all dbkeeper topics.
//
// Pattern: dbkeeper/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// TargetFromCommand extracts the target name from a command topic such as
// dbkeeper/command/orders-db/reset. It returns the name and command verb.
func (Topics) TargetFromCommand(topic string) (target, command string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixCommand+"/")
	if !found {
		return "", "", false
	}
	target, command, found = strings.Cut(rest, "/")
	if !found || target == "" || command == "" || strings.Contains(command, "/") {
		return "", "", false
	}
	return target, command, true
}
