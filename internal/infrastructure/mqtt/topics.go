package mqtt

import "fmt"

// TopicPrefixSystem is the base for system topics.
const TopicPrefixSystem = "graylogic/system"

// Topics provides builders for the topics the front door publishes to.
//
//	topics := mqtt.Topics{}
//	topics.HTTPBan() // "graylogic/system/http/ban"
type Topics struct{}

// SystemStatus returns the online/offline status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// HTTPLoginAttempt returns the topic announcing failed authentication attempts.
func (Topics) HTTPLoginAttempt() string {
	return fmt.Sprintf("%s/http/login_attempt", TopicPrefixSystem)
}

// HTTPBan returns the topic announcing new IP bans.
func (Topics) HTTPBan() string {
	return fmt.Sprintf("%s/http/ban", TopicPrefixSystem)
}
