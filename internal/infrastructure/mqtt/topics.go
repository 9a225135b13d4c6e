package mqtt

// Topic prefixes for stockapi MQTT topics.
const (
	// TopicPrefix is the root of every stockapi topic.
	TopicPrefix = "stockapi"

	// TopicPrefixSystem is the base for process-level topics.
	TopicPrefixSystem = TopicPrefix + "/system"

	// TopicPrefixDatabase is the base for database manager topics.
	TopicPrefixDatabase = TopicPrefix + "/database"
)

// Topics provides builders for stockapi MQTT topics.
//
//	topic := mqtt.Topics{}.DatabaseState()
//	// Returns: "stockapi/database/state"
type Topics struct{}

// SystemStatus returns the process online/offline topic, also used for the LWT.
//
// Example: stockapi/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DatabaseState returns the topic mirroring the manager lifecycle state.
//
// Example: stockapi/database/state
func (Topics) DatabaseState() string {
	return TopicPrefixDatabase + "/state"
}

// DatabaseStats returns the topic for pool statistics snapshots.
//
// Example: stockapi/database/stats
func (Topics) DatabaseStats() string {
	return TopicPrefixDatabase + "/stats"
}

// AllTopics returns a wildcard matching every stockapi topic.
//
// Example: stockapi/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
