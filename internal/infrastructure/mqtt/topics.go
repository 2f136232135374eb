package mqtt

import "fmt"

// Topic roots.
//
// Commands, acks and request/response pairs use the flat scheme
// graylogic/{category}/zwave/{address}. Driver events are namespaced by
// gateway instance because several gateways may share one broker.
const (
	// TopicPrefix is the root of every controller topic.
	TopicPrefix = "graylogic"

	// ProtocolZWave is the protocol segment used in flat topics.
	ProtocolZWave = "zwave"

	// TopicPrefixCore is the root of topics the controller itself publishes.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the root of system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for controller MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ZWaveCommand(7) // "graylogic/command/zwave/7"
type Topics struct{}

// ZWaveEvent returns the topic a gateway publishes driver events on.
//
// Example: graylogic/zwave/zwave-01/event/node_ready
func (Topics) ZWaveEvent(gatewayID, kind string) string {
	return fmt.Sprintf("%s/%s/%s/event/%s", TopicPrefix, ProtocolZWave, gatewayID, kind)
}

// AllZWaveEvents returns a pattern matching every event from one gateway.
//
// Pattern: graylogic/zwave/zwave-01/event/+
func (Topics) AllZWaveEvents(gatewayID string) string {
	return fmt.Sprintf("%s/%s/%s/event/+", TopicPrefix, ProtocolZWave, gatewayID)
}

// ZWaveCommand returns the topic for commands addressed to a node.
//
// Example: graylogic/command/zwave/7
func (Topics) ZWaveCommand(nodeID int) string {
	return fmt.Sprintf("%s/command/%s/%d", TopicPrefix, ProtocolZWave, nodeID)
}

// ZWaveAck returns the topic a gateway acknowledges node commands on.
//
// Example: graylogic/ack/zwave/7
func (Topics) ZWaveAck(nodeID int) string {
	return fmt.Sprintf("%s/ack/%s/%d", TopicPrefix, ProtocolZWave, nodeID)
}

// AllZWaveAcks returns a pattern matching acks for every node.
//
// Pattern: graylogic/ack/zwave/+
func (Topics) AllZWaveAcks() string {
	return fmt.Sprintf("%s/ack/%s/+", TopicPrefix, ProtocolZWave)
}

// ZWaveRequest returns the topic for controller-level requests
// (inclusion, exclusion, node listing).
//
// Example: graylogic/request/zwave/3f2a...
func (Topics) ZWaveRequest(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, ProtocolZWave, requestID)
}

// ZWaveResponse returns the topic a gateway answers a request on.
//
// Example: graylogic/response/zwave/3f2a...
func (Topics) ZWaveResponse(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, ProtocolZWave, requestID)
}

// AllZWaveResponses returns a pattern matching every request response.
//
// Pattern: graylogic/response/zwave/+
func (Topics) AllZWaveResponses() string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefix, ProtocolZWave)
}

// CoreModuleDispatch returns the topic dispatch reports for a module are
// mirrored on.
//
// Example: graylogic/core/module/outdoor-light-switch/dispatch
func (Topics) CoreModuleDispatch(module string) string {
	return fmt.Sprintf("%s/module/%s/dispatch", TopicPrefixCore, module)
}

// SystemStatus returns the controller's retained online/offline topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
