// Package zwave adapts an external Z-Wave gateway to the scheduling core.
//
// The gateway process owns the radio and the mesh protocol; this package
// talks to it over MQTT:
//
//	graylogic/zwave/{gateway_id}/event/{kind}   gateway → controller (events)
//	graylogic/command/zwave/{node_id}           controller → gateway
//	graylogic/ack/zwave/{node_id}               gateway → controller
//	graylogic/request/zwave/{request_id}        controller → gateway
//	graylogic/response/zwave/{request_id}       gateway → controller
//
// Gateway translates events into automation router messages, keeps the
// node table behind device.NodeLister, and hands out device.BinarySwitch
// handles whose Set resolves when the matching ack arrives.
//
// Listener policies (FireOnce, FireAlways) decide per event kind whether
// repeats are handled. By default node_ready fires once per node so a
// node's capabilities are registered on its first interview only.
package zwave
