// Package schedule holds module configurations and the tick format they
// are matched against.
//
// A module configuration names the actuators a behavioural module drives
// and five parameters: two start/stop time windows and a normal state.
// The on-disk layout is:
//
//	{
//	  "name": "Outdoor Light Switch",
//	  "registeredActuators": [{"nodeId": "3"}],
//	  "userAppConfigurationParameters": [
//	    {"name": "Start time 1", "value": "7:00pm"},
//	    {"name": "Stop time 1",  "value": "11:30pm"},
//	    {"name": "Start time 2", "value": "00:00"},
//	    {"name": "Stop time 2",  "value": "00:00"},
//	    {"name": "Normal State", "value": "off"}
//	  ]
//	}
//
// Times use the tick format "H:MMam/pm" (see FormatTick). The value
// "00:00" disables a window.
//
// Store keeps the active configuration behind an atomic pointer so
// readers never observe a half-applied reload.
package schedule
