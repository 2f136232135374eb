package automation

import (
	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
)

// Evaluate returns the transitions a tick triggers for cfg.
//
// A window rule matches when its value equals tick exactly; UnsetTime
// never matches. Every match yields one command, so two start windows on
// the same tick produce two "on" commands. All "on" commands come first
// (in rule order) followed by all "off" commands: applied in order, a
// stop window beats a start window that shares its tick.
//
// Evaluate is pure and safe to call concurrently.
func Evaluate(tick string, cfg *schedule.ModuleConfiguration) []TransitionCommand {
	if cfg == nil || tick == schedule.UnsetTime {
		return nil
	}

	var on, off []TransitionCommand
	for _, r := range cfg.Rules {
		if !r.Kind.IsWindow() || r.Unset() || r.Value != tick {
			continue
		}
		cmd := TransitionCommand{State: r.Kind.Transition(), Rule: r.Kind}
		if cmd.State == device.StateOn {
			on = append(on, cmd)
		} else {
			off = append(off, cmd)
		}
	}
	return append(on, off...)
}
