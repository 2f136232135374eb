package automation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

func TestMotionLight_Defaults(t *testing.T) {
	got := MotionLight{}.HandleValue(context.Background(), "porch", motion(12))

	assert.Equal(t, []ValueAction{
		{State: device.StateOn, Trigger: TriggerMotion},
		{State: device.StateOff, Trigger: TriggerMotion, After: DefaultMotionHold},
	}, got)
}

func TestMotionLight_Filters(t *testing.T) {
	m := MotionLight{Sensors: []device.NodeID{9}, Property: "Home Security", Hold: 5 * time.Minute}
	ctx := context.Background()

	tests := []struct {
		name string
		v    ValueChanged
		want int
	}{
		{"matching sensor", ValueChanged{Kind: ValueUpdated, NodeID: 9, Property: "Home Security", Value: 8.0}, 2},
		{"other sensor", ValueChanged{Kind: ValueUpdated, NodeID: 10, Property: "Home Security", Value: 8.0}, 0},
		{"other property", ValueChanged{Kind: ValueUpdated, NodeID: 9, Property: DefaultMotionProperty, Value: 8.0}, 0},
		{"notification", ValueChanged{Kind: ValueNotification, NodeID: 9, Property: "Home Security", Value: 8.0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.HandleValue(ctx, "porch", tt.v)
			assert.Len(t, got, tt.want)
			if tt.want > 0 {
				assert.Equal(t, 5*time.Minute, got[1].After)
			}
		})
	}
}

func alarm(node device.NodeID, kind ValueKind, value any) ValueChanged {
	return ValueChanged{Kind: kind, NodeID: node, Property: DefaultAlarmProperty, Value: value}
}

func TestAlarmWatch_RaiseAndClear(t *testing.T) {
	hub := &fakeHub{}
	w := NewAlarmWatch(DefaultAlarmOptions(), hub, nil)
	fixed := time.Date(2026, 10, 16, 21, 4, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }
	ctx := context.Background()

	assert.Nil(t, w.HandleValue(ctx, "hall", alarm(6, ValueUpdated, 3.0)))
	assert.Equal(t, []device.NodeID{6}, w.Active())

	w.HandleValue(ctx, "hall", alarm(6, ValueNotification, json.Number("3")))
	w.HandleValue(ctx, "hall", alarm(6, ValueUpdated, 0.0))
	assert.Empty(t, w.Active())

	msgs := hub.Messages()
	require.Len(t, msgs, 2, "the duplicate notification is not reported")
	assert.Equal(t, ChannelAlarm, msgs[0].channel)
	assert.Equal(t, AlarmEvent{
		Module:   "hall",
		NodeID:   6,
		Property: DefaultAlarmProperty,
		State:    AlarmRaised,
		Value:    3.0,
		At:       fixed,
	}, msgs[0].payload)
	assert.Equal(t, AlarmCleared, msgs[1].payload.(AlarmEvent).State)
}

func TestAlarmWatch_IgnoresNoise(t *testing.T) {
	hub := &fakeHub{}
	w := NewAlarmWatch(AlarmOptions{Sensors: []device.NodeID{6}, Raised: 3}, hub, nil)
	ctx := context.Background()

	w.HandleValue(ctx, "hall", alarm(6, ValueUpdated, 0.0))
	w.HandleValue(ctx, "hall", alarm(6, ValueUpdated, "idle"))
	w.HandleValue(ctx, "hall", alarm(6, ValueUpdated, 7.0))
	w.HandleValue(ctx, "hall", alarm(8, ValueUpdated, 3.0))
	w.HandleValue(ctx, "hall", ValueChanged{Kind: ValueUpdated, NodeID: 6, Property: "Battery level", Value: 3.0})

	assert.Empty(t, hub.Messages())
	assert.Empty(t, w.Active())
}

func TestAlarmWatch_TracksNodesSeparately(t *testing.T) {
	w := NewAlarmWatch(DefaultAlarmOptions(), nil, nil)
	ctx := context.Background()

	w.HandleValue(ctx, "hall", alarm(8, ValueUpdated, 3))
	w.HandleValue(ctx, "hall", alarm(6, ValueUpdated, int64(3)))
	w.HandleValue(ctx, "hall", alarm(8, ValueUpdated, 0))

	assert.Equal(t, []device.NodeID{6}, w.Active())
}

func TestValueHandlers_JoinsActions(t *testing.T) {
	hub := &fakeHub{}
	hs := ValueHandlers{
		MotionLight{Property: DefaultAlarmProperty},
		NewAlarmWatch(DefaultAlarmOptions(), hub, nil),
		IgnoreValues,
	}

	got := hs.HandleValue(context.Background(), "hall", alarm(6, ValueUpdated, 3.0))

	assert.Len(t, got, 2)
	assert.Len(t, hub.Messages(), 1)
}
