// Package control publishes actuator commands and threshold settings to
// farm devices over the message bus.
//
// A command is confirmed once the broker acknowledges the publish. Devices
// do not echo commands back, so there is nothing further to wait for; the
// caller's deadline bounds the publish itself.
//
//	d := control.NewDispatcher(client)
//	err := d.Send(ctx, control.Command{
//	    DeviceID:   "ABCDEF123456",
//	    Capability: control.CapabilityHeater,
//	    Value:      true,
//	}, 5*time.Second)
//	switch {
//	case errors.Is(err, control.ErrTimeout):
//	    // 408
//	case errors.Is(err, control.ErrTransport):
//	    // 500
//	}
package control
