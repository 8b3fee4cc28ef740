// Package correlation turns the broadcast bus into private request/reply
// exchanges.
//
// Every inbound message reaches every handler on the bus. A caller that
// needs "the next message meant for me" calls Registry.Await with a topic
// filter and a predicate; the registry adds one bus handler for that call,
// hands back the first message satisfying the predicate, and removes the
// handler again whether the call matched, timed out or was abandoned.
//
// # Guarantees
//
//   - An entry completes at most once. Match and deadline race through a
//     single compare-and-swap; the loser does nothing.
//   - Every bus handler an entry adds is removed exactly once, on every
//     return path.
//   - Messages failing a predicate are ignored by that entry only. Other
//     entries and unrelated consumers still see them.
//   - Entries are independent; any number may be outstanding at once.
//
// # Usage
//
//	msg, err := registry.Await(ctx, mqtt.Topics{}.Realtime(), func(ctx context.Context, m correlation.Message) bool {
//	    return bytes.Contains(m.Payload, []byte(`"ABCDEF123456"`))
//	}, 5*time.Second)
//	if errors.Is(err, correlation.ErrTimeout) {
//	    // 408
//	}
package correlation
