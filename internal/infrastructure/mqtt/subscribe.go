package mqtt

import (
	"fmt"
)

// Subscribe asks the broker for messages on topic and adds it to the set
// of required subscriptions restored after every reconnect.
//
// Subscribing only controls what the broker sends; messages reach code
// through handlers registered with AddHandler.
func (c *Client) Subscribe(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = qos
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.pahoHandler)
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// SubscribeAll subscribes every topic at the same QoS, stopping at the first failure.
func (c *Client) SubscribeAll(topics []string, qos byte) error {
	for _, topic := range topics {
		if err := c.Subscribe(topic, qos); err != nil {
			return fmt.Errorf("subscribing %s: %w", topic, err)
		}
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of required subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks the exact topic string, not pattern matches.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
