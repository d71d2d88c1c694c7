// Package hub speaks the JSON-over-UDP pub/sub protocol of the robot's
// message hub: one JSON object per datagram, fire-and-forget.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeMessage     = "message"
)

// Topics used by the goal distance process.
const (
	TopicGoalDistance      = "goal_distance"
	TopicGoalDistanceClose = "goal_distance_close"
)

// Default ports on the loopback interface.
const (
	DefaultHubPort   = 8091
	DefaultLocalPort = 8096
)

// ErrNoTopic is returned by Decode for objects without a topic or type.
var ErrNoTopic = errors.New("hub: message has neither type nor topic")

// Message is a hub datagram. Subscribe and unsubscribe carry Topics; a
// published message carries Topic and Data.
type Message struct {
	Type   string          `json:"type,omitempty"`
	Topic  string          `json:"topic,omitempty"`
	Topics []string        `json:"topics,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// GoalDistance is the payload published on TopicGoalDistance. A nil Angle
// is encoded as JSON null.
type GoalDistance struct {
	Distance float64  `json:"distance"`
	Angle    *float64 `json:"angle"`
}

// SubscribeMessage builds a subscribe request.
func SubscribeMessage(topics ...string) Message {
	return Message{Type: TypeSubscribe, Topics: topics}
}

// UnsubscribeMessage builds an unsubscribe request. With no topics the hub
// drops the sender from every topic.
func UnsubscribeMessage(topics ...string) Message {
	return Message{Type: TypeUnsubscribe, Topics: topics}
}

// NewMessage wraps data as a published message on topic.
func NewMessage(topic string, data interface{}) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return Message{Type: TypeMessage, Topic: topic, Data: raw}, nil
}

// Encode serialises m as a single datagram.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses one datagram. Objects that carry neither a type nor a
// topic are rejected.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("decode hub message: %w", err)
	}
	if m.Type == "" && m.Topic == "" {
		return Message{}, ErrNoTopic
	}
	return m, nil
}

// DecodeGoalDistance extracts the GoalDistance payload of m.
func DecodeGoalDistance(m Message) (GoalDistance, error) {
	var gd GoalDistance
	if m.Topic != TopicGoalDistance {
		return gd, fmt.Errorf("topic %q is not %q", m.Topic, TopicGoalDistance)
	}
	if err := json.Unmarshal(m.Data, &gd); err != nil {
		return gd, fmt.Errorf("decode goal distance: %w", err)
	}
	return gd, nil
}
