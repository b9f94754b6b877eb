package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
)

// Publisher MQTT 发布接口（mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier 发布通知到 MQTT 主题
// 主题格式: {prefix}/violation/{subject_id}、{prefix}/pest/{severity}
type MQTTNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
}

// NewMQTTNotifier 创建 MQTT 通知器
func NewMQTTNotifier(publisher Publisher, topicPrefix string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		qos:         qos,
	}
}

func (m *MQTTNotifier) NotifyViolation(ctx context.Context, n *models.ViolationNotification) error {
	return m.publish(fmt.Sprintf("%s/violation/%s", m.topicPrefix, n.SubjectID), n)
}

func (m *MQTTNotifier) NotifyDetection(ctx context.Context, n *models.DetectionNotification) error {
	return m.publish(fmt.Sprintf("%s/pest/%s", m.topicPrefix, n.Event.Severity), n)
}

func (m *MQTTNotifier) publish(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return m.publisher.Publish(topic, m.qos, false, payload)
}
