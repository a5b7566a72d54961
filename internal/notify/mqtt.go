package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/notclassx-sys/FAM-ROOM/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTEscalator 通过 MQTT 通知呼叫网关执行升级动作
type MQTTEscalator struct {
	client mqtt.Client
	roomID string
	topic  string
	qos    byte
	logger *zap.Logger
}

// escalationMessage 发往呼叫网关的消息体
type escalationMessage struct {
	RoomID    string `json:"room_id"`
	AlertID   string `json:"alert_id"`
	Timestamp int64  `json:"timestamp"`
}

// NewMQTTEscalator 创建 MQTT 升级通知器并连接 broker
func NewMQTTEscalator(cfg *config.MQTTConfig, roomID string, logger *zap.Logger) (*MQTTEscalator, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTEscalator{
		client: client,
		roomID: roomID,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		logger: logger,
	}, nil
}

// Escalate 发布升级消息（作为 engine.EscalateFunc 注入）
// 发布失败只记录：升级副作用的失败不能波及其他定时器
func (m *MQTTEscalator) Escalate(alertID string) {
	payload, err := json.Marshal(escalationMessage{
		RoomID:    m.roomID,
		AlertID:   alertID,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		m.logger.Error("Failed to marshal escalation message",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		return
	}

	token := m.client.Publish(m.topic, m.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		m.logger.Error("Failed to publish escalation message",
			zap.String("alert_id", alertID),
			zap.String("topic", m.topic),
			zap.Error(token.Error()),
		)
		return
	}

	m.logger.Info("Escalation published to call gateway",
		zap.String("alert_id", alertID),
		zap.String("topic", m.topic),
	)
}

// Close 断开 MQTT 连接
func (m *MQTTEscalator) Close() {
	m.client.Disconnect(250)
}
