package configs

import (
	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeNATS MQType = "nats"

	DefaultMQURL           = "nats://localhost:4222"
	DefaultMQClientID      = "artvault-app"
	DefaultMaxReconnects   = 5
	DefaultReconnectWait   = 5  // 秒
	DefaultMQPingInterval  = 20 // 秒
	DefaultMQBufferSize    = 32768
	DefaultStreamName      = "artvault-stream"
	DefaultSubjectPrefix   = "artvault."
	DefaultDurablePrefix   = "artvault-durable"
	DefaultConsumerAckWait = 30 // 秒
)

// MQConfig 消息队列配置. 事件总线默认走 NATS（可选 JetStream 持久化）.
type MQConfig struct {
	Type          MQType `mapstructure:"type" rule:"oneof=nats"`
	URL           string `mapstructure:"url"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	ClientID      string `mapstructure:"client_id"`
	MaxReconnects int    `mapstructure:"max_reconnects" rule:"min=0,max=100"`
	ReconnectWait int    `mapstructure:"reconnect_wait" rule:"min=1,max=300"`
	PingInterval  int    `mapstructure:"ping_interval"  rule:"min=1,max=300"`
	BufferSize    int    `mapstructure:"buffer_size"    rule:"min=1024,max=1048576"`
	JWT           string `mapstructure:"jwt"`
	NKey          string `mapstructure:"nkey"`

	JetStreamEnabled       bool   `mapstructure:"jetstream_enabled"`
	JetStreamAutoProvision bool   `mapstructure:"jetstream_auto_provision"`
	JetStreamTrackMsgID    bool   `mapstructure:"jetstream_track_msg_id"`
	JetStreamAckAsync      bool   `mapstructure:"jetstream_ack_async"`
	JetStreamDurablePrefix string `mapstructure:"jetstream_durable_prefix"`
	StreamName             string `mapstructure:"stream_name"`
	SubjectPrefix          string `mapstructure:"subject_prefix"`
	ConsumerAckWait        int    `mapstructure:"consumer_ack_wait"`
}

func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeNATS)
	v.SetDefault("mq.url", DefaultMQURL)
	v.SetDefault("mq.client_id", DefaultMQClientID)
	v.SetDefault("mq.max_reconnects", DefaultMaxReconnects)
	v.SetDefault("mq.reconnect_wait", DefaultReconnectWait)
	v.SetDefault("mq.ping_interval", DefaultMQPingInterval)
	v.SetDefault("mq.buffer_size", DefaultMQBufferSize)

	v.SetDefault("mq.jetstream_enabled", true)
	v.SetDefault("mq.jetstream_auto_provision", true)
	v.SetDefault("mq.jetstream_track_msg_id", true)
	v.SetDefault("mq.jetstream_ack_async", true)
	v.SetDefault("mq.jetstream_durable_prefix", DefaultDurablePrefix)
	v.SetDefault("mq.stream_name", DefaultStreamName)
	v.SetDefault("mq.subject_prefix", DefaultSubjectPrefix)
	v.SetDefault("mq.consumer_ack_wait", DefaultConsumerAckWait)
}
