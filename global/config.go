package global

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"CardArena/logger"
	"CardArena/tools/ids"
)

const NodeTypeGateway = "arenaGateway"

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type NatsConfig struct {
	Servers       []string `mapstructure:"servers"`
	BattleSubject string   `mapstructure:"battle_subject"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	ReceiptTopic string   `mapstructure:"receipt_topic"`
}

type AppConfig struct {
	NodeType  string `mapstructure:"node_type"`
	GatewayID string `mapstructure:"gateway_id"`
	NodeID    int64  `mapstructure:"node_id"`

	HTTPAddr string `mapstructure:"http_addr"`
	GrpcAddr string `mapstructure:"grpc_addr"`

	// TokenSecret signs both the legacy user token and the service JWT.
	TokenSecret   string        `mapstructure:"token_secret"`
	TokenMaxAge   time.Duration `mapstructure:"token_max_age"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
	PresenceTTL   time.Duration `mapstructure:"presence_ttl"`

	PostgresURL string      `mapstructure:"postgres_url"`
	Mongo       MongoConfig `mapstructure:"mongo"`
	Redis       RedisConfig `mapstructure:"redis"`
	Nats        NatsConfig  `mapstructure:"nats"`
	Kafka       KafkaConfig `mapstructure:"kafka"`
}

var Global = AppConfig{
	NodeType:  NodeTypeGateway,
	GatewayID: "arena_gw-1",
	NodeID:    1,
	HTTPAddr:  ":8080",
	GrpcAddr:  ":50052",
}

// Load reads config.yaml from path (or the working directory when empty) and
// applies ARENA_* environment overrides on top of the built-in defaults.
func Load(path string) error {
	v := viper.New()

	v.SetDefault("node_type", NodeTypeGateway)
	v.SetDefault("gateway_id", "arena_gw-1")
	v.SetDefault("node_id", 1)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":50052")
	v.SetDefault("token_max_age", 24*time.Hour)
	v.SetDefault("drain_interval", 500*time.Millisecond)
	v.SetDefault("presence_ttl", 2*time.Minute)
	v.SetDefault("mongo.database", "cardarena")
	v.SetDefault("mongo.collection", "pending_messages")
	v.SetDefault("nats.battle_subject", "arena.battle.events")
	v.SetDefault("kafka.receipt_topic", "arena_message_receipts")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		logger.Infof("no config file found, using defaults and environment")
	}

	if err := v.Unmarshal(&Global); err != nil {
		return err
	}

	ids.SetNodeID(Global.NodeID)
	return nil
}

func GetJwtSecret() []byte {
	return []byte(Global.TokenSecret)
}
