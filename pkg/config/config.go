package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ehgkals/realtime-fin-mq/util"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the broker, the Kafka comparator and the
// HTTP surface. It is assembled in three layers, lowest precedence first:
// built-in defaults, an optional YAML/JSON file, then explicitly-set flags.
type Config struct {
	// custom-mq.*
	QueueSize             int    `yaml:"queue_size" json:"custom-mq.queueSize"`
	DlqSize               int    `yaml:"dlq_size" json:"custom-mq.dlqSize"`
	PollIntervalMs        int    `yaml:"poll_interval_ms" json:"custom-mq.pollIntervalMs"`
	WalPath               string `yaml:"wal_path" json:"custom-mq.walPath"`
	NumConsumers          int    `yaml:"num_consumers" json:"custom-mq.numConsumers"`
	IdempotencyPermanent  bool   `yaml:"idempotency_permanent" json:"custom-mq.idempotencyPermanent"`

	// cluster.*
	NodeID  string   `yaml:"node_id" json:"cluster.nodeId"`
	Peers   []string `yaml:"peers" json:"cluster.peers"`
	Quorum  int      `yaml:"quorum" json:"cluster.quorum"`

	// kafka.* (ambient comparator)
	KafkaBootstrapServers []string `yaml:"kafka_bootstrap_servers" json:"kafka.bootstrapServers"`
	KafkaTopic            string   `yaml:"kafka_topic" json:"kafka.topic"`
	KafkaGroupID          string   `yaml:"kafka_group_id" json:"kafka.groupId"`
	KafkaEnabled          bool     `yaml:"kafka_enabled" json:"kafka.enabled"`

	// http.* / log.* (ambient bootstrap)
	HTTPListenAddr string        `yaml:"http_listen_addr" json:"http.listenAddr"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log.level"`
}

// LoadConfig reads flags, overlays an optional config file, then re-applies
// any flag the caller set explicitly on the command line so flags always win
// over the file. CONFIG_PATH in the environment supplies a default path when
// -config was not passed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	fs := flag.CommandLine

	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	fs.IntVar(&cfg.QueueSize, "queue-size", 10000, "Main queue capacity")
	fs.IntVar(&cfg.DlqSize, "dlq-size", 1000, "Dead-letter queue capacity")
	fs.IntVar(&cfg.PollIntervalMs, "poll-interval-ms", 100, "Consumer poll/park interval in milliseconds")
	fs.StringVar(&cfg.WalPath, "wal-path", "./mymq-wal.log", "Write-ahead log file path")
	fs.IntVar(&cfg.NumConsumers, "num-consumers", 1, "Number of consumer worker goroutines")
	fs.BoolVar(&cfg.IdempotencyPermanent, "idempotency-permanent", false, "Keep idempotency IDs forever instead of releasing on consume success")

	fs.StringVar(&cfg.NodeID, "node-id", "node-1", "Local node identifier")
	peersStr := fs.String("peers", "", "Comma-separated list of peer replication URLs")
	fs.IntVar(&cfg.Quorum, "quorum", 1, "Required replication acknowledgements, including self")

	kafkaServersStr := fs.String("kafka-bootstrap-servers", "", "Comma-separated Kafka bootstrap servers")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", "mymq-compare", "Kafka comparison topic")
	fs.StringVar(&cfg.KafkaGroupID, "kafka-group-id", "mymq-dashboard", "Kafka consumer group id")
	fs.BoolVar(&cfg.KafkaEnabled, "kafka-enabled", false, "Enable the Kafka comparator")

	fs.StringVar(&cfg.HTTPListenAddr, "http-listen-addr", ":8080", "HTTP surface listen address")
	logLevelStr := fs.String("log-level", "info", "Log level (debug, info, warn, error)")

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	fs.Parse(os.Args[1:])

	cfg.Peers = splitCSV(*peersStr)
	cfg.KafkaBootstrapServers = splitCSV(*kafkaServersStr)
	cfg.LogLevel = parseLogLevel(*logLevelStr)

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			util.Warn("config file %s unreadable, falling back to flags/env: %v", *configPath, err)
		} else if err := unmarshalConfig(*configPath, data, cfg); err != nil {
			util.Warn("config file %s malformed, falling back to flags/env: %v", *configPath, err)
		}
	}

	reapplyExplicitFlags(cfg, fs, explicit, *peersStr, *kafkaServersStr, *logLevelStr)

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)

	return cfg, nil
}

func unmarshalConfig(path string, data []byte, cfg *Config) error {
	if strings.HasSuffix(path, ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// reapplyExplicitFlags re-pins fields the caller set on the command line,
// so a config file can override defaults but never an explicit flag.
func reapplyExplicitFlags(cfg *Config, fs *flag.FlagSet, explicit map[string]bool, peersStr, kafkaServersStr, logLevelStr string) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "queue-size":
			cfg.QueueSize = util.ParseInt(f.Value.String(), cfg.QueueSize)
		case "dlq-size":
			cfg.DlqSize = util.ParseInt(f.Value.String(), cfg.DlqSize)
		case "poll-interval-ms":
			cfg.PollIntervalMs = util.ParseInt(f.Value.String(), cfg.PollIntervalMs)
		case "wal-path":
			cfg.WalPath = f.Value.String()
		case "num-consumers":
			cfg.NumConsumers = util.ParseInt(f.Value.String(), cfg.NumConsumers)
		case "idempotency-permanent":
			cfg.IdempotencyPermanent = util.ParseBool(f.Value.String(), cfg.IdempotencyPermanent)
		case "node-id":
			cfg.NodeID = f.Value.String()
		case "peers":
			cfg.Peers = splitCSV(peersStr)
		case "quorum":
			cfg.Quorum = util.ParseInt(f.Value.String(), cfg.Quorum)
		case "kafka-bootstrap-servers":
			cfg.KafkaBootstrapServers = splitCSV(kafkaServersStr)
		case "kafka-topic":
			cfg.KafkaTopic = f.Value.String()
		case "kafka-group-id":
			cfg.KafkaGroupID = f.Value.String()
		case "kafka-enabled":
			cfg.KafkaEnabled = util.ParseBool(f.Value.String(), cfg.KafkaEnabled)
		case "http-listen-addr":
			cfg.HTTPListenAddr = f.Value.String()
		case "log-level":
			cfg.LogLevel = parseLogLevel(logLevelStr)
		}
	})
}

func parseLogLevel(s string) util.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return util.LogLevelDebug
	case "warn", "warning":
		return util.LogLevelWarn
	case "error":
		return util.LogLevelError
	default:
		return util.LogLevelInfo
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize clamps every field to a safe default, mirroring the broker's
// tolerance for a sparse or malformed config file.
func (cfg *Config) Normalize() {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.DlqSize <= 0 {
		cfg.DlqSize = 1000
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = 100
	}
	if strings.TrimSpace(cfg.WalPath) == "" {
		cfg.WalPath = "./mymq-wal.log"
	}
	if cfg.NumConsumers <= 0 {
		cfg.NumConsumers = 1
	}

	if strings.TrimSpace(cfg.NodeID) == "" {
		cfg.NodeID = "node-1"
	}
	if cfg.Quorum <= 0 {
		cfg.Quorum = 1
	}
	maxQuorum := 1 + len(cfg.Peers)
	if cfg.Quorum > maxQuorum {
		util.Warn("quorum %d exceeds 1+len(peers)=%d, clamping", cfg.Quorum, maxQuorum)
		cfg.Quorum = maxQuorum
	}

	if strings.TrimSpace(cfg.KafkaTopic) == "" {
		cfg.KafkaTopic = "mymq-compare"
	}
	if strings.TrimSpace(cfg.KafkaGroupID) == "" {
		cfg.KafkaGroupID = "mymq-dashboard"
	}

	if strings.TrimSpace(cfg.HTTPListenAddr) == "" {
		cfg.HTTPListenAddr = ":8080"
	}
}

// String renders the config for startup logs without dumping secrets (there
// are none in this config, but the pattern matches the teacher's loaders).
func (cfg *Config) String() string {
	return fmt.Sprintf("node=%s queueSize=%d dlqSize=%d numConsumers=%d quorum=%d peers=%v kafkaEnabled=%v http=%s",
		cfg.NodeID, cfg.QueueSize, cfg.DlqSize, cfg.NumConsumers, cfg.Quorum, cfg.Peers, cfg.KafkaEnabled, cfg.HTTPListenAddr)
}
