// Package config 提供学习与检索服务的配置结构（支持 YAML/JSON）。
//
// 配置只描述外部依赖与调参项，组件的装配由调用方完成：
// config 包不 import 业务包，避免循环依赖。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是服务的顶层配置。
type Config struct {
	Kafka          KafkaConfig          `yaml:"kafka" json:"kafka"`
	Redis          RedisConfig          `yaml:"redis" json:"redis"`
	Feast          FeastConfig          `yaml:"feast" json:"feast"`
	Recommendation RecommendationConfig `yaml:"recommendation" json:"recommendation"`
	Training       TrainingConfig       `yaml:"training" json:"training"`
}

// KafkaConfig 是训练事件流的接入配置。
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers" json:"brokers"`
	TrainingTopic string   `yaml:"training_topic" json:"training_topic"`
	GroupID       string   `yaml:"group_id" json:"group_id"`
	ClientID      string   `yaml:"client_id" json:"client_id"`
}

// RedisConfig 是嵌入持久层配置。
type RedisConfig struct {
	Addr       string `yaml:"addr" json:"addr"`
	DB         int    `yaml:"db" json:"db"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// FeastConfig 是特征补全配置。Host 为空时不启用补全。
type FeastConfig struct {
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Project string `yaml:"project" json:"project"`
}

// RecommendationConfig 是检索侧调参项。
type RecommendationConfig struct {
	EmbeddingDim        int     `yaml:"embedding_dim" json:"embedding_dim"`
	TopK                int     `yaml:"top_k" json:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	// FilterExpr 是候选过滤的 CEL 表达式，空串放行一切。
	FilterExpr string `yaml:"filter_expr" json:"filter_expr"`
}

// TrainingConfig 是在线训练侧调参项。
type TrainingConfig struct {
	BatchSize             int     `yaml:"batch_size" json:"batch_size"`
	LearningRate          float64 `yaml:"learning_rate" json:"learning_rate"`
	Regularization        float64 `yaml:"regularization" json:"regularization"`
	NegativeSamplingRatio float64 `yaml:"negative_sampling_ratio" json:"negative_sampling_ratio"`
	FlushIntervalSeconds  int     `yaml:"flush_interval_seconds" json:"flush_interval_seconds"`
	SnapshotSeconds       int     `yaml:"model_save_interval" json:"model_save_interval"`
	IntakeBuffer          int     `yaml:"intake_buffer" json:"intake_buffer"`
}

// FlushInterval 返回批次超时时长。
func (c TrainingConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// SnapshotInterval 返回快照周期。
func (c TrainingConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotSeconds) * time.Second
}

// Default 返回内置默认配置，缺省值与线上经验参数一致。
func Default() *Config {
	return &Config{
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			TrainingTopic: "training_examples",
			GroupID:       "veckit_group",
			ClientID:      "veckit",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			TTLSeconds: 3600,
		},
		Feast: FeastConfig{
			Port: 6565,
		},
		Recommendation: RecommendationConfig{
			EmbeddingDim:        128,
			TopK:                50,
			SimilarityThreshold: 0.7,
		},
		Training: TrainingConfig{
			BatchSize:             1024,
			LearningRate:          0.001,
			Regularization:        0.01,
			NegativeSamplingRatio: 4.0,
			FlushIntervalSeconds:  30,
			SnapshotSeconds:       3600,
			IntakeBuffer:          1000,
		},
	}
}

// FromFile 按扩展名选择解析器加载配置（.json 走 JSON，其余按 YAML）。
func FromFile(path string) (*Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadFromJSON(path)
	}
	return LoadFromYAML(path)
}

// LoadFromYAML 从 YAML 文件加载配置，文件中省略的字段保留默认值。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromJSON 从 JSON 文件加载配置，文件中省略的字段保留默认值。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置的基本约束。
func (c *Config) Validate() error {
	if c.Recommendation.EmbeddingDim <= 0 {
		return fmt.Errorf("recommendation.embedding_dim must be positive, got %d", c.Recommendation.EmbeddingDim)
	}
	if c.Recommendation.TopK <= 0 {
		return fmt.Errorf("recommendation.top_k must be positive, got %d", c.Recommendation.TopK)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("training.batch_size must be positive, got %d", c.Training.BatchSize)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("training.learning_rate must be positive, got %f", c.Training.LearningRate)
	}
	if c.Training.NegativeSamplingRatio < 0 {
		return fmt.Errorf("training.negative_sampling_ratio must be non-negative, got %f", c.Training.NegativeSamplingRatio)
	}
	return nil
}
