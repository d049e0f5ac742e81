package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DecoderOpenCV = "opencv"
	DecoderFFmpeg = "ffmpeg"
)

type Config struct {
	Port     int    `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	TempDir  string `env:"TEMP_DIR"  envDefault:"/tmp/fiapx-pose"`

	Decoder     string `env:"DECODER"      envDefault:"opencv"`
	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	PaddingMode string `env:"PADDING_MODE" envDefault:"placeholder"`

	PoseWorkerCmd              string  `env:"POSE_WORKER_CMD"               envDefault:"models/run_pose_worker.sh"`
	PoseMinDetectionConfidence float64 `env:"POSE_MIN_DETECTION_CONFIDENCE" envDefault:"0.5"`
	PoseMinTrackingConfidence  float64 `env:"POSE_MIN_TRACKING_CONFIDENCE"  envDefault:"0.5"`

	DownloadUserAgent string `env:"DOWNLOAD_USER_AGENT" envDefault:"fiapx-pose-service/1.0"`

	// MinIO is only used for s3:// video URLs and stays off while the
	// endpoint is empty.
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`

	RabbitMQURL        string `env:"RABBITMQ_URL"`
	RabbitMQExchange   string `env:"RABBITMQ_EXCHANGE"    envDefault:"fiapx.pose"`
	RabbitMQRoutingKey string `env:"RABBITMQ_ROUTING_KEY" envDefault:"pose.extraction"`

	MetricsPort    int    `env:"METRICS_PORT"    envDefault:"8083"`
	JaegerEndpoint string `env:"JAEGER_ENDPOINT"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Decoder {
	case DecoderOpenCV, DecoderFFmpeg:
	default:
		return fmt.Errorf("DECODER must be %q or %q, got %q", DecoderOpenCV, DecoderFFmpeg, c.Decoder)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT out of range: %d", c.MetricsPort)
	}
	if c.MetricsPort == c.Port {
		return fmt.Errorf("METRICS_PORT must differ from PORT")
	}
	for name, v := range map[string]float64{
		"POSE_MIN_DETECTION_CONFIDENCE": c.PoseMinDetectionConfidence,
		"POSE_MIN_TRACKING_CONFIDENCE":  c.PoseMinTrackingConfidence,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}
	return nil
}
