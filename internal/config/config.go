package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
)

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // Kafka 主题列表
	GroupID string   `yaml:"groupID"` // 消费者组ID
}

// OCRConfig 定义了 OCR 引擎 (Tesseract) 的配置。
type OCRConfig struct {
	Enabled   bool     `yaml:"enabled"`   // 是否启用 OCR 回退
	Languages []string `yaml:"languages"` // Tesseract 识别语言 (例如: ["eng"])
}

// GoogleSlidesConfig 定义了 Google Slides API 的认证配置。
type GoogleSlidesConfig struct {
	CredentialsFile string `yaml:"credentialsFile"` // 服务账号凭证文件路径，为空时解析器降级为占位实现
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	MySQL   MySQLConfig `yaml:"mysql"`   // MySQL 数据库配置
	MinIO   MinIOConfig `yaml:"minio"`   // MinIO 对象存储配置
	Redis   RedisConfig `yaml:"redis"`   // Redis 数据库配置
	MongoDB MongoConfig `yaml:"mongodb"` // MongoDB 数据库配置
	Kafka   KafkaConfig `yaml:"kafka"`   // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 worker HTTP 服务的监听配置。
type ServerConfig struct {
	ParseWorkerAddr string `yaml:"parseWorkerAddr"` // parse worker 监听地址 (例如: ":8000")
	NLPWorkerAddr   string `yaml:"nlpWorkerAddr"`   // nlp worker 监听地址 (例如: ":8001")
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App          AppInfo            `yaml:"app"`          // 应用程序信息
	Logger       LoggerConfig       `yaml:"logger"`       // 日志记录器配置
	Server       ServerConfig       `yaml:"server"`       // HTTP 服务配置
	Databases    DatabaseConfigs    `yaml:"databases"`    // 数据库配置
	OCR          OCRConfig          `yaml:"ocr"`          // OCR 配置
	GoogleSlides GoogleSlidesConfig `yaml:"googleSlides"` // Google Slides API 配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取或解析失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	// 将 YAML 内容解析到 cfg 结构体中。
	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	return &cfg, nil
}
