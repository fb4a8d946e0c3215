package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации клиента.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Chart   ChartConfig   `mapstructure:"chart"`
	Status  StatusConfig  `mapstructure:"status"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

// BackendConfig описывает, где живет сервис замеров.
type BackendConfig struct {
	URL string `mapstructure:"url"`
	// Timeout == 0 означает "без таймаута": зависший бэкенд подвешивает обновление UI
	Timeout time.Duration `mapstructure:"timeout"`
}

// RefreshConfig задает периодичность обновления графика.
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ChartConfig — фиксированный размер области графика и опциональный экспорт в PNG.
type ChartConfig struct {
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	ExportPath string `mapstructure:"export_path"` // пусто — не экспортируем
}

// StatusConfig настраивает служебный HTTP-сервер (метрики, состояние, удаленный запуск).
type StatusConfig struct {
	Addr         string  `mapstructure:"addr"` // пусто — сервер не поднимается
	TriggerRPS   float64 `mapstructure:"trigger_rps"`
	TriggerBurst int     `mapstructure:"trigger_burst"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	File   string `mapstructure:"file"`   // пусто — stderr
}

// LoadConfig собирает конфигурацию из файла, ENV и дефолтов.
// path задает явный путь к файлу (флаг -config); если пуст, ищем config.yaml в . и ./configs.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. ENV перекрывает файл: BACKEND_URL=... перекроет backend.url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate отсекает значения, с которыми клиент работать не сможет.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("config: backend.url is required")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("config: backend.timeout must not be negative, got %s", c.Backend.Timeout)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("config: refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("config: chart size must be positive, got %dx%d", c.Chart.Width, c.Chart.Height)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://127.0.0.1:8080")
	v.SetDefault("backend.timeout", time.Duration(0))
	v.SetDefault("refresh.interval", 30*time.Second)
	v.SetDefault("chart.width", 1000)
	v.SetDefault("chart.height", 500)
	v.SetDefault("chart.export_path", "")
	v.SetDefault("status.addr", "")
	v.SetDefault("status.trigger_rps", 0.1)
	v.SetDefault("status.trigger_burst", 1)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
}
