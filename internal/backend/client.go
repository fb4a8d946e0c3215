package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xela07ax/speedview/internal/domain"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Пути контракта бэкенда
const (
	PathRunTest   = "/api/run-test"
	PathVisualize = "/api/visualize"
)

// Имена операций (метки метрик и префиксы ошибок)
const (
	OpRunTest   = "run-test"
	OpVisualize = "visualize"
)

// Причины, которые видит пользователь, когда бэкенд не объяснил отказ сам.
const (
	DefaultTestFailure          = "Speed test failed"
	DefaultVisualizationFailure = "Failed to load visualization data"
	ReasonInvalidResult         = "Invalid speed test result received from server"
	ReasonInvalidPlot           = "Invalid plot data received from server"
	ReasonInvalidStats          = "Invalid statistics data received from server"
)

// RequestObserver получает итог каждого вызова бэкенда (для метрик).
type RequestObserver interface {
	ObserveRequest(op, outcome string, elapsed time.Duration)
}

// Client ходит в сервис замеров по HTTP.
// Повторов нет: любая ошибка сразу возвращается вызывающему.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	logger   *zap.Logger
	observer RequestObserver
}

type Option func(*Client)

// WithHTTPClient подменяет транспорт (тесты, прокси).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout ограничивает каждый вызов. 0 означает без ограничения.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Таймаут самого http.Client не ставим: ограничение идет только через контекст
		http:   &http.Client{},
		logger: logger.Named("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runTestResponse struct {
	Success bool        `json:"success"`
	Result  *resultWire `json:"result"`
	Error   string      `json:"error"`
}

// Указатели нужны, чтобы отличить "поле отсутствует" от нуля
type resultWire struct {
	DownloadSpeed *float64 `json:"download_speed"`
	UploadSpeed   *float64 `json:"upload_speed"`
	Ping          *float64 `json:"ping"`
	Timestamp     string   `json:"timestamp"`
	Server        string   `json:"server"`
}

type visualizeResponse struct {
	Success bool       `json:"success"`
	Plot    *plotWire  `json:"plot"`
	Stats   *statsWire `json:"stats"`
	Error   string     `json:"error"`
}

type plotWire struct {
	Data   json.RawMessage `json:"data"`
	Layout json.RawMessage `json:"layout"`
}

type statsWire struct {
	AvgDownload *float64 `json:"avg_download"`
	AvgUpload   *float64 `json:"avg_upload"`
	AvgPing     *float64 `json:"avg_ping"`
	TotalTests  *int     `json:"total_tests"`
}

// RunTest запускает замер на бэкенде и ждет его окончания.
func (c *Client) RunTest(ctx context.Context) (res *domain.TestResult, err error) {
	start := time.Now()
	defer func() { c.observe(OpRunTest, err, start) }()

	var resp runTestResponse
	if err := c.do(ctx, OpRunTest, http.MethodPost, PathRunTest, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &AppError{Op: OpRunTest, Reason: reasonOr(resp.Error, DefaultTestFailure)}
	}

	r := resp.Result
	if r == nil || r.DownloadSpeed == nil || r.UploadSpeed == nil || r.Ping == nil {
		return nil, &AppError{Op: OpRunTest, Reason: ReasonInvalidResult}
	}

	res = &domain.TestResult{
		DownloadSpeed: *r.DownloadSpeed,
		UploadSpeed:   *r.UploadSpeed,
		Ping:          *r.Ping,
		Server:        r.Server,
	}
	// Метка времени справочная: кривой формат не делает ответ ошибочным
	if ts, perr := time.Parse(time.RFC3339Nano, r.Timestamp); perr == nil {
		res.Timestamp = ts
	}
	return res, nil
}

// Visualize забирает описание графика и агрегаты.
// Ответ валидируется целиком: частичного успеха не бывает.
func (c *Client) Visualize(ctx context.Context) (vis *domain.Visualization, err error) {
	start := time.Now()
	defer func() { c.observe(OpVisualize, err, start) }()

	var resp visualizeResponse
	if err := c.do(ctx, OpVisualize, http.MethodGet, PathVisualize, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &AppError{Op: OpVisualize, Reason: reasonOr(resp.Error, DefaultVisualizationFailure)}
	}

	// 1. График: data и layout обязательны
	if resp.Plot == nil || isBlank(resp.Plot.Data) || isBlank(resp.Plot.Layout) {
		return nil, &AppError{Op: OpVisualize, Reason: ReasonInvalidPlot}
	}

	// 2. Статистика: без неё ответ тоже считается ошибкой
	s := resp.Stats
	if s == nil || s.AvgDownload == nil || s.AvgUpload == nil || s.AvgPing == nil || s.TotalTests == nil {
		return nil, &AppError{Op: OpVisualize, Reason: ReasonInvalidStats}
	}

	return &domain.Visualization{
		Plot: domain.Plot{Data: resp.Plot.Data, Layout: resp.Plot.Layout},
		Stats: domain.Stats{
			AvgDownload: *s.AvgDownload,
			AvgUpload:   *s.AvgUpload,
			AvgPing:     *s.AvgPing,
			TotalTests:  *s.TotalTests,
		},
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Op: op, Cause: err}
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.With(zap.String("op", op), zap.String("request_id", requestID))
	log.Debug("backend request started", zap.String("url", req.URL.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("backend request failed", zap.Error(err))
		return &TransportError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("backend response read failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return &TransportError{Op: op, Cause: err}
	}
	log.Debug("backend response received", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(body)))

	// Статус не проверяем: бэкенд сообщает об отказе в теле ответа
	if err := jsonAPI.Unmarshal(body, out); err != nil {
		log.Warn("backend response decode failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return &DecodeError{Op: op, StatusCode: resp.StatusCode, Cause: err}
	}
	return nil
}

func (c *Client) observe(op string, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(op, Outcome(err), time.Since(start))
}

// Outcome классифицирует ошибку вызова для метрик и логов.
func Outcome(err error) string {
	var (
		tErr *TransportError
		dErr *DecodeError
		aErr *AppError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &tErr):
		return "transport_error"
	case errors.As(err, &dErr):
		return "decode_error"
	case errors.As(err, &aErr):
		return "app_error"
	default:
		return "error"
	}
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

// isBlank повторяет проверку "значение пустое": отсутствие, null, false, 0 и "".
func isBlank(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}
