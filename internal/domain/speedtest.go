package domain

import (
	"encoding/json"
	"time"
)

// TestResult — результат одного замера, который вернул бэкенд.
type TestResult struct {
	DownloadSpeed float64 `json:"download_speed"` // Mbps
	UploadSpeed   float64 `json:"upload_speed"`   // Mbps
	Ping          float64 `json:"ping"`           // ms

	// Необязательные поля: бэкенд их присылает, но клиент на них не опирается
	Timestamp time.Time `json:"timestamp,omitempty"`
	Server    string    `json:"server,omitempty"`
}

// Plot — непрозрачная пара data/layout для графика.
// Клиент её не разбирает, а только передает рендереру.
type Plot struct {
	Data   json.RawMessage `json:"data"`
	Layout json.RawMessage `json:"layout"`
}

// Stats — агрегаты по всей истории замеров (считает бэкенд).
type Stats struct {
	AvgDownload float64 `json:"avg_download"`
	AvgUpload   float64 `json:"avg_upload"`
	AvgPing     float64 `json:"avg_ping"`
	TotalTests  int     `json:"total_tests"`
}

// Visualization — полностью провалидированный ответ /api/visualize.
type Visualization struct {
	Plot  Plot  `json:"plot"`
	Stats Stats `json:"stats"`
}
