package dashboard

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/xela07ax/speedview/internal/backend"
	"github.com/xela07ax/speedview/internal/domain"
	"github.com/xela07ax/speedview/internal/view"
)

const backendHint = "Please make sure the backend server is running."

// FormatResult собирает сообщение об успешном замере.
// Скорости с двумя знаками после запятой, пинг округлен до целого.
func FormatResult(r domain.TestResult) string {
	return "Speed test completed successfully!\n" +
		"Download: " + fixed2(r.DownloadSpeed) + " Mbps\n" +
		"Upload: " + fixed2(r.UploadSpeed) + " Mbps\n" +
		"Ping: " + fixed0(r.Ping) + " ms"
}

// FormatTestError собирает сообщение об ошибке запуска замера.
func FormatTestError(err error) string {
	return "Error running speed test: " + reason(err) + "\n" + backendHint
}

// FormatVisualizationError собирает сообщение об ошибке загрузки графика.
func FormatVisualizationError(err error) string {
	return "Error loading visualization: " + reason(err) + "\n" + backendHint
}

// FormatStats готовит тексты четырех областей статистики.
func FormatStats(s domain.Stats) view.StatsText {
	return view.StatsText{
		AvgDownload: fixed2(s.AvgDownload) + " Mbps",
		AvgUpload:   fixed2(s.AvgUpload) + " Mbps",
		AvgPing:     fixed0(s.AvgPing) + " ms",
		TotalTests:  strconv.Itoa(s.TotalTests),
	}
}

// reason — текст причины без служебных префиксов для отказов бэкенда.
func reason(err error) string {
	var aErr *backend.AppError
	if errors.As(err, &aErr) {
		return aErr.Reason
	}
	return err.Error()
}

// Точное десятичное разложение float64 занимает не больше 1074 знаков после запятой
const exactFracDigits = 1074

// fixed2 округляет половину от нуля по точному значению float64:
// 0.125 -> 0.13, а 1.005 (на деле 1.00499...) -> 1.00.
// FormatFloat здесь не годится: точные половины он округляет к четному.
func fixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}

	exact := new(big.Float).SetFloat64(math.Abs(v)).Text('f', exactFracDigits)
	intPart, frac, _ := strings.Cut(exact, ".")

	digits := []byte(intPart + frac[:2])
	if frac[2] >= '5' {
		i := len(digits) - 1
		for ; i >= 0 && digits[i] == '9'; i-- {
			digits[i] = '0'
		}
		if i < 0 {
			digits = append([]byte{'1'}, digits...)
		} else {
			digits[i]++
		}
	}

	n := len(digits)
	out := string(digits[:n-2]) + "." + string(digits[n-2:])
	if v < 0 {
		out = "-" + out
	}
	return out
}

// fixed0 округляет половину от нуля (27.5 -> 28), а не к четному, как %.0f
func fixed0(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}
