package backend

import (
	"fmt"
)

// TransportError — запрос не дошел до бэкенда или ответ не удалось прочитать.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// DecodeError — ответ пришел, но это не JSON (или не тот JSON).
type DecodeError struct {
	Op         string
	StatusCode int
	Cause      error
}

func (e *DecodeError) Error() string {
	if e.StatusCode >= 300 || (e.StatusCode > 0 && e.StatusCode < 200) {
		return fmt.Sprintf("%s: unexpected response (HTTP %d): %v", e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: invalid response: %v", e.Op, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// AppError — ответ разобран, но success=false или не хватает обязательных полей.
// Reason показывается пользователю как есть.
type AppError struct {
	Op     string
	Reason string
}

func (e *AppError) Error() string {
	return e.Reason
}
