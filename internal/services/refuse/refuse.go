// Package refuse описывает бизнес-отказы: локальные ранние выходы с кодом
// и тегом для конверта ответа. Всё, что не *Error, HTTP-слой трактует как
// внутреннюю ошибку (code=500).
package refuse

import "errors"

type Error struct {
	Code int
	Text string
	Data any
}

func (e *Error) Error() string {
	return e.Text
}

func New(code int, text string) *Error {
	return &Error{Code: code, Text: text}
}

func WithData(code int, text string, data any) *Error {
	return &Error{Code: code, Text: text, Data: data}
}

// As извлекает отказ из цепочки ошибок.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
