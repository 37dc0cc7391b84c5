package domain

import "errors"

// ErrStoreUnavailable возвращается, когда хранилище очередей недоступно.
var ErrStoreUnavailable = errors.New("хранилище очередей недоступно")

// ErrNotFound возвращается, когда элемент отсутствует в очереди.
var ErrNotFound = errors.New("элемент не найден в очереди")

// ErrUnsupportedPlatform возвращается для платформы вне списка поддерживаемых.
var ErrUnsupportedPlatform = errors.New("платформа не поддерживается")

// ErrInvalidURL возвращается для ссылки, не принадлежащей заявленной платформе.
var ErrInvalidURL = errors.New("некорректная ссылка")

// ErrInvalidConfig возвращается при нарушении инвариантов правила расписания.
var ErrInvalidConfig = errors.New("некорректное правило расписания")

// PipelineError несёт признак восстановимости через границу оркестрации.
type PipelineError struct {
	Err       error
	Transient bool
}

func (e *PipelineError) Error() string { return e.Err.Error() }

// Unwrap раскрывает исходную ошибку.
func (e *PipelineError) Unwrap() error { return e.Err }

// NewTransient помечает ошибку как временную: её стоит повторить.
func NewTransient(err error) *PipelineError {
	return &PipelineError{Err: err, Transient: true}
}

// NewTerminal помечает ошибку как окончательную: повторы бесполезны.
func NewTerminal(err error) *PipelineError {
	return &PipelineError{Err: err, Transient: false}
}

// IsTransient сообщает, является ли ошибка временной.
func IsTransient(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
