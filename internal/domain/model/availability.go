package model

// AvailabilityState — состояние обработки видео на удалённом хостинге.
// Переходы Unknown → Processing → {Available | Rejected | Failed} выполняет хостинг,
// сервис их только наблюдает. Состояние не сохраняется, запрашивается на каждый вызов.
type AvailabilityState int

const (
	// AvailabilityUnknown — состояние ещё не получено.
	AvailabilityUnknown AvailabilityState = iota
	// AvailabilityProcessing — видео загружено и обрабатывается.
	AvailabilityProcessing
	// AvailabilityAvailable — видео обработано и доступно для просмотра.
	AvailabilityAvailable
	// AvailabilityRejected — видео отклонено хостингом (дубликат, нарушение правил и т.п.).
	AvailabilityRejected
	// AvailabilityFailed — обработка завершилась ошибкой.
	AvailabilityFailed
)

// String возвращает имя состояния (используется в JSON и логах).
func (s AvailabilityState) String() string {
	switch s {
	case AvailabilityProcessing:
		return "processing"
	case AvailabilityAvailable:
		return "available"
	case AvailabilityRejected:
		return "rejected"
	case AvailabilityFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Availability — результат проверки статуса видео.
// Всё, кроме Available, считается недоступным состоянием (не ошибкой).
type Availability struct {
	// State — состояние обработки
	State AvailabilityState
	// Detail — пояснение хостинга (причина отклонения, стадия обработки)
	Detail string
}

// Available — доступное видео.
func Available() Availability {
	return Availability{State: AvailabilityAvailable}
}

// Unavailable — недоступное видео с указанием состояния и пояснения.
func Unavailable(state AvailabilityState, detail string) Availability {
	return Availability{State: state, Detail: detail}
}

// IsAvailable возвращает true, если видео можно показывать в плеере.
func (a Availability) IsAvailable() bool {
	return a.State == AvailabilityAvailable
}

// IsTerminalFailure возвращает true для отклонённых и неудачно обработанных видео.
func (a Availability) IsTerminalFailure() bool {
	return a.State == AvailabilityRejected || a.State == AvailabilityFailed
}
