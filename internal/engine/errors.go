package engine

import "errors"

// Ошибки клиента движка переговоров. Все они считаются сбоями
// исполнителя: оркестратор отвечает на них ограниченными повторами.
var (
	// ErrUnavailable — движок недоступен или вернул не-2xx статус.
	ErrUnavailable = errors.New("negotiation engine unavailable")

	// ErrMalformedEvent — событие потока не прошло проверку структуры.
	ErrMalformedEvent = errors.New("malformed engine event")

	// ErrIncompleteStream — поток закончился без финального события.
	ErrIncompleteStream = errors.New("engine stream ended without result")

	// ErrRemoteFault — движок сообщил об ошибке внутри потока.
	ErrRemoteFault = errors.New("engine reported fault")
)
