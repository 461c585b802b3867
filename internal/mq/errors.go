package mq

import "errors"

// Ошибки RabbitMQ-инфраструктуры.
var (
	// ErrNoChannel — канал ещё не открыт или соединение потеряно.
	ErrNoChannel = errors.New("no channel available")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrUnexpectedMessage — тип сообщения не подходит очереди.
	ErrUnexpectedMessage = errors.New("unexpected message type")
)
