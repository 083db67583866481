package domain

import "errors"

// ErrQueueFull возвращается синхронно отправителю при переполненной очереди.
var ErrQueueFull = errors.New("очередь запросов переполнена")
