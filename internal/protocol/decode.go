package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Ошибки декодера. Обе восстановимы: событие отбрасывается, канал живет.
var (
	// ErrUnexpectedShape - массив-обертка не из одного элемента
	ErrUnexpectedShape = errors.New("protocol: unexpected payload shape")
	// ErrMalformed - структурное несоответствие полезной нагрузки
	ErrMalformed = errors.New("protocol: malformed payload")
)

// Unwrap снимает транспортную причуду: сервер может прислать полезную
// нагрузку как объект или как массив из одного объекта. Пустой массив и
// массив из нескольких элементов - ошибка формы.
func Unwrap(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if trimmed[0] != '[' {
		return trimmed, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(items) != 1 {
		return nil, fmt.Errorf("%w: array of %d elements", ErrUnexpectedShape, len(items))
	}
	return items[0], nil
}

// Decode - чистое преобразование сырого события в типизированную запись.
// Никогда не паникует; любой сбой превращается в ErrMalformed или
// ErrUnexpectedShape.
func Decode[T any](raw []byte) (T, error) {
	var out T

	body, err := Unwrap(raw)
	if err != nil {
		return out, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// типы с обязательными полями проверяют себя сами
	if v, ok := any(&out).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	return out, nil
}
